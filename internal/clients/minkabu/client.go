// Package minkabu fetches fund pages for NAV extraction.
// The client only retrieves the raw document; parsing the price out of the
// markup belongs to the nav package.
package minkabu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"shisan/internal/clientdata"
)

// Client for fund detail pages
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new fund page client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   "https://itf.minkabu.jp/fund",
		client:    &http.Client{Timeout: 15 * time.Second},
		log:       log.With().Str("client", "minkabu").Logger(),
		cacheRepo: cacheRepo,
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint (for testing)
func NewClientWithBaseURL(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	c := NewClient(cacheRepo, log)
	c.baseURL = baseURL
	return c
}

// cachedPage is the structure stored in the cache
type cachedPage struct {
	Body string `json:"body"`
}

// GetDocument fetches the raw page for a fund code.
// A fresh cached page short-circuits the fetch; on fetch failure a stale
// cached page is still returned (fund NAVs update once per business day,
// so yesterday's page beats no page).
func (c *Client) GetDocument(ctx context.Context, fundCode string) (string, error) {
	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh("fund_pages", fundCode)
		if err == nil && data != nil {
			var cached cachedPage
			if err := json.Unmarshal(data, &cached); err == nil && cached.Body != "" {
				c.log.Debug().Str("fund_code", fundCode).Msg("Cache hit")
				return cached.Body, nil
			}
		}
	}

	reqURL := fmt.Sprintf("%s/%s", c.baseURL, fundCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; shisan/1.0)")

	resp, err := c.client.Do(req)
	if err != nil {
		if stale, ok := c.getStaleFromCache(fundCode); ok {
			c.log.Warn().Err(err).Str("fund_code", fundCode).Msg("Fetch failed, using stale cached page")
			return stale, nil
		}
		return "", fmt.Errorf("fund page request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if stale, ok := c.getStaleFromCache(fundCode); ok {
			c.log.Warn().Int("status", resp.StatusCode).Str("fund_code", fundCode).Msg("Fund page error, using stale cached page")
			return stale, nil
		}
		return "", fmt.Errorf("fund page returned status %d for %s", resp.StatusCode, fundCode)
	}

	// Fund pages are small; cap the read anyway so a misbehaving endpoint
	// cannot balloon memory.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read fund page: %w", err)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("fund_pages", fundCode, cachedPage{Body: string(body)}, clientdata.TTLFundPage); err != nil {
			c.log.Warn().Err(err).Str("fund_code", fundCode).Msg("Failed to cache fund page")
		}
	}

	c.log.Debug().Str("fund_code", fundCode).Int("bytes", len(body)).Msg("Fetched fund page")

	return string(body), nil
}

// getStaleFromCache retrieves a cached page even if expired.
// Fallback for fetch failures - stale data is better than no data.
func (c *Client) getStaleFromCache(fundCode string) (string, bool) {
	if c.cacheRepo == nil {
		return "", false
	}

	data, err := c.cacheRepo.Get("fund_pages", fundCode)
	if err != nil || data == nil {
		return "", false
	}

	var cached cachedPage
	if err := json.Unmarshal(data, &cached); err != nil || cached.Body == "" {
		return "", false
	}

	return cached.Body, true
}
