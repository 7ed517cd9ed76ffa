// Package exchangerate provides the primary USD/JPY rate provider,
// backed by exchangerate-api.com with persistent response caching.
package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"shisan/internal/clientdata"
	"shisan/internal/domain"
)

// Client for exchangerate-api.com
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new exchangerate-api.com client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   "https://api.exchangerate-api.com/v4/latest",
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "exchangerate-api").Logger(),
		cacheRepo: cacheRepo,
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint (for testing)
func NewClientWithBaseURL(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	c := NewClient(cacheRepo, log)
	c.baseURL = baseURL
	return c
}

// cachedRate is the structure stored in the cache
type cachedRate struct {
	Rate float64 `json:"rate"`
	Date string  `json:"date"`
}

// Name identifies this provider in rate provenance tags
func (c *Client) Name() string {
	return "exchangerate-api"
}

// GetUSDJPY fetches the USD to JPY rate.
// A fresh cached rate short-circuits the API call; on API failure a stale
// cached rate is still returned (stale data > no data). Only when both the
// API and the cache come up empty does this provider fail.
func (c *Client) GetUSDJPY(ctx context.Context) (domain.ExchangeRate, error) {
	const cacheKey = "USD:JPY"

	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh("exchangerate", cacheKey)
		if err == nil && data != nil {
			var cached cachedRate
			if err := json.Unmarshal(data, &cached); err == nil && cached.Rate > 0 {
				c.log.Debug().Float64("rate", cached.Rate).Msg("Cache hit")
				return c.rateFromCache(cached), nil
			}
		}
	}

	url := fmt.Sprintf("%s/USD", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.ExchangeRate{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if stale, ok := c.getStaleFromCache(cacheKey); ok {
			c.log.Warn().Err(err).Float64("rate", stale.Rate).Msg("API failed, using stale cached rate")
			return stale, nil
		}
		return domain.ExchangeRate{}, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if stale, ok := c.getStaleFromCache(cacheKey); ok {
			c.log.Warn().Int("status", resp.StatusCode).Float64("rate", stale.Rate).Msg("API error, using stale cached rate")
			return stale, nil
		}
		return domain.ExchangeRate{}, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result struct {
		Date  string             `json:"date"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if stale, ok := c.getStaleFromCache(cacheKey); ok {
			c.log.Warn().Err(err).Float64("rate", stale.Rate).Msg("Failed to parse response, using stale cached rate")
			return stale, nil
		}
		return domain.ExchangeRate{}, fmt.Errorf("failed to parse response: %w", err)
	}

	rate, exists := result.Rates["JPY"]
	if !exists || rate <= 0 {
		if stale, ok := c.getStaleFromCache(cacheKey); ok {
			c.log.Warn().Float64("rate", stale.Rate).Msg("JPY rate missing in response, using stale cached rate")
			return stale, nil
		}
		return domain.ExchangeRate{}, fmt.Errorf("JPY rate not found in response")
	}

	if c.cacheRepo != nil {
		cached := cachedRate{Rate: rate, Date: result.Date}
		if err := c.cacheRepo.Store("exchangerate", cacheKey, cached, clientdata.TTLExchangeRate); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache exchange rate")
		}
	}

	c.log.Info().Float64("rate", rate).Msg("Fetched USD/JPY rate")

	return domain.ExchangeRate{
		Rate:   rate,
		Date:   parseDate(result.Date),
		Source: c.Name(),
	}, nil
}

// getStaleFromCache retrieves a cached rate even if expired.
// Fallback for API failures - stale data is better than no data.
func (c *Client) getStaleFromCache(cacheKey string) (domain.ExchangeRate, bool) {
	if c.cacheRepo == nil {
		return domain.ExchangeRate{}, false
	}

	data, err := c.cacheRepo.Get("exchangerate", cacheKey)
	if err != nil || data == nil {
		return domain.ExchangeRate{}, false
	}

	var cached cachedRate
	if err := json.Unmarshal(data, &cached); err != nil || cached.Rate <= 0 {
		return domain.ExchangeRate{}, false
	}

	return c.rateFromCache(cached), true
}

func (c *Client) rateFromCache(cached cachedRate) domain.ExchangeRate {
	return domain.ExchangeRate{
		Rate:   cached.Rate,
		Date:   parseDate(cached.Date),
		Source: c.Name(),
	}
}

func parseDate(s string) time.Time {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Now().UTC()
}
