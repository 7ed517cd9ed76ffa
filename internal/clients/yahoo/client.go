// Package yahoo provides a quote client for the Yahoo Finance quote API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"shisan/internal/domain"
)

// Client for the Yahoo Finance v7 quote endpoint
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance quote client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: "https://query1.finance.yahoo.com/v7/finance/quote",
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint (for testing)
func NewClientWithBaseURL(baseURL string, log zerolog.Logger) *Client {
	c := NewClient(log)
	c.baseURL = baseURL
	return c
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string  `json:"symbol"`
			ShortName                  string  `json:"shortName"`
			Currency                   string  `json:"currency"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

// GetQuote fetches a live quote for one exchange-traded symbol
func (c *Client) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	reqURL := fmt.Sprintf("%s?symbols=%s", c.baseURL, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; shisan/1.0)")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Quote{}, fmt.Errorf("quote API returned status %d", resp.StatusCode)
	}

	var result quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.Quote{}, fmt.Errorf("failed to parse quote response: %w", err)
	}

	if result.QuoteResponse.Error != nil {
		return domain.Quote{}, fmt.Errorf("quote API error: %s", result.QuoteResponse.Error.Description)
	}
	if len(result.QuoteResponse.Result) == 0 {
		return domain.Quote{}, fmt.Errorf("no quote returned for %s", symbol)
	}

	r := result.QuoteResponse.Result[0]
	if r.RegularMarketPrice <= 0 {
		return domain.Quote{}, fmt.Errorf("non-positive price %v for %s", r.RegularMarketPrice, symbol)
	}

	previousClose := r.RegularMarketPreviousClose
	if previousClose <= 0 {
		// No previous close means a zero day change, not a failure
		previousClose = r.RegularMarketPrice
	}

	currency := domain.Currency(r.Currency)
	if currency != domain.CurrencyUSD {
		currency = domain.CurrencyJPY
	}

	c.log.Debug().
		Str("symbol", symbol).
		Float64("price", r.RegularMarketPrice).
		Msg("Fetched quote")

	return domain.Quote{
		Symbol:        symbol,
		Name:          r.ShortName,
		Currency:      currency,
		Source:        domain.QuoteSourceLive,
		Price:         r.RegularMarketPrice,
		PreviousClose: previousClose,
	}, nil
}
