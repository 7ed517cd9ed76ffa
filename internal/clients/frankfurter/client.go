// Package frankfurter provides the secondary USD/JPY rate provider,
// backed by the frankfurter.app ECB reference rates.
package frankfurter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"shisan/internal/domain"
)

// Client for frankfurter.app
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new frankfurter.app client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: "https://api.frankfurter.app",
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "frankfurter").Logger(),
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint (for testing)
func NewClientWithBaseURL(baseURL string, log zerolog.Logger) *Client {
	c := NewClient(log)
	c.baseURL = baseURL
	return c
}

// Name identifies this provider in rate provenance tags
func (c *Client) Name() string {
	return "frankfurter"
}

// GetUSDJPY fetches the USD to JPY rate
func (c *Client) GetUSDJPY(ctx context.Context) (domain.ExchangeRate, error) {
	url := fmt.Sprintf("%s/latest?from=USD&to=JPY", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.ExchangeRate{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.ExchangeRate{}, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ExchangeRate{}, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result struct {
		Date  string             `json:"date"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.ExchangeRate{}, fmt.Errorf("failed to parse response: %w", err)
	}

	rate, exists := result.Rates["JPY"]
	if !exists || rate <= 0 {
		return domain.ExchangeRate{}, fmt.Errorf("JPY rate not found in response")
	}

	date := time.Now().UTC()
	if t, err := time.Parse("2006-01-02", result.Date); err == nil {
		date = t
	}

	c.log.Info().Float64("rate", rate).Msg("Fetched USD/JPY rate")

	return domain.ExchangeRate{
		Rate:   rate,
		Date:   date,
		Source: c.Name(),
	}, nil
}
