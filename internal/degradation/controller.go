// Package degradation orchestrates quote resolution through a three-tier
// fallback: live fetch, cached snapshot, cost basis.
//
// Tiers are ranked and one-directional, evaluated once per request with
// no mid-request retry loop. The chosen tier is returned as a first-class
// value so consumers can distinguish a live valuation from a degraded
// one. Whatever tier wins, the returned quote map covers every holding
// symbol.
package degradation

import (
	"context"

	"github.com/rs/zerolog"

	"shisan/internal/domain"
)

// QuoteFetcher is the live-tier dependency
type QuoteFetcher interface {
	FetchAll(ctx context.Context, holdings []domain.Holding) map[string]domain.Quote
}

// Controller resolves the quote map for a valuation request
type Controller struct {
	fetcher QuoteFetcher
	cache   domain.QuoteStore
	log     zerolog.Logger
}

// NewController creates a degradation controller
func NewController(fetcher QuoteFetcher, cache domain.QuoteStore, log zerolog.Logger) *Controller {
	return &Controller{
		fetcher: fetcher,
		cache:   cache,
		log:     log.With().Str("service", "degradation").Logger(),
	}
}

// Resolve returns a quote map covering every holding plus the tier that
// produced it. It never fails: the cost-basis tier is derived from the
// holdings already in memory.
func (c *Controller) Resolve(ctx context.Context, holdings []domain.Holding) (map[string]domain.Quote, domain.DegradationTier) {
	// Tier 1: live fetch. Partial coverage is still a live result; only a
	// completely empty fetch falls through to the cache tier.
	live := c.fetcher.FetchAll(ctx, holdings)
	if len(live) > 0 {
		c.patchMissing(live, holdings)
		return live, domain.TierLive
	}

	c.log.Warn().Msg("Live fetch returned no quotes, falling back to cached snapshot")

	// Tier 2: most recent persisted price per symbol.
	if cached, ok := c.readCache(ctx, holdings); ok {
		c.patchMissing(cached, holdings)
		return cached, domain.TierCache
	}

	c.log.Warn().Msg("Cache unavailable, falling back to cost basis for entire portfolio")

	// Tier 3: every holding priced at its own average cost. Zero
	// unrealized P&L across the portfolio is the explicit, visible
	// degraded state.
	quotes := make(map[string]domain.Quote, len(holdings))
	for _, h := range holdings {
		quotes[h.Symbol] = costBasisQuote(h)
	}
	return quotes, domain.TierCostBasis
}

// readCache loads the latest persisted quotes, restricted to current
// holdings. Returns false when the store fails or has nothing relevant.
func (c *Controller) readCache(ctx context.Context, holdings []domain.Holding) (map[string]domain.Quote, bool) {
	latest, err := c.cache.ReadLatestQuotes(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to read cached quotes")
		return nil, false
	}

	quotes := make(map[string]domain.Quote)
	for _, h := range holdings {
		q, ok := latest[h.Symbol]
		if !ok || q.Price <= 0 {
			continue
		}
		q.Symbol = h.Symbol
		q.Source = domain.QuoteSourceCache
		if q.PreviousClose <= 0 {
			q.PreviousClose = q.Price
		}
		quotes[h.Symbol] = q
	}

	if len(quotes) == 0 {
		return nil, false
	}
	return quotes, true
}

// patchMissing backfills any holding without a quote with its cost basis.
// This is a per-symbol degradation, not a tier fallback, and is logged as
// such.
func (c *Controller) patchMissing(quotes map[string]domain.Quote, holdings []domain.Holding) {
	for _, h := range holdings {
		if _, ok := quotes[h.Symbol]; ok {
			continue
		}
		c.log.Warn().Str("symbol", h.Symbol).Msg("No quote resolved, degrading symbol to cost basis")
		quotes[h.Symbol] = costBasisQuote(h)
	}
}

func costBasisQuote(h domain.Holding) domain.Quote {
	return domain.Quote{
		Symbol:        h.Symbol,
		Name:          h.Name,
		Currency:      h.Currency,
		Source:        domain.QuoteSourceCostBasis,
		Price:         h.AvgCost,
		PreviousClose: h.AvgCost,
	}
}
