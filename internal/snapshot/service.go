// Package snapshot orchestrates the full valuation pipeline into a
// consistent portfolio snapshot.
package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"shisan/internal/degradation"
	"shisan/internal/domain"
	"shisan/internal/rates"
	"shisan/internal/valuation"
)

// Persister is the subset of the store the service writes to after a
// successful live refresh
type Persister interface {
	domain.QuoteStore
	domain.RateStore
}

// Service builds and caches valuation snapshots
type Service struct {
	holdings    domain.HoldingReader
	ledger      domain.LedgerReader
	controller  *degradation.Controller
	rates       *rates.Resolver
	engine      *valuation.Engine
	persister   Persister
	defaultRate float64
	log         zerolog.Logger

	mu     sync.RWMutex
	latest *domain.Snapshot
}

// NewService creates a snapshot service
func NewService(
	holdings domain.HoldingReader,
	ledger domain.LedgerReader,
	controller *degradation.Controller,
	rateResolver *rates.Resolver,
	engine *valuation.Engine,
	persister Persister,
	defaultRate float64,
	log zerolog.Logger,
) *Service {
	return &Service{
		holdings:    holdings,
		ledger:      ledger,
		controller:  controller,
		rates:       rateResolver,
		engine:      engine,
		persister:   persister,
		defaultRate: defaultRate,
		log:         log.With().Str("service", "snapshot").Logger(),
	}
}

// Refresh runs the full pipeline and returns a new snapshot.
//
// The snapshot is always structurally valid. The only fatal condition is
// the store being unreachable while loading holdings: then Refresh
// returns an explicit error alongside a safe, fully degraded snapshot
// (empty holdings, default rate) rather than crashing.
func (s *Service) Refresh(ctx context.Context) (domain.Snapshot, error) {
	started := time.Now()

	holdings, err := s.holdings.ReadHoldings(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Store unreachable, returning degraded snapshot")
		snap := s.degradedSnapshot()
		s.setLatest(snap)
		return snap, fmt.Errorf("failed to read holdings: %w", err)
	}

	rate := s.rates.Resolve(ctx)
	quotes, tier := s.controller.Resolve(ctx, holdings)

	now := time.Now()
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())

	// Ledger reads are enrichment, not a reason to fail the refresh.
	otherAssets, err := s.ledger.ReadOtherAssets(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read other assets, summing holdings only")
	}
	txns, err := s.ledger.ReadTransactionsSince(ctx, yearStart)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read transactions, YTD realized P&L will be zero")
	}
	dividends, err := s.ledger.ReadDividendsSince(ctx, yearStart)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read dividends, YTD dividends will be zero")
	}

	enriched, categories, summary := s.engine.Valuate(valuation.Input{
		Holdings:     holdings,
		Quotes:       quotes,
		ExchangeRate: rate,
		OtherAssets:  otherAssets,
		Transactions: txns,
		Dividends:    dividends,
		Now:          now,
	})

	snap := domain.Snapshot{
		GeneratedAt:  now,
		Holdings:     enriched,
		Categories:   categories,
		Summary:      summary,
		ExchangeRate: rate,
		Tier:         tier,
	}
	s.setLatest(snap)

	if tier == domain.TierLive {
		s.persist(ctx, quotes, rate, now)
	}

	s.log.Info().
		Str("tier", string(tier)).
		Int("holdings", len(enriched)).
		Float64("total_value", summary.TotalValue).
		Dur("elapsed", time.Since(started)).
		Msg("Snapshot refreshed")

	return snap, nil
}

// Latest returns the most recently built snapshot, or false when none
// has been built yet
func (s *Service) Latest() (domain.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return domain.Snapshot{}, false
	}
	return *s.latest, true
}

func (s *Service) setLatest(snap domain.Snapshot) {
	s.mu.Lock()
	s.latest = &snap
	s.mu.Unlock()
}

// persist appends live quotes and the resolved rate to the store.
// Only live prices are written: re-persisting cached or cost-basis values
// would launder degraded data into the cache tier.
func (s *Service) persist(ctx context.Context, quotes map[string]domain.Quote, rate domain.ExchangeRate, now time.Time) {
	for symbol, q := range quotes {
		if q.Source != domain.QuoteSourceLive {
			continue
		}
		if err := s.persister.AppendQuoteSnapshot(ctx, symbol, q.Price, q.Currency, now); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to persist quote snapshot")
		}
	}
	if rate.Source != rates.SourceDefault {
		if err := s.persister.AppendExchangeRate(ctx, rate.Rate, now); err != nil {
			s.log.Warn().Err(err).Msg("Failed to persist exchange rate")
		}
	}
}

// degradedSnapshot is the safe default returned with a fatal error
func (s *Service) degradedSnapshot() domain.Snapshot {
	return domain.Snapshot{
		GeneratedAt: time.Now(),
		Holdings:    []domain.EnrichedHolding{},
		Categories:  []domain.CategorySummary{},
		ExchangeRate: domain.ExchangeRate{
			Rate:   s.defaultRate,
			Date:   time.Now().UTC(),
			Source: rates.SourceDefault,
		},
		Tier: domain.TierCostBasis,
	}
}
