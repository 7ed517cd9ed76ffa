// Package rates resolves the USD/JPY conversion rate through an ordered
// provider fallback chain with a static default floor.
package rates

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"shisan/internal/domain"
)

// SourceDefault tags a rate produced by the static fallback
const SourceDefault = "default"

// Resolver chains rate providers in order and guarantees a usable rate.
// This is a strict providers-then-default chain with no retries: in a
// periodic-refresh context a stale or default rate for one cycle is an
// acceptable, recoverable degradation.
type Resolver struct {
	providers   []domain.RateProvider
	defaultRate float64
	log         zerolog.Logger
}

// NewResolver creates a resolver over the given providers, attempted in
// order. defaultRate is the static floor returned when every provider
// fails; it comes from configuration so tests can override it.
func NewResolver(providers []domain.RateProvider, defaultRate float64, log zerolog.Logger) *Resolver {
	return &Resolver{
		providers:   providers,
		defaultRate: defaultRate,
		log:         log.With().Str("service", "rates").Logger(),
	}
}

// Resolve returns a USD/JPY rate. It never fails: provider errors fall
// through the chain and the static default backstops everything.
func (r *Resolver) Resolve(ctx context.Context) domain.ExchangeRate {
	for _, p := range r.providers {
		rate, err := p.GetUSDJPY(ctx)
		if err != nil {
			r.log.Warn().Err(err).Str("provider", p.Name()).Msg("Rate provider failed, trying next")
			continue
		}
		if rate.Rate <= 0 {
			r.log.Warn().Str("provider", p.Name()).Float64("rate", rate.Rate).Msg("Rate provider returned non-positive rate, trying next")
			continue
		}
		return rate
	}

	r.log.Warn().Float64("rate", r.defaultRate).Msg("All rate providers failed, using static default")

	return domain.ExchangeRate{
		Rate:   r.defaultRate,
		Date:   time.Now().UTC(),
		Source: SourceDefault,
	}
}
