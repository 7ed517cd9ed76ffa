// Package valuation converts holdings, quotes and an exchange rate into
// enriched per-holding valuations, category summaries and a portfolio
// summary.
//
// All cross-holding aggregation happens in a single currency (JPY): USD
// values are converted per holding before any total is computed, and YTD
// realized P&L and dividends are converted per record before summing.
// Summing before conversion would double-apply FX risk.
package valuation

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"shisan/internal/domain"
)

// Engine computes portfolio valuations. All aggregates are expressed in
// the base currency; holdings already denominated in it are never
// converted.
type Engine struct {
	baseCurrency domain.Currency
	log          zerolog.Logger
}

// NewEngine creates a valuation engine aggregating in the given base
// currency
func NewEngine(baseCurrency domain.Currency, log zerolog.Logger) *Engine {
	return &Engine{
		baseCurrency: baseCurrency,
		log:          log.With().Str("service", "valuation").Logger(),
	}
}

// Input bundles everything a valuation needs. Holdings and the ledger
// data are read-only; quotes must cover every holding symbol (the
// degradation controller guarantees this).
type Input struct {
	Holdings     []domain.Holding
	Quotes       map[string]domain.Quote
	ExchangeRate domain.ExchangeRate
	OtherAssets  []domain.OtherAsset
	Transactions []domain.Transaction
	Dividends    []domain.Dividend
	Now          time.Time
}

// Valuate computes enriched holdings, category summaries and the
// portfolio summary from a single consistent input.
func (e *Engine) Valuate(in Input) ([]domain.EnrichedHolding, []domain.CategorySummary, domain.PortfolioSummary) {
	rate := in.ExchangeRate.Rate

	enriched := make([]domain.EnrichedHolding, 0, len(in.Holdings))
	categoryTotals := make(map[domain.AssetCategory]float64)
	categoryOrder := make([]domain.AssetCategory, 0)

	var holdingsJPY, costJPY, previousJPY float64

	for _, h := range in.Holdings {
		quote, ok := in.Quotes[h.Symbol]
		currentPrice := quote.Price
		previousClose := quote.PreviousClose
		source := quote.Source
		if !ok || currentPrice <= 0 {
			// Backstop: should not happen after degradation, but a missing
			// quote must never crash a valuation.
			currentPrice = h.AvgCost
			previousClose = h.AvgCost
			source = domain.QuoteSourceCostBasis
		}
		if previousClose <= 0 {
			previousClose = currentPrice
		}

		totalValue := currentPrice * h.Quantity
		costBasis := h.AvgCost * h.Quantity
		unrealizedPL := totalValue - costBasis

		plPercent := 0.0
		if costBasis != 0 {
			plPercent = unrealizedPL / costBasis * 100
		}

		fx := e.fxMultiplier(h.Currency, rate)
		valueJPY := totalValue * fx
		previousValueJPY := previousClose * h.Quantity * fx

		holdingsJPY += valueJPY
		previousJPY += previousValueJPY
		costJPY += costBasis * fx

		if _, seen := categoryTotals[h.Category]; !seen {
			categoryOrder = append(categoryOrder, h.Category)
		}
		categoryTotals[h.Category] += valueJPY

		enriched = append(enriched, domain.EnrichedHolding{
			Holding:             h,
			CurrentPrice:        currentPrice,
			TotalValue:          totalValue,
			TotalValueJPY:       valueJPY,
			UnrealizedPL:        unrealizedPL,
			UnrealizedPLPercent: plPercent,
			DayChange:           (currentPrice - previousClose) * h.Quantity,
			QuoteSource:         source,
		})
	}

	var otherJPY float64
	for _, a := range in.OtherAssets {
		valueJPY := a.Value * e.fxMultiplier(a.Currency, rate)
		otherJPY += valueJPY
		if _, seen := categoryTotals[a.Category]; !seen {
			categoryOrder = append(categoryOrder, a.Category)
		}
		categoryTotals[a.Category] += valueJPY
	}

	grandTotal := holdingsJPY + otherJPY
	categories := buildCategorySummaries(categoryOrder, categoryTotals, grandTotal)

	summary := domain.PortfolioSummary{
		TotalValue: grandTotal,
		// Same cost-basis and other-assets baseline on both sides, so the
		// difference isolates the price-movement delta.
		DayChange:         holdingsJPY - previousJPY,
		TotalUnrealizedPL: holdingsJPY - costJPY,
		YTDRealizedPL:     e.sumRealizedYTD(in.Transactions, rate, in.Now),
		YTDDividends:      e.sumDividendsYTD(in.Dividends, rate, in.Now),
	}
	if previousJPY+otherJPY != 0 {
		summary.DayChangePercent = summary.DayChange / (previousJPY + otherJPY) * 100
	}
	if costJPY != 0 {
		// Aggregate before computing the percentage; averaging per-holding
		// percentages would weight small positions equally with large ones.
		summary.TotalUnrealizedPLPc = summary.TotalUnrealizedPL / costJPY * 100
	}

	e.log.Debug().
		Float64("total_value", grandTotal).
		Float64("unrealized_pl", summary.TotalUnrealizedPL).
		Int("holdings", len(enriched)).
		Msg("Valuation complete")

	return enriched, categories, summary
}

// buildCategorySummaries rolls category totals into percentage summaries,
// sorted by value descending. The sort is stable so ties keep insertion
// order.
func buildCategorySummaries(order []domain.AssetCategory, totals map[domain.AssetCategory]float64, grandTotal float64) []domain.CategorySummary {
	summaries := make([]domain.CategorySummary, 0, len(order))
	for _, cat := range order {
		pct := 0.0
		if grandTotal != 0 {
			pct = totals[cat] / grandTotal * 100
		}
		summaries = append(summaries, domain.CategorySummary{
			Category:   cat,
			Label:      cat.Label(),
			Value:      totals[cat],
			Percentage: pct,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Value > summaries[j].Value
	})

	return summaries
}

// sumRealizedYTD sums realized P&L from transactions in the current
// calendar year, converting each record to JPY individually.
func (e *Engine) sumRealizedYTD(txns []domain.Transaction, rate float64, now time.Time) float64 {
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())

	var total float64
	for _, t := range txns {
		if t.Date.Before(yearStart) {
			continue
		}
		total += t.RealizedPL * e.fxMultiplier(t.Currency, rate)
	}
	return total
}

// sumDividendsYTD sums dividends in the current calendar year, converting
// each record to JPY individually.
func (e *Engine) sumDividendsYTD(dividends []domain.Dividend, rate float64, now time.Time) float64 {
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())

	var total float64
	for _, d := range dividends {
		if d.Date.Before(yearStart) {
			continue
		}
		total += d.Amount * e.fxMultiplier(d.Currency, rate)
	}
	return total
}

// fxMultiplier returns the factor converting a value in the given
// currency to the base currency
func (e *Engine) fxMultiplier(currency domain.Currency, usdJPY float64) float64 {
	if currency == e.baseCurrency {
		return 1
	}
	if currency == domain.CurrencyUSD {
		return usdJPY
	}
	return 1
}
