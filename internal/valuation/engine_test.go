package valuation

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shisan/internal/domain"
)

func jpyRate(rate float64) domain.ExchangeRate {
	return domain.ExchangeRate{Rate: rate, Date: time.Now(), Source: "test"}
}

func TestValuate_JPYHolding(t *testing.T) {
	e := NewEngine(domain.CurrencyJPY, zerolog.Nop())

	holdings := []domain.Holding{
		{Symbol: "7203.T", Category: domain.CategoryDomesticEquity, Currency: domain.CurrencyJPY, Quantity: 100, AvgCost: 2400},
	}
	quotes := map[string]domain.Quote{
		"7203.T": {Symbol: "7203.T", Price: 2856, PreviousClose: 2856, Currency: domain.CurrencyJPY, Source: domain.QuoteSourceLive},
	}

	enriched, _, summary := e.Valuate(Input{
		Holdings:     holdings,
		Quotes:       quotes,
		ExchangeRate: jpyRate(150),
		Now:          time.Now(),
	})

	require.Len(t, enriched, 1)
	h := enriched[0]
	assert.Equal(t, 2856.0, h.CurrentPrice)
	assert.Equal(t, 285600.0, h.TotalValue)
	assert.Equal(t, 45600.0, h.UnrealizedPL)
	assert.Equal(t, 19.0, h.UnrealizedPLPercent)
	assert.Equal(t, 285600.0, summary.TotalValue)
	assert.Equal(t, 45600.0, summary.TotalUnrealizedPL)
}

func TestValuate_USDHoldingConvertedBeforeAggregation(t *testing.T) {
	e := NewEngine(domain.CurrencyJPY, zerolog.Nop())

	holdings := []domain.Holding{
		{Symbol: "AAPL", Category: domain.CategoryForeignEquity, Currency: domain.CurrencyUSD, Quantity: 50, AvgCost: 150},
	}
	quotes := map[string]domain.Quote{
		"AAPL": {Symbol: "AAPL", Price: 182.5, PreviousClose: 182.5, Currency: domain.CurrencyUSD, Source: domain.QuoteSourceLive},
	}

	enriched, _, summary := e.Valuate(Input{
		Holdings:     holdings,
		Quotes:       quotes,
		ExchangeRate: jpyRate(150),
		Now:          time.Now(),
	})

	require.Len(t, enriched, 1)
	// 182.5 * 50 * 150 = 1,368,750 JPY
	assert.Equal(t, 1368750.0, enriched[0].TotalValueJPY)
	assert.Equal(t, 1368750.0, summary.TotalValue)
	// Unrealized P&L stays exact in the holding currency.
	assert.Equal(t, (182.5-150.0)*50, enriched[0].UnrealizedPL)
}

func TestValuate_UnrealizedPLIdentity(t *testing.T) {
	e := NewEngine(domain.CurrencyJPY, zerolog.Nop())

	holdings := []domain.Holding{
		{Symbol: "A", Category: domain.CategoryDomesticEquity, Currency: domain.CurrencyJPY, Quantity: 37, AvgCost: 1234.5},
		{Symbol: "B", Category: domain.CategoryDomesticEquity, Currency: domain.CurrencyJPY, Quantity: 3, AvgCost: 980},
	}
	quotes := map[string]domain.Quote{
		"A": {Symbol: "A", Price: 1501.25, PreviousClose: 1501.25, Currency: domain.CurrencyJPY, Source: domain.QuoteSourceLive},
		"B": {Symbol: "B", Price: 955, PreviousClose: 955, Currency: domain.CurrencyJPY, Source: domain.QuoteSourceLive},
	}

	enriched, _, _ := e.Valuate(Input{Holdings: holdings, Quotes: quotes, ExchangeRate: jpyRate(150), Now: time.Now()})

	for _, h := range enriched {
		q := quotes[h.Symbol]
		assert.Equal(t, (q.Price-h.AvgCost)*h.Quantity, h.UnrealizedPL, h.Symbol)
	}
}

func TestValuate_ZeroCostBasisYieldsZeroPercent(t *testing.T) {
	e := NewEngine(domain.CurrencyJPY, zerolog.Nop())

	holdings := []domain.Holding{
		{Symbol: "GIFT", Category: domain.CategoryDomesticEquity, Currency: domain.CurrencyJPY, Quantity: 10, AvgCost: 0},
	}
	quotes := map[string]domain.Quote{
		"GIFT": {Symbol: "GIFT", Price: 500, PreviousClose: 500, Currency: domain.CurrencyJPY, Source: domain.QuoteSourceLive},
	}

	enriched, _, _ := e.Valuate(Input{Holdings: holdings, Quotes: quotes, ExchangeRate: jpyRate(150), Now: time.Now()})

	require.Len(t, enriched, 1)
	assert.Equal(t, 0.0, enriched[0].UnrealizedPLPercent)
}

func TestValuate_MissingQuoteFallsBackToCostBasis(t *testing.T) {
	e := NewEngine(domain.CurrencyJPY, zerolog.Nop())

	holdings := []domain.Holding{
		{Symbol: "GHOST", Category: domain.CategoryDomesticEquity, Currency: domain.CurrencyJPY, Quantity: 5, AvgCost: 1000},
	}

	enriched, _, _ := e.Valuate(Input{Holdings: holdings, Quotes: map[string]domain.Quote{}, ExchangeRate: jpyRate(150), Now: time.Now()})

	require.Len(t, enriched, 1)
	assert.Equal(t, 1000.0, enriched[0].CurrentPrice)
	assert.Equal(t, 0.0, enriched[0].UnrealizedPL)
	assert.Equal(t, domain.QuoteSourceCostBasis, enriched[0].QuoteSource)
}

func TestValuate_CategoryPercentagesSumTo100(t *testing.T) {
	e := NewEngine(domain.CurrencyJPY, zerolog.Nop())

	holdings := []domain.Holding{
		{Symbol: "7203.T", Category: domain.CategoryDomesticEquity, Currency: domain.CurrencyJPY, Quantity: 100, AvgCost: 2400},
		{Symbol: "AAPL", Category: domain.CategoryForeignEquity, Currency: domain.CurrencyUSD, Quantity: 10, AvgCost: 150},
		{Symbol: "fund-x", Category: domain.CategoryFund, Currency: domain.CurrencyJPY, Quantity: 12000, AvgCost: 1.5},
	}
	quotes := map[string]domain.Quote{
		"7203.T": {Price: 2856, PreviousClose: 2856, Currency: domain.CurrencyJPY, Source: domain.QuoteSourceLive},
		"AAPL":   {Price: 182.5, PreviousClose: 182.5, Currency: domain.CurrencyUSD, Source: domain.QuoteSourceLive},
		"fund-x": {Price: 1.8, PreviousClose: 1.8, Currency: domain.CurrencyJPY, Source: domain.QuoteSourceLive},
	}
	otherAssets := []domain.OtherAsset{
		{Name: "普通預金", Category: domain.CategoryCash, Currency: domain.CurrencyJPY, Value: 1500000},
		{Name: "個人向け国債", Category: domain.CategoryBond, Currency: domain.CurrencyJPY, Value: 500000},
	}

	_, categories, summary := e.Valuate(Input{
		Holdings:     holdings,
		Quotes:       quotes,
		ExchangeRate: jpyRate(150),
		OtherAssets:  otherAssets,
		Now:          time.Now(),
	})

	var pctSum, valueSum float64
	for _, c := range categories {
		pctSum += c.Percentage
		valueSum += c.Value
	}
	assert.InDelta(t, 100.0, pctSum, 0.01)
	assert.InDelta(t, summary.TotalValue, valueSum, 1e-6)

	// Sorted by value descending.
	for i := 1; i < len(categories); i++ {
		assert.GreaterOrEqual(t, categories[i-1].Value, categories[i].Value)
	}
}

func TestValuate_EmptyPortfolioAllZero(t *testing.T) {
	e := NewEngine(domain.CurrencyJPY, zerolog.Nop())

	enriched, categories, summary := e.Valuate(Input{ExchangeRate: jpyRate(150), Now: time.Now()})

	assert.Empty(t, enriched)
	assert.Empty(t, categories)
	assert.Equal(t, 0.0, summary.TotalValue)
	assert.Equal(t, 0.0, summary.TotalUnrealizedPLPc)
	assert.Equal(t, 0.0, summary.DayChangePercent)
}

func TestValuate_ZeroGrandTotalZeroPercentages(t *testing.T) {
	e := NewEngine(domain.CurrencyJPY, zerolog.Nop())

	holdings := []domain.Holding{
		{Symbol: "ZERO", Category: domain.CategoryDomesticEquity, Currency: domain.CurrencyJPY, Quantity: 0, AvgCost: 0},
	}
	quotes := map[string]domain.Quote{
		"ZERO": {Price: 100, PreviousClose: 100, Currency: domain.CurrencyJPY, Source: domain.QuoteSourceLive},
	}

	_, categories, _ := e.Valuate(Input{Holdings: holdings, Quotes: quotes, ExchangeRate: jpyRate(150), Now: time.Now()})

	for _, c := range categories {
		assert.Equal(t, 0.0, c.Percentage)
	}
}

func TestValuate_DayChange(t *testing.T) {
	e := NewEngine(domain.CurrencyJPY, zerolog.Nop())

	holdings := []domain.Holding{
		{Symbol: "7203.T", Category: domain.CategoryDomesticEquity, Currency: domain.CurrencyJPY, Quantity: 100, AvgCost: 2400},
	}
	quotes := map[string]domain.Quote{
		"7203.T": {Price: 2856, PreviousClose: 2800, Currency: domain.CurrencyJPY, Source: domain.QuoteSourceLive},
	}

	enriched, _, summary := e.Valuate(Input{Holdings: holdings, Quotes: quotes, ExchangeRate: jpyRate(150), Now: time.Now()})

	require.Len(t, enriched, 1)
	assert.Equal(t, 5600.0, enriched[0].DayChange)
	assert.Equal(t, 5600.0, summary.DayChange)
	assert.InDelta(t, 5600.0/280000.0*100, summary.DayChangePercent, 1e-9)
}

func TestValuate_MissingPreviousCloseMeansZeroDayChange(t *testing.T) {
	e := NewEngine(domain.CurrencyJPY, zerolog.Nop())

	holdings := []domain.Holding{
		{Symbol: "X", Category: domain.CategoryDomesticEquity, Currency: domain.CurrencyJPY, Quantity: 10, AvgCost: 90},
	}
	quotes := map[string]domain.Quote{
		"X": {Price: 100, PreviousClose: 0, Currency: domain.CurrencyJPY, Source: domain.QuoteSourceLive},
	}

	enriched, _, summary := e.Valuate(Input{Holdings: holdings, Quotes: quotes, ExchangeRate: jpyRate(150), Now: time.Now()})

	assert.Equal(t, 0.0, enriched[0].DayChange)
	assert.Equal(t, 0.0, summary.DayChange)
}

func TestValuate_YTDSumsConvertPerRecord(t *testing.T) {
	e := NewEngine(domain.CurrencyJPY, zerolog.Nop())
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	txns := []domain.Transaction{
		{Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Currency: domain.CurrencyJPY, RealizedPL: 20000},
		{Date: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), Currency: domain.CurrencyUSD, RealizedPL: 100},
		// Previous year: excluded.
		{Date: time.Date(2025, 12, 30, 0, 0, 0, 0, time.UTC), Currency: domain.CurrencyJPY, RealizedPL: 99999},
	}
	dividends := []domain.Dividend{
		{Date: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), Currency: domain.CurrencyUSD, Amount: 12.5},
		{Date: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), Currency: domain.CurrencyJPY, Amount: 3000},
	}

	_, _, summary := e.Valuate(Input{
		ExchangeRate: jpyRate(150),
		Transactions: txns,
		Dividends:    dividends,
		Now:          now,
	})

	assert.Equal(t, 20000.0+100*150, summary.YTDRealizedPL)
	assert.Equal(t, 12.5*150+3000, summary.YTDDividends)
}

func TestValuate_AggregatePLPercentNotAveraged(t *testing.T) {
	e := NewEngine(domain.CurrencyJPY, zerolog.Nop())

	// Small position +100%, large position -10%. Averaging percentages
	// would give +45%; the aggregate must be dominated by the large one.
	holdings := []domain.Holding{
		{Symbol: "SMALL", Category: domain.CategoryDomesticEquity, Currency: domain.CurrencyJPY, Quantity: 1, AvgCost: 100},
		{Symbol: "LARGE", Category: domain.CategoryDomesticEquity, Currency: domain.CurrencyJPY, Quantity: 1000, AvgCost: 100},
	}
	quotes := map[string]domain.Quote{
		"SMALL": {Price: 200, PreviousClose: 200, Currency: domain.CurrencyJPY, Source: domain.QuoteSourceLive},
		"LARGE": {Price: 90, PreviousClose: 90, Currency: domain.CurrencyJPY, Source: domain.QuoteSourceLive},
	}

	_, _, summary := e.Valuate(Input{Holdings: holdings, Quotes: quotes, ExchangeRate: jpyRate(150), Now: time.Now()})

	// (100 - 10000) / 100100 * 100
	assert.InDelta(t, -9900.0/100100.0*100, summary.TotalUnrealizedPLPc, 1e-9)
}

func TestValuate_BaseCurrencyNeverConverted(t *testing.T) {
	e := NewEngine(domain.CurrencyUSD, zerolog.Nop())

	holdings := []domain.Holding{
		{Symbol: "AAPL", Category: domain.CategoryForeignEquity, Currency: domain.CurrencyUSD, Quantity: 50, AvgCost: 150},
	}
	quotes := map[string]domain.Quote{
		"AAPL": {Symbol: "AAPL", Price: 182.5, PreviousClose: 182.5, Currency: domain.CurrencyUSD, Source: domain.QuoteSourceLive},
	}

	enriched, _, summary := e.Valuate(Input{Holdings: holdings, Quotes: quotes, ExchangeRate: jpyRate(150), Now: time.Now()})

	// Holdings already in the base currency pass through with factor 1.
	require.Len(t, enriched, 1)
	assert.Equal(t, enriched[0].TotalValue, enriched[0].TotalValueJPY)
	assert.Equal(t, 182.5*50, summary.TotalValue)
}
