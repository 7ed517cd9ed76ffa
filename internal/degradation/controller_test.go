package degradation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shisan/internal/domain"
)

type stubFetcher struct {
	quotes map[string]domain.Quote
}

func (f *stubFetcher) FetchAll(ctx context.Context, holdings []domain.Holding) map[string]domain.Quote {
	return f.quotes
}

// MockQuoteStore is a mock quote store for testing
type MockQuoteStore struct {
	mock.Mock
}

func (m *MockQuoteStore) ReadLatestQuotes(ctx context.Context) (map[string]domain.Quote, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Quote), args.Error(1)
}

func (m *MockQuoteStore) AppendQuoteSnapshot(ctx context.Context, symbol string, price float64, currency domain.Currency, date time.Time) error {
	args := m.Called(ctx, symbol, price, currency, date)
	return args.Error(0)
}

func testHoldings() []domain.Holding {
	return []domain.Holding{
		{Symbol: "7203.T", Currency: domain.CurrencyJPY, Quantity: 100, AvgCost: 2400},
		{Symbol: "AAPL", Currency: domain.CurrencyUSD, Quantity: 10, AvgCost: 150},
	}
}

func TestResolve_LiveTier(t *testing.T) {
	fetcher := &stubFetcher{quotes: map[string]domain.Quote{
		"7203.T": {Symbol: "7203.T", Price: 2856, PreviousClose: 2800, Currency: domain.CurrencyJPY, Source: domain.QuoteSourceLive},
		"AAPL":   {Symbol: "AAPL", Price: 182.5, PreviousClose: 181, Currency: domain.CurrencyUSD, Source: domain.QuoteSourceLive},
	}}
	store := &MockQuoteStore{}

	c := NewController(fetcher, store, zerolog.Nop())
	quotes, tier := c.Resolve(context.Background(), testHoldings())

	assert.Equal(t, domain.TierLive, tier)
	assert.Len(t, quotes, 2)
	assert.Equal(t, domain.QuoteSourceLive, quotes["7203.T"].Source)
	store.AssertNotCalled(t, "ReadLatestQuotes", mock.Anything)
}

func TestResolve_LiveTierPatchesMissingSymbolsIndividually(t *testing.T) {
	// One live quote is enough to stay on the live tier; the missing
	// symbol degrades to cost basis on its own.
	fetcher := &stubFetcher{quotes: map[string]domain.Quote{
		"7203.T": {Symbol: "7203.T", Price: 2856, PreviousClose: 2800, Currency: domain.CurrencyJPY, Source: domain.QuoteSourceLive},
	}}
	store := &MockQuoteStore{}

	c := NewController(fetcher, store, zerolog.Nop())
	quotes, tier := c.Resolve(context.Background(), testHoldings())

	assert.Equal(t, domain.TierLive, tier)
	require.Contains(t, quotes, "AAPL")
	assert.Equal(t, domain.QuoteSourceCostBasis, quotes["AAPL"].Source)
	assert.Equal(t, 150.0, quotes["AAPL"].Price)
}

func TestResolve_CacheTier(t *testing.T) {
	fetcher := &stubFetcher{quotes: map[string]domain.Quote{}}
	store := &MockQuoteStore{}
	store.On("ReadLatestQuotes", mock.Anything).Return(map[string]domain.Quote{
		"7203.T": {Symbol: "7203.T", Price: 2700, Currency: domain.CurrencyJPY},
		"AAPL":   {Symbol: "AAPL", Price: 180, Currency: domain.CurrencyUSD},
	}, nil)

	c := NewController(fetcher, store, zerolog.Nop())
	quotes, tier := c.Resolve(context.Background(), testHoldings())

	assert.Equal(t, domain.TierCache, tier)
	assert.Len(t, quotes, 2)
	assert.Equal(t, domain.QuoteSourceCache, quotes["7203.T"].Source)
	// Cached prices carry no previous close; it falls back to the price
	// so the day change reads zero.
	assert.Equal(t, 2700.0, quotes["7203.T"].PreviousClose)
	store.AssertExpectations(t)
}

func TestResolve_CacheTierPatchesUncachedSymbols(t *testing.T) {
	fetcher := &stubFetcher{quotes: map[string]domain.Quote{}}
	store := &MockQuoteStore{}
	store.On("ReadLatestQuotes", mock.Anything).Return(map[string]domain.Quote{
		"7203.T": {Symbol: "7203.T", Price: 2700, Currency: domain.CurrencyJPY},
	}, nil)

	c := NewController(fetcher, store, zerolog.Nop())
	quotes, tier := c.Resolve(context.Background(), testHoldings())

	assert.Equal(t, domain.TierCache, tier)
	require.Contains(t, quotes, "AAPL")
	assert.Equal(t, domain.QuoteSourceCostBasis, quotes["AAPL"].Source)
}

func TestResolve_CostBasisTier(t *testing.T) {
	fetcher := &stubFetcher{quotes: map[string]domain.Quote{}}
	store := &MockQuoteStore{}
	store.On("ReadLatestQuotes", mock.Anything).Return(nil, errors.New("database locked"))

	c := NewController(fetcher, store, zerolog.Nop())
	quotes, tier := c.Resolve(context.Background(), testHoldings())

	assert.Equal(t, domain.TierCostBasis, tier)
	assert.Len(t, quotes, 2)
	for _, h := range testHoldings() {
		q := quotes[h.Symbol]
		assert.Equal(t, domain.QuoteSourceCostBasis, q.Source)
		assert.Equal(t, h.AvgCost, q.Price)
		assert.Equal(t, h.AvgCost, q.PreviousClose)
	}
}

func TestResolve_EmptyCacheFallsToCostBasis(t *testing.T) {
	fetcher := &stubFetcher{quotes: map[string]domain.Quote{}}
	store := &MockQuoteStore{}
	store.On("ReadLatestQuotes", mock.Anything).Return(map[string]domain.Quote{}, nil)

	c := NewController(fetcher, store, zerolog.Nop())
	_, tier := c.Resolve(context.Background(), testHoldings())

	assert.Equal(t, domain.TierCostBasis, tier)
}

func TestResolve_QuoteMapAlwaysCoversEveryHolding(t *testing.T) {
	cases := []struct {
		name    string
		fetcher *stubFetcher
		setup   func(*MockQuoteStore)
	}{
		{"live partial", &stubFetcher{quotes: map[string]domain.Quote{
			"7203.T": {Symbol: "7203.T", Price: 2856, Currency: domain.CurrencyJPY, Source: domain.QuoteSourceLive},
		}}, func(m *MockQuoteStore) {}},
		{"cache partial", &stubFetcher{quotes: map[string]domain.Quote{}}, func(m *MockQuoteStore) {
			m.On("ReadLatestQuotes", mock.Anything).Return(map[string]domain.Quote{
				"AAPL": {Symbol: "AAPL", Price: 180, Currency: domain.CurrencyUSD},
			}, nil)
		}},
		{"store down", &stubFetcher{quotes: map[string]domain.Quote{}}, func(m *MockQuoteStore) {
			m.On("ReadLatestQuotes", mock.Anything).Return(nil, errors.New("unreachable"))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &MockQuoteStore{}
			tc.setup(store)
			c := NewController(tc.fetcher, store, zerolog.Nop())

			quotes, _ := c.Resolve(context.Background(), testHoldings())

			for _, h := range testHoldings() {
				assert.Contains(t, quotes, h.Symbol)
			}
		})
	}
}
