// Package fetcher performs batched, rate-limited retrieval of live prices
// for exchange-traded instruments and fund codes.
//
// Requests run in fixed-size batches. Within a batch all fetches run in
// parallel; each goroutine writes a disjoint slot of the results slice, so
// no locking is needed. Batches run sequentially with an enforced pause in
// between to avoid bursty traffic against shared third-party endpoints.
// Every individual failure becomes "no quote for this key" and never
// aborts the batch or its siblings.
package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"shisan/internal/domain"
	"shisan/internal/nav"
	"shisan/internal/symbols"
)

const (
	batchSize        = 5
	equityBatchPause = 200 * time.Millisecond
	fundBatchPause   = 500 * time.Millisecond
)

// Fetcher resolves live quotes for a set of holdings
type Fetcher struct {
	resolver *symbols.Resolver
	equities domain.EquityQuoteProvider
	funds    domain.FundDocumentProvider
	log      zerolog.Logger

	// Pauses are fields so tests can zero them out.
	equityPause time.Duration
	fundPause   time.Duration
}

// New creates a fetcher over the given providers
func New(resolver *symbols.Resolver, equities domain.EquityQuoteProvider, funds domain.FundDocumentProvider, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		resolver:    resolver,
		equities:    equities,
		funds:       funds,
		log:         log.With().Str("service", "fetcher").Logger(),
		equityPause: equityBatchPause,
		fundPause:   fundBatchPause,
	}
}

// SetPauses overrides the inter-batch pauses (for testing)
func (f *Fetcher) SetPauses(equity, fund time.Duration) {
	f.equityPause = equity
	f.fundPause = fund
}

// FetchAll retrieves live quotes for all tradable holdings.
// The returned map is keyed by the canonical holding symbol and is a
// best-effort partial map: callers must not assume full coverage.
func (f *Fetcher) FetchAll(ctx context.Context, holdings []domain.Holding) map[string]domain.Quote {
	var equityPairs, fundPairs []symbols.KeyPair

	for _, h := range holdings {
		if h.Quantity <= 0 {
			continue
		}
		if h.Category == domain.CategoryFund {
			code, ok := f.resolver.FundCode(h.Symbol)
			if !ok {
				f.log.Warn().Str("symbol", h.Symbol).Msg("No fund code mapping, holding will fall back to cost basis")
				continue
			}
			fundPairs = append(fundPairs, symbols.KeyPair{Symbol: h.Symbol, FetchKey: code})
			continue
		}
		equityPairs = append(equityPairs, symbols.KeyPair{Symbol: h.Symbol, FetchKey: f.resolver.Normalize(h.Symbol)})
	}

	quotes := make(map[string]domain.Quote)

	equityKeys, equityReverse := symbols.Dedupe(equityPairs)
	f.fetchBatches(ctx, equityKeys, f.equityPause, f.fetchEquity, equityReverse, quotes)

	fundKeys, fundReverse := symbols.Dedupe(fundPairs)
	f.fetchBatches(ctx, fundKeys, f.fundPause, f.fetchFund, fundReverse, quotes)

	f.log.Info().
		Int("holdings", len(holdings)).
		Int("quotes", len(quotes)).
		Msg("Fetch complete")

	return quotes
}

// fetchBatches runs fetchOne over keys in fixed-size parallel batches and
// merges each fetched result into quotes for every holding symbol behind
// the fetch key.
func (f *Fetcher) fetchBatches(
	ctx context.Context,
	keys []string,
	pause time.Duration,
	fetchOne func(ctx context.Context, key string) *domain.Quote,
	reverse map[string][]string,
	quotes map[string]domain.Quote,
) {
	for start := 0; start < len(keys); start += batchSize {
		end := start + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]

		results := make([]*domain.Quote, len(batch))
		var wg sync.WaitGroup
		for i, key := range batch {
			wg.Add(1)
			go func(i int, key string) {
				defer wg.Done()
				results[i] = fetchOne(ctx, key)
			}(i, key)
		}
		wg.Wait()

		// Merge only after the batch barrier: each holding symbol behind
		// a fetch key gets the same fetched result.
		for i, key := range batch {
			if results[i] == nil {
				continue
			}
			for _, symbol := range reverse[key] {
				q := *results[i]
				q.Symbol = symbol
				quotes[symbol] = q
			}
		}

		if end < len(keys) && pause > 0 {
			select {
			case <-time.After(pause):
			case <-ctx.Done():
				return
			}
		}
	}
}

// fetchEquity fetches one exchange-traded quote, converting any failure
// into absence
func (f *Fetcher) fetchEquity(ctx context.Context, fetchKey string) *domain.Quote {
	quote, err := f.equities.GetQuote(ctx, fetchKey)
	if err != nil {
		f.log.Warn().Err(err).Str("fetch_key", fetchKey).Msg("Equity quote failed")
		return nil
	}
	return &quote
}

// fetchFund fetches one fund document and extracts its NAV, converting
// any failure (including extraction ambiguity) into absence
func (f *Fetcher) fetchFund(ctx context.Context, fundCode string) *domain.Quote {
	doc, err := f.funds.GetDocument(ctx, fundCode)
	if err != nil {
		f.log.Warn().Err(err).Str("fund_code", fundCode).Msg("Fund document fetch failed")
		return nil
	}

	price, ok := nav.ExtractPrice(doc)
	if !ok {
		f.log.Warn().Str("fund_code", fundCode).Msg("No NAV found in fund document")
		return nil
	}

	// True previous close when the page carries a day change, otherwise
	// previous close equals current price and the day change is zero.
	previousClose := price - nav.ExtractChange(doc)
	if previousClose <= 0 {
		previousClose = price
	}

	return &domain.Quote{
		Name:          nav.ExtractName(doc),
		Currency:      domain.CurrencyJPY,
		Source:        domain.QuoteSourceLive,
		Price:         price,
		PreviousClose: previousClose,
	}
}
