package domain

import (
	"context"
	"time"
)

// EquityQuoteProvider fetches a live quote for one exchange-traded symbol.
// Implementations wrap a third-party endpoint; any failure (timeout,
// non-success status, malformed payload) is returned as an error and the
// caller degrades that single symbol.
type EquityQuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}

// FundDocumentProvider fetches the raw document for a fund code.
// The document is unstructured third-party markup; price extraction
// is the NAV extractor's job, not the provider's.
type FundDocumentProvider interface {
	GetDocument(ctx context.Context, fundCode string) (string, error)
}

// RateProvider resolves the USD to JPY conversion rate from one source
type RateProvider interface {
	Name() string
	GetUSDJPY(ctx context.Context) (ExchangeRate, error)
}

// HoldingReader reads the current portfolio holdings
type HoldingReader interface {
	ReadHoldings(ctx context.Context) ([]Holding, error)
}

// QuoteStore reads and appends persisted daily quote snapshots
type QuoteStore interface {
	// ReadLatestQuotes returns the most recent persisted price per symbol.
	ReadLatestQuotes(ctx context.Context) (map[string]Quote, error)
	AppendQuoteSnapshot(ctx context.Context, symbol string, price float64, currency Currency, date time.Time) error
}

// RateStore appends resolved exchange rates for history
type RateStore interface {
	AppendExchangeRate(ctx context.Context, rate float64, date time.Time) error
}

// LedgerReader reads externally recorded assets, trades and dividends
type LedgerReader interface {
	ReadOtherAssets(ctx context.Context) ([]OtherAsset, error)
	ReadTransactionsSince(ctx context.Context, since time.Time) ([]Transaction, error)
	ReadDividendsSince(ctx context.Context, since time.Time) ([]Dividend, error)
}
