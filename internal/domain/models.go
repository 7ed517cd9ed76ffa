// Package domain provides core domain models and types.
package domain

import "time"

// Currency represents a currency code
type Currency string

const (
	CurrencyJPY Currency = "JPY"
	CurrencyUSD Currency = "USD"
)

// AssetCategory classifies a holding or declared asset
type AssetCategory string

const (
	CategoryDomesticEquity AssetCategory = "domestic_equity"
	CategoryForeignEquity  AssetCategory = "foreign_equity"
	CategoryFund           AssetCategory = "fund"
	CategoryCash           AssetCategory = "cash"
	CategoryBond           AssetCategory = "bond"
	CategoryRealEstate     AssetCategory = "real_estate"
	CategoryCrypto         AssetCategory = "crypto"
	CategoryInsurance      AssetCategory = "insurance"
	CategoryPension        AssetCategory = "pension"
)

// Label returns the display label for a category
func (c AssetCategory) Label() string {
	switch c {
	case CategoryDomesticEquity:
		return "国内株式"
	case CategoryForeignEquity:
		return "海外株式"
	case CategoryFund:
		return "投資信託"
	case CategoryCash:
		return "現金・預金"
	case CategoryBond:
		return "債券"
	case CategoryRealEstate:
		return "不動産"
	case CategoryCrypto:
		return "暗号資産"
	case CategoryInsurance:
		return "保険"
	case CategoryPension:
		return "年金"
	default:
		return string(c)
	}
}

// AccountType is the tax classification of the account holding a position
type AccountType string

const (
	AccountTaxable AccountType = "taxable"
	AccountNISA    AccountType = "nisa"
	AccountIDeCo   AccountType = "ideco"
)

// QuoteSource indicates how a quote was obtained
type QuoteSource string

const (
	QuoteSourceLive      QuoteSource = "live"
	QuoteSourceCache     QuoteSource = "cache"
	QuoteSourceCostBasis QuoteSource = "cost_basis"
)

// DegradationTier indicates which fallback tier produced the quote map.
// Tiers are ranked: Live is preferred, CostBasis is the final backstop.
type DegradationTier string

const (
	TierLive      DegradationTier = "live"
	TierCache     DegradationTier = "cache"
	TierCostBasis DegradationTier = "cost_basis"
)

// Holding represents a tradable position in the portfolio.
// Holdings are recorded by the transaction layer and are read-only
// to the valuation pipeline.
type Holding struct {
	CreatedAt   time.Time     `json:"created_at"`
	ID          string        `json:"id"`
	Symbol      string        `json:"symbol"`
	Name        string        `json:"name"`
	Category    AssetCategory `json:"category"`
	Currency    Currency      `json:"currency"`
	AccountType AccountType   `json:"account_type"`
	Quantity    float64       `json:"quantity"`
	AvgCost     float64       `json:"avg_cost"`
}

// Quote is a resolved price for one holding symbol.
// Quotes are built fresh per valuation request and never persisted as-is;
// the store keeps its own daily snapshot rows.
type Quote struct {
	Symbol        string      `json:"symbol"`
	Name          string      `json:"name,omitempty"`
	Currency      Currency    `json:"currency"`
	Source        QuoteSource `json:"source"`
	Price         float64     `json:"price"`
	PreviousClose float64     `json:"previous_close"`
}

// ExchangeRate is a USD to JPY conversion rate with provenance
type ExchangeRate struct {
	Date   time.Time `json:"date"`
	Source string    `json:"source"`
	Rate   float64   `json:"rate"`
}

// OtherAsset is a non-tradable declared asset valued at a manual amount
type OtherAsset struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Category AssetCategory `json:"category"`
	Currency Currency      `json:"currency"`
	Value    float64       `json:"value"`
}

// Transaction is an externally recorded trade. The valuation pipeline
// reads transactions only to sum realized P&L for the current year.
type Transaction struct {
	Date       time.Time `json:"date"`
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Currency   Currency  `json:"currency"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	RealizedPL float64   `json:"realized_pl"`
}

// Dividend is an externally recorded dividend payment
type Dividend struct {
	Date     time.Time `json:"date"`
	ID       string    `json:"id"`
	Symbol   string    `json:"symbol"`
	Currency Currency  `json:"currency"`
	Amount   float64   `json:"amount"`
}

// EnrichedHolding is a holding decorated with its resolved valuation
type EnrichedHolding struct {
	Holding
	CurrentPrice        float64     `json:"current_price"`
	TotalValue          float64     `json:"total_value"`
	TotalValueJPY       float64     `json:"total_value_jpy"`
	UnrealizedPL        float64     `json:"unrealized_pl"`
	UnrealizedPLPercent float64     `json:"unrealized_pl_percent"`
	DayChange           float64     `json:"day_change"`
	QuoteSource         QuoteSource `json:"quote_source"`
}

// CategorySummary is a per-category roll-up of JPY values
type CategorySummary struct {
	Category   AssetCategory `json:"category"`
	Label      string        `json:"label"`
	Value      float64       `json:"value"`
	Percentage float64       `json:"percentage"`
}

// PortfolioSummary aggregates the portfolio into single JPY totals
type PortfolioSummary struct {
	TotalValue          float64 `json:"total_value"`
	DayChange           float64 `json:"day_change"`
	DayChangePercent    float64 `json:"day_change_percent"`
	TotalUnrealizedPL   float64 `json:"total_unrealized_pl"`
	TotalUnrealizedPLPc float64 `json:"total_unrealized_pl_percent"`
	YTDRealizedPL       float64 `json:"ytd_realized_pl"`
	YTDDividends        float64 `json:"ytd_dividends"`
}

// Snapshot is the full valuation output consumed by the presentation layer
type Snapshot struct {
	GeneratedAt  time.Time         `json:"generated_at"`
	Holdings     []EnrichedHolding `json:"holdings"`
	Categories   []CategorySummary `json:"categories"`
	Summary      PortfolioSummary  `json:"summary"`
	ExchangeRate ExchangeRate      `json:"exchange_rate"`
	Tier         DegradationTier   `json:"tier"`
}
