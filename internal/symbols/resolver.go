// Package symbols normalizes raw holding symbols into canonical fetch keys
// and deduplicates redundant lookups before any network access.
package symbols

import (
	"regexp"

	"github.com/rs/zerolog"
)

// tokyoBrokerSuffix matches a Tokyo exchange code (4 digits plus optional
// letter, ".T" market suffix) followed by a broker-specific suffix, e.g.
// "7203.T-rakuten" or "1234A.T-sbi". Only the broker part is stripped;
// anything else (foreign tickers like "AAPL") passes through unchanged.
var tokyoBrokerSuffix = regexp.MustCompile(`^(\d{4}[A-Z]?\.T)-[A-Za-z0-9_]+$`)

// Resolver maps holding symbols to fetch keys. Fund mappings are static
// configuration: multiple holdings (e.g. distributing and reinvesting
// share classes) may share one fund code and therefore one NAV.
type Resolver struct {
	fundCodes map[string]string // holding symbol -> fund code
	log       zerolog.Logger
}

// NewResolver creates a resolver with the given fund code mappings
func NewResolver(fundCodes map[string]string, log zerolog.Logger) *Resolver {
	if fundCodes == nil {
		fundCodes = map[string]string{}
	}
	return &Resolver{
		fundCodes: fundCodes,
		log:       log.With().Str("service", "symbols").Logger(),
	}
}

// Normalize strips any broker-specific suffix from an exchange-traded
// symbol, returning the canonical fetch key
func (r *Resolver) Normalize(symbol string) string {
	if m := tokyoBrokerSuffix.FindStringSubmatch(symbol); m != nil {
		return m[1]
	}
	return symbol
}

// FundCode resolves a holding symbol to its fund code.
// Returns false when the symbol has no mapping; the caller logs and
// excludes it from fetching so the holding falls through to cost basis.
func (r *Resolver) FundCode(symbol string) (string, bool) {
	code, ok := r.fundCodes[symbol]
	return code, ok
}

// KeyPair associates an original holding symbol with its fetch key
type KeyPair struct {
	Symbol   string
	FetchKey string
}

// Dedupe collapses repeated fetch keys into a unique, order-preserving
// list and returns the reverse mapping from fetch key back to every
// original holding symbol, so one fetched result can re-populate all of
// them.
func Dedupe(pairs []KeyPair) ([]string, map[string][]string) {
	unique := make([]string, 0, len(pairs))
	reverse := make(map[string][]string, len(pairs))

	for _, p := range pairs {
		if _, seen := reverse[p.FetchKey]; !seen {
			unique = append(unique, p.FetchKey)
		}
		reverse[p.FetchKey] = append(reverse[p.FetchKey], p.Symbol)
	}

	return unique, reverse
}
