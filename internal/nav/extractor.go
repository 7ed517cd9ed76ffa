// Package nav extracts a fund's net asset value from unstructured
// third-party markup.
//
// Fund pages render the same logical field in several ways depending on
// page variant and A/B state, so extraction runs an ordered cascade of
// independent pattern strategies, most specific first. The first strategy
// that yields a strictly positive number wins. Zero is never accepted as
// a price: a zero parse looks valid but is always wrong, so it falls
// through to the next strategy.
package nav

import (
	"regexp"
	"strconv"
	"strings"
)

// strategy is one (pattern, parse) extraction attempt. Patterns capture
// the numeric text in group 1.
type strategy struct {
	name    string
	pattern *regexp.Regexp
}

// priceStrategies is evaluated in order. Most reliable renderings first,
// generic data attributes last to minimize false positives.
var priceStrategies = []strategy{
	// Labelled numeric field: 基準価額 12,345 円
	{"labelled_field", regexp.MustCompile(`基準価額[^0-9\-]{0,40}?([0-9][0-9,]*(?:\.[0-9]+)?)`)},
	// Currency-suffixed numeric: 12,345円
	{"currency_suffix", regexp.MustCompile(`([0-9][0-9,]*(?:\.[0-9]+)?)\s*円`)},
	// Keyword-prefixed numeric: NAV: 12345 / 価額 12345
	{"keyword_prefix", regexp.MustCompile(`(?i)(?:NAV|価額)[^0-9]{0,20}?([0-9][0-9,]*(?:\.[0-9]+)?)`)},
	// Metadata/description field: <meta ... content="... 12,345 ...">
	{"meta_description", regexp.MustCompile(`<meta[^>]+(?:description|price)[^>]+content="[^"0-9]*([0-9][0-9,]*(?:\.[0-9]+)?)`)},
	// Generic data attribute: data-price="12345"
	{"data_attribute", regexp.MustCompile(`data-[a-z]*(?:price|value|nav)[a-z]*="([0-9][0-9,]*(?:\.[0-9]+)?)"`)},
}

// titlePattern captures the first text run of a title-like field up to an
// opening bracket, which fund pages use to append the share class.
var titlePattern = regexp.MustCompile(`<title>\s*([^<（(【\[]+)`)

// changePattern captures a signed numeric following a previous-day
// comparison label (前日比 +25 円 / 前日比 -130).
var changePattern = regexp.MustCompile(`前日比[^0-9+\-]{0,20}?([+\-]?[0-9][0-9,]*(?:\.[0-9]+)?)`)

// ExtractPrice recovers the NAV from a raw fund document.
// Returns false when no strategy yields a strictly positive value;
// callers treat that exactly like a fetch failure.
func ExtractPrice(doc string) (float64, bool) {
	for _, s := range priceStrategies {
		m := s.pattern.FindStringSubmatch(doc)
		if m == nil {
			continue
		}
		price, err := parseNumber(m[1])
		if err != nil || price <= 0 {
			continue
		}
		return price, true
	}
	return 0, false
}

// ExtractName recovers the fund display name from a title-like field.
// Returns the empty string when no title is present.
func ExtractName(doc string) string {
	m := titlePattern.FindStringSubmatch(doc)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ExtractChange recovers the day-over-day change value.
// Absence is not an error: it defaults to zero so previous close
// falls back to the current price.
func ExtractChange(doc string) float64 {
	m := changePattern.FindStringSubmatch(doc)
	if m == nil {
		return 0
	}
	change, err := parseNumber(m[1])
	if err != nil {
		return 0
	}
	return change
}

// parseNumber parses a numeric string after stripping comma thousands
// separators
func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}
