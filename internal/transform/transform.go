// Package transform normalizes heterogeneous source payloads into
// row-uniform, dimensionally-keyed records ready for the warehouse stores.
package transform

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// zeroTime marks "no timestamp": derivers substitute the current moment in
// the configured zone.
var zeroTime time.Time

// cleanPercent parses a human-formatted percent string ("12.5%") into its
// numeric value. Unparsable values coerce to zero.
func cleanPercent(value string) float64 {
	trimmed := strings.TrimSuffix(strings.TrimSpace(value), "%")
	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0
	}
	return parsed.InexactFloat64()
}

// stripThousands removes thousands separators from a numeric string.
func stripThousands(value string) string {
	return strings.ReplaceAll(value, ",", "")
}

// roundTo2 coerces a numeric string to a two-decimal float.
func roundTo2(value string) (float64, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return parsed.Round(2).InexactFloat64(), nil
}
