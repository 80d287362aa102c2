// Package numeric holds the derivation primitives shared by snapshot and
// thesis building. Everything routes through decimal.NullDecimal so a missing
// input stays missing instead of collapsing to zero.
package numeric

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Stored column precision.
const (
	MoneyPlaces = 2
	RatioPlaces = 4
)

// SafeDivide returns num/den rounded to ratio precision, or absent when
// either operand is missing or the denominator is zero. Every stored ratio
// goes through this function; no ratio is ever computed as zero-on-missing.
func SafeDivide(num, den decimal.NullDecimal) decimal.NullDecimal {
	if !num.Valid || !den.Valid || den.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(num.Decimal.DivRound(den.Decimal, RatioPlaces))
}

// FromAny coerces a provider- or model-supplied value to a decimal. String
// and json.Number inputs parse without a float round trip so precision is
// kept. Anything absent or unparseable comes back absent.
func FromAny(v any) decimal.NullDecimal {
	switch x := v.(type) {
	case nil:
		return decimal.NullDecimal{}
	case decimal.Decimal:
		return decimal.NewNullDecimal(x)
	case decimal.NullDecimal:
		return x
	case string:
		return fromString(x)
	case json.Number:
		return fromString(x.String())
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(x))
	case float32:
		return decimal.NewNullDecimal(decimal.NewFromFloat32(x))
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(x)))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(x))
	default:
		return decimal.NullDecimal{}
	}
}

func fromString(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || s == "N/A" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// FromFloatPtr converts an optional float, keeping nil as absent.
func FromFloatPtr(f *float64) decimal.NullDecimal {
	if f == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*f))
}

// Money rounds to currency precision, passing absence through.
func Money(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(d.Decimal.Round(MoneyPlaces))
}

// Ratio rounds to ratio precision, passing absence through.
func Ratio(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(d.Decimal.Round(RatioPlaces))
}

// Display formats a value for prompts, with "N/A" standing in for absence so
// the model never mistakes missing data for zero.
func Display(d decimal.NullDecimal) string {
	if !d.Valid {
		return "N/A"
	}
	return d.Decimal.String()
}

// Sum adds the present values and reports how many were present. Absent
// entries count toward neither the total nor the count.
func Sum(values []decimal.NullDecimal) (decimal.Decimal, int) {
	total := decimal.Zero
	present := 0
	for _, v := range values {
		if v.Valid {
			total = total.Add(v.Decimal)
			present++
		}
	}
	return total, present
}

// ParseYear parses a calendar-year string, falling back to def (normally the
// current year) when absent or malformed.
func ParseYear(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	year, err := strconv.Atoi(s)
	if err != nil || year < 1900 || year > time.Now().Year()+1 {
		return def
	}
	return year
}
