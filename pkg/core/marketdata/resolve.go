package marketdata

import "strings"

// Exchange suffixes the provider expects for non-primary listings.
var exchangeSuffixes = map[string]string{
	"TSX":  ".TO",
	"TSXV": ".V",
}

// ResolveSymbol maps an internal (ticker, exchange) pair to the provider's
// symbol format. Internal tickers use "." as the share-class and unit-trust
// separator ("BRK.B", "RioCan REIT = REI.UN"); the provider uses "-" for the
// class separator and a market suffix for non-US listings ("REI-UN.TO").
// Tickers already carrying their market suffix pass through unchanged.
func ResolveSymbol(ticker, exchange string) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return ticker
	}

	suffix := exchangeSuffixes[strings.ToUpper(exchange)]

	// Already suffixed: never double-suffix.
	if suffix != "" && strings.HasSuffix(ticker, suffix) {
		return ticker
	}

	// Separate class/unit designators: "BRK.B" -> "BRK-B", "REI.UN" -> "REI-UN".
	// A designator is a short trailing element, which is how it is told apart
	// from a market suffix that was typed in directly.
	base := ticker
	if i := strings.LastIndex(ticker, "."); i > 0 {
		designator := ticker[i+1:]
		if len(designator) <= 2 {
			base = ticker[:i] + "-" + designator
		}
	}

	return base + suffix
}
