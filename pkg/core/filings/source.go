// Package filings retrieves filing metadata and raw content from
// jurisdiction-specific repositories and turns marked-up documents into
// plain text bounded to the narrative context budget.
package filings

import "context"

// MaxFilings caps every listing to bound downstream work.
const MaxFilings = 5

// Filing is one filing descriptor as returned by a repository listing.
type Filing struct {
	Ref        string `json:"ref"`  // accession number or registry reference
	Type       string `json:"type"` // 10-Q, 10-K, AIF, ...
	FilingDate string `json:"filing_date"` // YYYY-MM-DD
	URL        string `json:"url"`  // canonical primary document URL
}

// AnnualTypes are the filing types that trigger business-profile refresh.
var AnnualTypes = map[string]bool{
	"10-K": true,
	"AIF":  true,
}

// IsAnnual reports whether a filing type is an annual-type filing.
func IsAnnual(filingType string) bool {
	return AnnualTypes[filingType]
}

// Source is one jurisdiction's filing repository. Jurisdictions without an
// implemented integration return an empty list rather than failing.
type Source interface {
	Name() string
	ListRecent(ctx context.Context, filerRef, filingType string) ([]Filing, error)
	Download(ctx context.Context, url string) ([]byte, error)
}
