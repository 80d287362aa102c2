// Package narrative wraps the single LLM call pattern used for all generated
// artifacts: render a named template, call the model with a JSON-only
// instruction, parse the response defensively, validate it against a schema
// struct, and serialize list fields to their stored JSON-text form.
package narrative

import "github.com/shopspring/decimal"

// PriorCaseLimit caps how much of each prior scenario is carried into the
// drift prompt.
const PriorCaseLimit = 500

// CompanyInfo is the identity block included in every prompt.
type CompanyInfo struct {
	Name     string
	Ticker   string
	Exchange string
	Sector   string
	Industry string
}

// SnapshotFigures carries display-formatted financials. Missing values are
// the literal string "N/A", never "0".
type SnapshotFigures struct {
	FiscalPeriod       string
	Revenue            string
	NetIncome          string
	EBITDA             string
	EPSDiluted         string
	GrossMargin        string
	OperatingMargin    string
	FreeCashFlow       string
	TotalDebt          string
	CashAndEquivalents string
	DebtToEquity       string
}

// ProfileContext is the summary of the current business profile fed into
// thesis generation. Zero value means no profile exists yet.
type ProfileContext struct {
	Description         string
	BusinessModel       string
	CompetitivePosition string
	MoatAssessment      string
}

// PriorThesis grounds drift assessment in the previous version's scenarios.
type PriorThesis struct {
	Version  int
	BullCase string
	BaseCase string
	BearCase string
}

// profileDraft is the raw model output schema for a business profile.
type profileDraft struct {
	Description         string            `json:"description" validate:"required"`
	BusinessModel       string            `json:"business_model" validate:"required"`
	CompetitivePosition string            `json:"competitive_position"`
	KeyProducts         []string          `json:"key_products"`
	GeographicMix       map[string]string `json:"geographic_mix"`
	MoatAssessment      string            `json:"moat_assessment"`
	MoatSources         []string          `json:"moat_sources"`
}

// thesisDraft is the raw model output schema for a thesis version. Numeric
// fields may arrive as bare numbers or as strings, so they decode as any and
// are coerced after validation; drift fields stay empty when no prior thesis
// was supplied.
type thesisDraft struct {
	BullCase   string `json:"bull_case" validate:"required"`
	BullTarget any    `json:"bull_target"`
	BaseCase   string `json:"base_case" validate:"required"`
	BaseTarget any    `json:"base_target"`
	BearCase   string `json:"bear_case" validate:"required"`
	BearTarget any    `json:"bear_target"`

	KeyDrivers []string `json:"key_drivers"`
	KeyRisks   []string `json:"key_risks"`
	Catalysts  []string `json:"catalysts"`

	IntegrityScore     any    `json:"thesis_integrity_score"`
	IntegrityRationale string `json:"integrity_rationale"`

	DriftSummary        string `json:"drift_summary"`
	ConvictionDirection string `json:"conviction_direction" validate:"omitempty,oneof=strengthened weakened unchanged"`
}

// updateDraft is the raw model output schema for a quarterly summary.
type updateDraft struct {
	ExecutiveSummary     string   `json:"executive_summary" validate:"required"`
	KeyChanges           []string `json:"key_changes"`
	GuidanceUpdate       string   `json:"guidance_update"`
	ManagementCommentary string   `json:"management_commentary"`
}

// ProfileResult is a validated profile with list fields already serialized to
// their JSON-text storage representation.
type ProfileResult struct {
	Description         string
	BusinessModel       string
	CompetitivePosition string
	KeyProducts         string
	GeographicMix       string
	MoatAssessment      string
	MoatSources         string
}

// ThesisResult is a validated thesis with coerced numeric fields. Absent or
// unparseable numbers come back absent, not zero.
type ThesisResult struct {
	BullCase   string
	BullTarget decimal.NullDecimal
	BaseCase   string
	BaseTarget decimal.NullDecimal
	BearCase   string
	BearTarget decimal.NullDecimal

	KeyDrivers string
	KeyRisks   string
	Catalysts  string

	IntegrityScore     decimal.NullDecimal
	IntegrityRationale string

	DriftSummary        string
	ConvictionDirection string
}

// UpdateResult is a validated quarterly summary.
type UpdateResult struct {
	ExecutiveSummary     string
	KeyChanges           string
	GuidanceUpdate       string
	ManagementCommentary string
}
