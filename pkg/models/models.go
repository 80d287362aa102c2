// Package models defines the persisted entity types shared across the engine.
// Numeric fields use decimal.NullDecimal so that "absent" stays distinct from
// zero all the way from provider responses to the database and back.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Company is the root entity. Derived tables reference it with RESTRICT
// foreign keys, so a company with any derived data cannot be deleted.
type Company struct {
	ID       uuid.UUID `json:"id"`
	Ticker   string    `json:"ticker"`
	Name     string    `json:"name"`
	Exchange string    `json:"exchange"` // NYSE, NASDAQ, TSX
	Sector   string    `json:"sector"`
	Industry string    `json:"industry"`
	Currency string    `json:"currency"` // USD or CAD
	CIK      string    `json:"cik,omitempty"`      // SEC CIK for EDGAR, empty for non-US filers
	SedarID  string    `json:"sedar_id,omitempty"` // SEDAR+ profile ID, empty for non-Canadian filers
	IsActive bool      `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FinancialSnapshot is one company's reported financials for one fiscal
// period. Immutable once created; unique per (company, year, quarter).
type FinancialSnapshot struct {
	ID            uuid.UUID `json:"id"`
	CompanyID     uuid.UUID `json:"company_id"`
	FiscalYear    int       `json:"fiscal_year"`
	FiscalQuarter int       `json:"fiscal_quarter"` // 1-4
	Currency      string    `json:"currency"`

	// Income statement
	Revenue           decimal.NullDecimal `json:"revenue"`
	CostOfRevenue     decimal.NullDecimal `json:"cost_of_revenue"`
	GrossProfit       decimal.NullDecimal `json:"gross_profit"`
	OperatingIncome   decimal.NullDecimal `json:"operating_income"`
	NetIncome         decimal.NullDecimal `json:"net_income"`
	EBITDA            decimal.NullDecimal `json:"ebitda"`
	EPSDiluted        decimal.NullDecimal `json:"eps_diluted"`
	SharesOutstanding decimal.NullDecimal `json:"shares_outstanding"`

	// Balance sheet
	TotalAssets        decimal.NullDecimal `json:"total_assets"`
	TotalLiabilities   decimal.NullDecimal `json:"total_liabilities"`
	TotalEquity        decimal.NullDecimal `json:"total_equity"`
	CashAndEquivalents decimal.NullDecimal `json:"cash_and_equivalents"`
	TotalDebt          decimal.NullDecimal `json:"total_debt"`

	// Cash flow
	OperatingCashFlow   decimal.NullDecimal `json:"operating_cash_flow"`
	CapitalExpenditures decimal.NullDecimal `json:"capital_expenditures"`
	FreeCashFlow        decimal.NullDecimal `json:"free_cash_flow"`

	// Derived ratios, computed once at creation time and stored.
	GrossMargin     decimal.NullDecimal `json:"gross_margin"`
	OperatingMargin decimal.NullDecimal `json:"operating_margin"`
	NetMargin       decimal.NullDecimal `json:"net_margin"`
	ROE             decimal.NullDecimal `json:"roe"`
	DebtToEquity    decimal.NullDecimal `json:"debt_to_equity"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Segment is a business-segment revenue row owned by one snapshot.
// RevenuePct is the segment's share of the sum of segment revenues in the
// same ingestion batch, not of the snapshot's total revenue.
type Segment struct {
	ID              uuid.UUID           `json:"id"`
	SnapshotID      uuid.UUID           `json:"snapshot_id"`
	Name            string              `json:"name"`
	Revenue         decimal.NullDecimal `json:"revenue"`
	OperatingIncome decimal.NullDecimal `json:"operating_income"`
	RevenuePct      decimal.NullDecimal `json:"revenue_pct"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BusinessProfile is a versioned qualitative description of a company.
// Each version is a full independent snapshot; the current profile is the
// highest version for the company.
type BusinessProfile struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Version   int       `json:"version"`

	Description         string `json:"description"`
	BusinessModel       string `json:"business_model"`
	CompetitivePosition string `json:"competitive_position"`
	KeyProducts         string `json:"key_products"`   // JSON array as text
	GeographicMix       string `json:"geographic_mix"` // JSON object as text
	MoatAssessment      string `json:"moat_assessment"`
	MoatSources         string `json:"moat_sources"` // JSON array as text

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Conviction direction values for thesis drift tracking.
const (
	ConvictionStrengthened = "strengthened"
	ConvictionWeakened     = "weakened"
	ConvictionUnchanged    = "unchanged"
)

// ThesisVersion is one iteration of the three-scenario investment narrative.
// Versions are monotonically increasing per company and chain to their
// predecessor via PriorVersionID for drift continuity.
type ThesisVersion struct {
	ID         uuid.UUID `json:"id"`
	CompanyID  uuid.UUID `json:"company_id"`
	SnapshotID uuid.UUID `json:"snapshot_id"`
	Version    int       `json:"version"`

	BullCase   string              `json:"bull_case"`
	BullTarget decimal.NullDecimal `json:"bull_target"`
	BaseCase   string              `json:"base_case"`
	BaseTarget decimal.NullDecimal `json:"base_target"`
	BearCase   string              `json:"bear_case"`
	BearTarget decimal.NullDecimal `json:"bear_target"`

	KeyDrivers string `json:"key_drivers"` // JSON array as text
	KeyRisks   string `json:"key_risks"`   // JSON array as text
	Catalysts  string `json:"catalysts"`   // JSON array as text

	IntegrityScore     decimal.NullDecimal `json:"integrity_score"`
	IntegrityRationale string              `json:"integrity_rationale"`

	PriorVersionID      uuid.NullUUID `json:"prior_version_id"`
	DriftSummary        string        `json:"drift_summary,omitempty"`
	ConvictionDirection string        `json:"conviction_direction,omitempty"` // strengthened, weakened, unchanged

	LLMModelUsed string `json:"llm_model_used"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuarterlyUpdate is the narrative diff for one fiscal period. It exists only
// after both its snapshot and thesis are committed; unique per period.
type QuarterlyUpdate struct {
	ID              uuid.UUID `json:"id"`
	CompanyID       uuid.UUID `json:"company_id"`
	SnapshotID      uuid.UUID `json:"snapshot_id"`
	ThesisVersionID uuid.UUID `json:"thesis_version_id"`

	FiscalYear    int    `json:"fiscal_year"`
	FiscalQuarter int    `json:"fiscal_quarter"`
	FilingType    string `json:"filing_type"`

	ExecutiveSummary     string `json:"executive_summary"`
	KeyChanges           string `json:"key_changes"` // JSON array as text
	GuidanceUpdate       string `json:"guidance_update"`
	ManagementCommentary string `json:"management_commentary"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document records a raw filing we have seen. (CompanyID, SourceURL) is the
// dedup key for already-ingested filings; StorageKey and FileSizeBytes stay
// empty when the blob upload was skipped or failed.
type Document struct {
	ID            uuid.UUID `json:"id"`
	CompanyID     uuid.UUID `json:"company_id"`
	DocType       string    `json:"doc_type"` // 10-Q, 10-K, AIF, ...
	Source        string    `json:"source"`   // edgar, sedar
	SourceURL     string    `json:"source_url"`
	StorageKey    string    `json:"storage_key,omitempty"`
	FileSizeBytes int64     `json:"file_size_bytes,omitempty"`
	FilingDate    string    `json:"filing_date"` // YYYY-MM-DD

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ingestion job states.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// IngestionJob is one durable retryable unit of work: process a single
// discovered filing for one company. Failed attempts reschedule with a fixed
// backoff until MaxAttempts, after which the row stays as a dead letter.
type IngestionJob struct {
	ID          uuid.UUID `json:"id"`
	CompanyID   uuid.UUID `json:"company_id"`
	Filing      []byte    `json:"filing"` // filings.Filing as JSON
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	NextRunAt   time.Time `json:"next_run_at"`
	LastError   string    `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
