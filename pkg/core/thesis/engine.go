// Package thesis assigns sequential version numbers to generated investment
// narratives and chains each version to its predecessor for drift tracking.
package thesis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"thesisengine/pkg/core/narrative"
	"thesisengine/pkg/core/numeric"
	"thesisengine/pkg/core/store"
	"thesisengine/pkg/models"
)

var (
	// ErrMissingSnapshot means the company has no financial snapshot to
	// ground a thesis on.
	ErrMissingSnapshot = errors.New("no financial snapshot available")

	// ErrMissingProfile means the company has no business profile. Only the
	// synchronous trigger treats this as a failure; the pipeline proceeds in
	// degraded mode with an empty profile context.
	ErrMissingProfile = errors.New("no business profile available")
)

// Store is the transactional surface version creation needs. Satisfied by
// store.Tx. LockCompanyForThesis must serialize writers per company until the
// transaction ends; the latest-version read and the insert rely on it.
type Store interface {
	LockCompanyForThesis(ctx context.Context, companyID uuid.UUID) error
	LatestThesis(ctx context.Context, companyID uuid.UUID) (*models.ThesisVersion, error)
	InsertThesis(ctx context.Context, t *models.ThesisVersion) error
}

// Generator produces the narrative content. Satisfied by narrative.Generator.
type Generator interface {
	GenerateThesis(ctx context.Context, company narrative.CompanyInfo, figures narrative.SnapshotFigures, profile narrative.ProfileContext, prior *narrative.PriorThesis, marketContext string) (*narrative.ThesisResult, error)
	Model() string
}

// CreateVersion generates and persists the next thesis version inside the
// caller's transaction. The per-company lock is taken first so that the prior
// read and the version assignment cannot race a concurrent writer; the lock
// is held across the LLM call, trading throughput on one company for
// contiguous version numbers.
func CreateVersion(ctx context.Context, st Store, gen Generator, company *models.Company, snap *models.FinancialSnapshot, profile *models.BusinessProfile, marketContext string) (*models.ThesisVersion, error) {
	if snap == nil {
		return nil, fmt.Errorf("company %s: %w", company.Ticker, ErrMissingSnapshot)
	}

	if err := st.LockCompanyForThesis(ctx, company.ID); err != nil {
		return nil, err
	}

	priorRow, err := st.LatestThesis(ctx, company.ID)
	if errors.Is(err, store.ErrNotFound) {
		priorRow, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prior thesis: %w", err)
	}

	var prior *narrative.PriorThesis
	if priorRow != nil {
		prior = &narrative.PriorThesis{
			Version:  priorRow.Version,
			BullCase: priorRow.BullCase,
			BaseCase: priorRow.BaseCase,
			BearCase: priorRow.BearCase,
		}
	}

	var profileCtx narrative.ProfileContext
	if profile != nil {
		profileCtx = narrative.ProfileContext{
			Description:         profile.Description,
			BusinessModel:       profile.BusinessModel,
			CompetitivePosition: profile.CompetitivePosition,
			MoatAssessment:      profile.MoatAssessment,
		}
	}

	result, err := gen.GenerateThesis(ctx, companyInfo(company), Figures(snap), profileCtx, prior, marketContext)
	if err != nil {
		return nil, err
	}

	version := 1
	var priorID uuid.NullUUID
	if priorRow != nil {
		version = priorRow.Version + 1
		priorID = uuid.NullUUID{UUID: priorRow.ID, Valid: true}
	}

	t := &models.ThesisVersion{
		CompanyID:  company.ID,
		SnapshotID: snap.ID,
		Version:    version,

		BullCase:   result.BullCase,
		BullTarget: result.BullTarget,
		BaseCase:   result.BaseCase,
		BaseTarget: result.BaseTarget,
		BearCase:   result.BearCase,
		BearTarget: result.BearTarget,

		KeyDrivers: result.KeyDrivers,
		KeyRisks:   result.KeyRisks,
		Catalysts:  result.Catalysts,

		IntegrityScore:     result.IntegrityScore,
		IntegrityRationale: result.IntegrityRationale,

		PriorVersionID:      priorID,
		DriftSummary:        result.DriftSummary,
		ConvictionDirection: result.ConvictionDirection,

		LLMModelUsed: gen.Model(),
	}
	if err := st.InsertThesis(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func companyInfo(c *models.Company) narrative.CompanyInfo {
	return narrative.CompanyInfo{
		Name:     c.Name,
		Ticker:   c.Ticker,
		Exchange: c.Exchange,
		Sector:   c.Sector,
		Industry: c.Industry,
	}
}

// Figures formats a snapshot for prompting, with "N/A" standing in for every
// absent value.
func Figures(s *models.FinancialSnapshot) narrative.SnapshotFigures {
	return narrative.SnapshotFigures{
		FiscalPeriod:       fmt.Sprintf("FY%d Q%d", s.FiscalYear, s.FiscalQuarter),
		Revenue:            numeric.Display(s.Revenue),
		NetIncome:          numeric.Display(s.NetIncome),
		EBITDA:             numeric.Display(s.EBITDA),
		EPSDiluted:         numeric.Display(s.EPSDiluted),
		GrossMargin:        numeric.Display(s.GrossMargin),
		OperatingMargin:    numeric.Display(s.OperatingMargin),
		FreeCashFlow:       numeric.Display(s.FreeCashFlow),
		TotalDebt:          numeric.Display(s.TotalDebt),
		CashAndEquivalents: numeric.Display(s.CashAndEquivalents),
		DebtToEquity:       numeric.Display(s.DebtToEquity),
	}
}
