// Package pipeline sequences the quarterly ingestion flow: filing download,
// snapshot build, profile and thesis generation, and quarterly update
// assembly, with per-step failure isolation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"thesisengine/pkg/core/filings"
	"thesisengine/pkg/core/narrative"
	"thesisengine/pkg/core/snapshot"
	"thesisengine/pkg/core/storage"
	"thesisengine/pkg/core/store"
	"thesisengine/pkg/core/thesis"
	"thesisengine/pkg/models"
)

// RunState tracks how far a filing-processing run progressed. Steps after a
// failed prerequisite are skipped, not failed; the run keeps advancing.
type RunState string

const (
	StateStarted           RunState = "started"
	StateDocumentStored    RunState = "document_stored"
	StateSnapshotAttempted RunState = "snapshot_attempted"
	StateProfileAttempted  RunState = "profile_attempted"
	StateThesisAttempted   RunState = "thesis_attempted"
	StateUpdateAttempted   RunState = "update_attempted"
	StateDone              RunState = "done"
)

// RunStore is the transactional surface one pipeline run writes through.
// Satisfied by store.Tx.
type RunStore interface {
	snapshot.Store
	thesis.Store

	FindDocumentByURL(ctx context.Context, companyID uuid.UUID, sourceURL string) (*models.Document, error)
	CreateDocument(ctx context.Context, d *models.Document) error

	CurrentProfile(ctx context.Context, companyID uuid.UUID) (*models.BusinessProfile, error)
	CreateProfile(ctx context.Context, p *models.BusinessProfile) error

	PriorSnapshot(ctx context.Context, companyID uuid.UUID, year, quarter int) (*models.FinancialSnapshot, error)
	FindUpdateByPeriod(ctx context.Context, companyID uuid.UUID, year, quarter int) (*models.QuarterlyUpdate, error)
	CreateUpdate(ctx context.Context, u *models.QuarterlyUpdate) error
}

// TxRunner commits one run's writes atomically. Satisfied by the adapter over
// store.Store; tests substitute an in-memory runner.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(RunStore) error) error
}

// StoreRunner adapts store.Store to TxRunner.
type StoreRunner struct {
	*store.Store
}

func (r StoreRunner) RunInTx(ctx context.Context, fn func(RunStore) error) error {
	return r.InTx(ctx, func(tx *store.Tx) error { return fn(tx) })
}

// FinancialFetcher pulls normalized provider data for a company. Satisfied by
// snapshot.Ingestor.
type FinancialFetcher interface {
	Fetch(ctx context.Context, company *models.Company) (snapshot.RawData, error)
}

// Generator is the narrative surface the pipeline needs. Satisfied by
// narrative.Generator.
type Generator interface {
	thesis.Generator
	GenerateBusinessProfile(ctx context.Context, company narrative.CompanyInfo, filingText string) (*narrative.ProfileResult, error)
	GenerateQuarterlySummary(ctx context.Context, filingText string, prior *narrative.SnapshotFigures) (*narrative.UpdateResult, error)
}

// RunSummary is the outcome report for one filing-processing run.
type RunSummary struct {
	State         RunState  `json:"state"`
	DocumentID    uuid.UUID `json:"document_id"`
	SnapshotID    uuid.UUID `json:"snapshot_id,omitempty"`
	ProfileID     uuid.UUID `json:"profile_id,omitempty"`
	ThesisID      uuid.UUID `json:"thesis_id,omitempty"`
	UpdateID      uuid.UUID `json:"update_id,omitempty"`
	ThesisVersion int       `json:"thesis_version,omitempty"`
	Notes         []string  `json:"notes,omitempty"`
}

func (s *RunSummary) note(format string, args ...any) {
	s.Notes = append(s.Notes, fmt.Sprintf(format, args...))
}

// Orchestrator runs the full ingestion sequence for one filing at a time.
type Orchestrator struct {
	runner  TxRunner
	sources map[string]filings.Source
	fetcher FinancialFetcher
	gen     Generator
	blobs   storage.BlobStore // may be nil when no bucket is configured
	log     *zap.Logger
}

func NewOrchestrator(runner TxRunner, sources map[string]filings.Source, fetcher FinancialFetcher, gen Generator, blobs storage.BlobStore, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		runner:  runner,
		sources: sources,
		fetcher: fetcher,
		gen:     gen,
		blobs:   blobs,
		log:     log,
	}
}

// sourceFor picks the filing source matching the company's jurisdiction.
func sourceFor(company *models.Company) string {
	if company.CIK != "" {
		return "edgar"
	}
	return "sedar"
}

// ProcessFiling executes one run. All external fetches happen before the
// transaction opens; the transaction then commits every surviving write
// together, so a failed run leaves nothing behind except what a previous
// attempt already committed (which the document dedup check absorbs).
func (o *Orchestrator) ProcessFiling(ctx context.Context, company *models.Company, filing filings.Filing) (*RunSummary, error) {
	summary := &RunSummary{State: StateStarted}
	log := o.log.With(zap.String("ticker", company.Ticker), zap.String("filing", filing.Ref))

	// Download is best-effort: a run with no filing text still ingests
	// financials and records the document.
	var rawDoc []byte
	source := o.sources[sourceFor(company)]
	if source != nil && filing.URL != "" {
		var err error
		rawDoc, err = source.Download(ctx, filing.URL)
		if err != nil {
			log.Warn("filing download failed", zap.Error(err))
			summary.note("download failed: %v", err)
			rawDoc = nil
		}
	}

	storageKey := ""
	if o.blobs != nil && len(rawDoc) > 0 {
		key := fmt.Sprintf("filings/%s/%s/%s", company.Ticker, filing.FilingDate, filing.Ref)
		if err := o.blobs.Put(ctx, key, rawDoc, "text/html"); err != nil {
			log.Warn("blob upload failed", zap.Error(err))
			summary.note("blob upload failed: %v", err)
		} else {
			storageKey = key
		}
	}

	filingText := ""
	if len(rawDoc) > 0 {
		filingText = filings.ExtractText(rawDoc)
	}

	// Financials are fetched up front so no provider latency lands inside
	// the transaction. Rate limiting aborts the run as retryable.
	raw, err := o.fetcher.Fetch(ctx, company)
	if err != nil {
		return nil, fmt.Errorf("fetch financials: %w", err)
	}

	err = o.runner.RunInTx(ctx, func(tx RunStore) error {
		doc, err := o.stepDocument(ctx, tx, company, filing, storageKey, int64(len(rawDoc)))
		if err != nil {
			return err
		}
		summary.DocumentID = doc.ID
		summary.State = StateDocumentStored

		snap := o.stepSnapshot(ctx, tx, company, raw, summary, log)
		summary.State = StateSnapshotAttempted

		profile := o.stepProfile(ctx, tx, company, filing, filingText, summary, log)
		summary.State = StateProfileAttempted

		var version *models.ThesisVersion
		if snap != nil {
			version = o.stepThesis(ctx, tx, company, snap, profile, summary, log)
		} else {
			summary.note("thesis skipped: no snapshot")
		}
		summary.State = StateThesisAttempted

		if snap != nil && version != nil {
			o.stepUpdate(ctx, tx, company, filing, filingText, snap, version, summary, log)
		} else {
			summary.note("update skipped: missing snapshot or thesis")
		}
		summary.State = StateUpdateAttempted
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary.State = StateDone
	log.Info("filing run complete",
		zap.String("state", string(summary.State)),
		zap.Strings("notes", summary.Notes))
	return summary, nil
}

// stepDocument records the filing, reusing the row from a prior attempt when
// one exists so retries never duplicate documents.
func (o *Orchestrator) stepDocument(ctx context.Context, tx RunStore, company *models.Company, filing filings.Filing, storageKey string, size int64) (*models.Document, error) {
	existing, err := tx.FindDocumentByURL(ctx, company.ID, filing.URL)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	doc := &models.Document{
		CompanyID:  company.ID,
		DocType:    filing.Type,
		Source:     sourceFor(company),
		SourceURL:  filing.URL,
		StorageKey: storageKey,
		FilingDate: filing.FilingDate,
	}
	if storageKey != "" {
		doc.FileSizeBytes = size
	}
	if err := tx.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// stepSnapshot builds the period snapshot. No provider data and an already
// ingested period both resolve to absence, which skips the dependent steps.
func (o *Orchestrator) stepSnapshot(ctx context.Context, tx RunStore, company *models.Company, raw snapshot.RawData, summary *RunSummary, log *zap.Logger) *models.FinancialSnapshot {
	snap, err := snapshot.Build(ctx, tx, company.ID, company.Currency, raw)
	if err != nil {
		switch {
		case errors.Is(err, snapshot.ErrNoData):
			summary.note("snapshot skipped: no provider data")
		case errors.Is(err, snapshot.ErrDuplicatePeriod):
			summary.note("snapshot skipped: period already ingested")
		default:
			summary.note("snapshot failed: %v", err)
			log.Error("snapshot build failed", zap.Error(err))
		}
		return nil
	}
	summary.SnapshotID = snap.ID
	return snap
}

// stepProfile refreshes the business profile, only for annual-type filings.
// With no filing text available it falls back to a synthesized identity
// context rather than skipping.
func (o *Orchestrator) stepProfile(ctx context.Context, tx RunStore, company *models.Company, filing filings.Filing, filingText string, summary *RunSummary, log *zap.Logger) *models.BusinessProfile {
	if !filings.IsAnnual(filing.Type) {
		summary.note("profile skipped: not an annual filing")
		return nil
	}

	if filingText == "" {
		filingText = fmt.Sprintf("%s (%s) is a %s company in the %s sector.",
			company.Name, company.Ticker, company.Industry, company.Sector)
	}

	result, err := o.gen.GenerateBusinessProfile(ctx, companyInfo(company), filingText)
	if err != nil {
		summary.note("profile failed: %v", err)
		log.Error("profile generation failed", zap.Error(err))
		return nil
	}

	version := 1
	if current, err := tx.CurrentProfile(ctx, company.ID); err == nil {
		version = current.Version + 1
	} else if !errors.Is(err, store.ErrNotFound) {
		summary.note("profile failed: %v", err)
		return nil
	}

	profile := &models.BusinessProfile{
		CompanyID:           company.ID,
		Version:             version,
		Description:         result.Description,
		BusinessModel:       result.BusinessModel,
		CompetitivePosition: result.CompetitivePosition,
		KeyProducts:         result.KeyProducts,
		GeographicMix:       result.GeographicMix,
		MoatAssessment:      result.MoatAssessment,
		MoatSources:         result.MoatSources,
	}
	if err := tx.CreateProfile(ctx, profile); err != nil {
		summary.note("profile failed: %v", err)
		log.Error("profile persist failed", zap.Error(err))
		return nil
	}
	summary.ProfileID = profile.ID
	return profile
}

// stepThesis creates the next version. A missing profile is degraded mode,
// not a failure; generation errors resolve to absence so the run completes.
func (o *Orchestrator) stepThesis(ctx context.Context, tx RunStore, company *models.Company, snap *models.FinancialSnapshot, profile *models.BusinessProfile, summary *RunSummary, log *zap.Logger) *models.ThesisVersion {
	version, err := thesis.CreateVersion(ctx, tx, o.gen, company, snap, profile, "")
	if err != nil {
		summary.note("thesis failed: %v", err)
		log.Error("thesis generation failed", zap.Error(err))
		return nil
	}
	summary.ThesisID = version.ID
	summary.ThesisVersion = version.Version
	return version
}

// stepUpdate assembles the quarterly narrative diff, skipping when the
// period already has one.
func (o *Orchestrator) stepUpdate(ctx context.Context, tx RunStore, company *models.Company, filing filings.Filing, filingText string, snap *models.FinancialSnapshot, version *models.ThesisVersion, summary *RunSummary, log *zap.Logger) {
	if _, err := tx.FindUpdateByPeriod(ctx, company.ID, snap.FiscalYear, snap.FiscalQuarter); err == nil {
		summary.note("update skipped: period already has an update")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		summary.note("update failed: %v", err)
		return
	}

	if filingText == "" {
		filingText = fmt.Sprintf("%s (%s) quarterly filing.", company.Name, company.Ticker)
	}

	var priorFigures *narrative.SnapshotFigures
	if prior, err := tx.PriorSnapshot(ctx, company.ID, snap.FiscalYear, snap.FiscalQuarter); err == nil {
		f := thesis.Figures(prior)
		priorFigures = &f
	}

	result, err := o.gen.GenerateQuarterlySummary(ctx, filingText, priorFigures)
	if err != nil {
		summary.note("update failed: %v", err)
		log.Error("quarterly summary generation failed", zap.Error(err))
		return
	}

	update := &models.QuarterlyUpdate{
		CompanyID:            company.ID,
		SnapshotID:           snap.ID,
		ThesisVersionID:      version.ID,
		FiscalYear:           snap.FiscalYear,
		FiscalQuarter:        snap.FiscalQuarter,
		FilingType:           filing.Type,
		ExecutiveSummary:     result.ExecutiveSummary,
		KeyChanges:           result.KeyChanges,
		GuidanceUpdate:       result.GuidanceUpdate,
		ManagementCommentary: result.ManagementCommentary,
	}
	if err := tx.CreateUpdate(ctx, update); err != nil {
		summary.note("update failed: %v", err)
		log.Error("quarterly update persist failed", zap.Error(err))
		return
	}
	summary.UpdateID = update.ID
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

// runDeadline bounds one run's wall clock.
func runDeadline(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, budget)
}
