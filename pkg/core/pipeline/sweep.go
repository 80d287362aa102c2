package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"thesisengine/pkg/core/filings"
	"thesisengine/pkg/core/store"
	"thesisengine/pkg/models"
)

// sweepTypes lists the filing types checked per jurisdiction.
var sweepTypes = map[string][]string{
	"edgar": {"10-Q", "10-K"},
	"sedar": {"AIF"},
}

// Sweeper discovers new filings for active companies and enqueues one
// durable job per filing not yet represented by a document row.
type Sweeper struct {
	store       *store.Store
	sources     map[string]filings.Source
	maxAttempts int
	log         *zap.Logger
}

func NewSweeper(st *store.Store, sources map[string]filings.Source, maxAttempts int, log *zap.Logger) *Sweeper {
	return &Sweeper{store: st, sources: sources, maxAttempts: maxAttempts, log: log}
}

// SweepForNewFilings returns how many jobs it dispatched. Per-company
// failures are logged and skipped so one broken filer cannot stall the sweep.
func (s *Sweeper) SweepForNewFilings(ctx context.Context) (int, error) {
	companies, err := s.store.ListActiveCompanies(ctx)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for i := range companies {
		company := &companies[i]
		n, err := s.sweepCompany(ctx, company)
		if err != nil {
			s.log.Error("sweep failed for company",
				zap.String("ticker", company.Ticker), zap.Error(err))
			continue
		}
		dispatched += n
	}

	s.log.Info("filing sweep complete",
		zap.Int("companies", len(companies)),
		zap.Int("dispatched", dispatched))
	return dispatched, nil
}

func (s *Sweeper) sweepCompany(ctx context.Context, company *models.Company) (int, error) {
	sourceName := sourceFor(company)
	source := s.sources[sourceName]
	if source == nil {
		return 0, nil
	}

	filerRef := company.CIK
	if sourceName == "sedar" {
		filerRef = company.SedarID
	}
	if filerRef == "" {
		return 0, nil
	}

	dispatched := 0
	for _, filingType := range sweepTypes[sourceName] {
		listed, err := source.ListRecent(ctx, filerRef, filingType)
		if err != nil {
			return dispatched, fmt.Errorf("list %s filings: %w", filingType, err)
		}

		for _, filing := range listed {
			enqueued, err := s.dispatch(ctx, company, filing)
			if err != nil {
				return dispatched, err
			}
			if enqueued {
				dispatched++
			}
		}
	}
	return dispatched, nil
}

// dispatch enqueues one job unless the filing is already ingested or queued.
func (s *Sweeper) dispatch(ctx context.Context, company *models.Company, filing filings.Filing) (bool, error) {
	_, err := s.store.FindDocumentByURL(ctx, company.ID, filing.URL)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	queued, err := s.store.HasPendingJob(ctx, company.ID, filing.URL)
	if err != nil {
		return false, err
	}
	if queued {
		return false, nil
	}

	payload, err := json.Marshal(filing)
	if err != nil {
		return false, fmt.Errorf("encode filing: %w", err)
	}

	job := &models.IngestionJob{CompanyID: company.ID, Filing: payload, MaxAttempts: s.maxAttempts}
	if err := s.store.EnqueueJob(ctx, job); err != nil {
		return false, err
	}

	s.log.Info("filing dispatched",
		zap.String("ticker", company.Ticker),
		zap.String("type", filing.Type),
		zap.String("ref", filing.Ref))
	return true, nil
}
