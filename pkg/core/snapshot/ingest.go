package snapshot

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"thesisengine/pkg/core/marketdata"
	"thesisengine/pkg/core/store"
	"thesisengine/pkg/models"
)

// Ingestor pulls the latest provider financials for one company and persists
// a snapshot. External fetches happen before the transaction opens so no lock
// is held across provider latency.
type Ingestor struct {
	store   *store.Store
	gateway *marketdata.Gateway
	log     *zap.Logger
}

func NewIngestor(st *store.Store, gateway *marketdata.Gateway, log *zap.Logger) *Ingestor {
	return &Ingestor{store: st, gateway: gateway, log: log}
}

// Fetch pulls all four statement kinds concurrently for the company's
// provider symbol. A rate-limited provider fails the whole fetch.
func (i *Ingestor) Fetch(ctx context.Context, company *models.Company) (RawData, error) {
	symbol := marketdata.ResolveSymbol(company.Ticker, company.Exchange)

	var raw RawData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		raw.Income, err = i.gateway.GetIncomeStatements(gctx, symbol)
		return err
	})
	g.Go(func() (err error) {
		raw.Balance, err = i.gateway.GetBalanceSheets(gctx, symbol)
		return err
	})
	g.Go(func() (err error) {
		raw.CashFlow, err = i.gateway.GetCashFlows(gctx, symbol)
		return err
	})
	g.Go(func() (err error) {
		raw.Segments, err = i.gateway.GetSegments(gctx, symbol)
		return err
	})
	if err := g.Wait(); err != nil {
		return RawData{}, fmt.Errorf("fetch financials for %s: %w", symbol, err)
	}
	return raw, nil
}

// IngestLatestFinancials is the synchronous ingestion entry point. Fails with
// ErrNoData when the provider has nothing and ErrDuplicatePeriod when the
// period is already on file.
func (i *Ingestor) IngestLatestFinancials(ctx context.Context, companyID uuid.UUID) (*models.FinancialSnapshot, error) {
	company, err := i.store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	raw, err := i.Fetch(ctx, company)
	if err != nil {
		return nil, err
	}

	var snap *models.FinancialSnapshot
	err = i.store.InTx(ctx, func(tx *store.Tx) error {
		snap, err = Build(ctx, tx, company.ID, company.Currency, raw)
		return err
	})
	if err != nil {
		return nil, err
	}

	i.log.Info("snapshot ingested",
		zap.String("ticker", company.Ticker),
		zap.Int("fiscal_year", snap.FiscalYear),
		zap.Int("fiscal_quarter", snap.FiscalQuarter))
	return snap, nil
}
