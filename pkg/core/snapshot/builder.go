// Package snapshot builds one immutable financial snapshot per fiscal period
// from normalized provider data.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"thesisengine/pkg/core/marketdata"
	"thesisengine/pkg/core/numeric"
	"thesisengine/pkg/core/store"
	"thesisengine/pkg/models"
)

var (
	// ErrNoData means the provider had no income statement for the company.
	// The caller decides whether this aborts the whole run or only this step.
	ErrNoData = errors.New("no financial data available")

	// ErrDuplicatePeriod means a snapshot already exists for this fiscal
	// period. This is "already done", not a retryable failure.
	ErrDuplicatePeriod = errors.New("snapshot already exists for this period")
)

var quarterMap = map[string]int{"Q1": 1, "Q2": 2, "Q3": 3, "Q4": 4}

// Store is the persistence surface the builder needs. Satisfied by store.Tx
// so the snapshot and its segments commit atomically with the caller's run.
type Store interface {
	FindSnapshotByPeriod(ctx context.Context, companyID uuid.UUID, year, quarter int) (*models.FinancialSnapshot, error)
	CreateSnapshot(ctx context.Context, s *models.FinancialSnapshot, segments []models.Segment) error
}

// RawData is the provider material for one build, each sequence most recent
// first.
type RawData struct {
	Income   []marketdata.IncomeStatement
	Balance  []marketdata.BalanceSheet
	CashFlow []marketdata.CashFlow
	Segments []marketdata.SegmentData
}

// Build creates the snapshot for the most recent reported period in raw.
// A missing balance sheet or cash-flow statement degrades to absent fields;
// a missing income statement is ErrNoData. Periods already on file fail with
// ErrDuplicatePeriod before any write.
func Build(ctx context.Context, st Store, companyID uuid.UUID, currency string, raw RawData) (*models.FinancialSnapshot, error) {
	if len(raw.Income) == 0 {
		return nil, fmt.Errorf("company %s: %w", companyID, ErrNoData)
	}
	income := raw.Income[0]

	var balance marketdata.BalanceSheet
	if len(raw.Balance) > 0 {
		balance = raw.Balance[0]
	}
	var cashflow marketdata.CashFlow
	if len(raw.CashFlow) > 0 {
		cashflow = raw.CashFlow[0]
	}

	quarter, ok := quarterMap[income.Period]
	if !ok {
		quarter = 1
	}
	year := numeric.ParseYear(income.CalendarYear, time.Now().Year())

	if _, err := st.FindSnapshotByPeriod(ctx, companyID, year, quarter); err == nil {
		return nil, fmt.Errorf("company %s FY%d Q%d: %w", companyID, year, quarter, ErrDuplicatePeriod)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check existing snapshot: %w", err)
	}

	snap := &models.FinancialSnapshot{
		CompanyID:     companyID,
		FiscalYear:    year,
		FiscalQuarter: quarter,
		Currency:      currency,

		Revenue:           income.Revenue,
		CostOfRevenue:     income.CostOfRevenue,
		GrossProfit:       income.GrossProfit,
		OperatingIncome:   income.OperatingIncome,
		NetIncome:         income.NetIncome,
		EBITDA:            income.EBITDA,
		EPSDiluted:        income.EPSDiluted,
		SharesOutstanding: income.SharesOutstanding,

		TotalAssets:        balance.TotalAssets,
		TotalLiabilities:   balance.TotalLiabilities,
		TotalEquity:        balance.TotalEquity,
		CashAndEquivalents: balance.CashAndEquivalents,
		TotalDebt:          balance.TotalDebt,

		OperatingCashFlow:   cashflow.OperatingCashFlow,
		CapitalExpenditures: cashflow.CapitalExpenditures,
		FreeCashFlow:        cashflow.FreeCashFlow,

		GrossMargin:     numeric.SafeDivide(income.GrossProfit, income.Revenue),
		OperatingMargin: numeric.SafeDivide(income.OperatingIncome, income.Revenue),
		NetMargin:       numeric.SafeDivide(income.NetIncome, income.Revenue),
		ROE:             numeric.SafeDivide(income.NetIncome, balance.TotalEquity),
		DebtToEquity:    numeric.SafeDivide(balance.TotalDebt, balance.TotalEquity),
	}

	segments := buildSegments(raw.Segments)
	if err := st.CreateSnapshot(ctx, snap, segments); err != nil {
		return nil, err
	}
	return snap, nil
}

// buildSegments computes each segment's share of the batch's total segment
// revenue. A segment with missing revenue contributes nothing to the total
// and keeps its own revenue absent.
func buildSegments(raw []marketdata.SegmentData) []models.Segment {
	if len(raw) == 0 {
		return nil
	}

	revenues := make([]decimal.NullDecimal, len(raw))
	for i, seg := range raw {
		revenues[i] = seg.Revenue
	}
	total, _ := numeric.Sum(revenues)
	totalND := decimal.NewNullDecimal(total)

	out := make([]models.Segment, len(raw))
	for i, seg := range raw {
		out[i] = models.Segment{
			Name:       seg.Name,
			Revenue:    seg.Revenue,
			RevenuePct: numeric.SafeDivide(seg.Revenue, totalND),
		}
	}
	return out
}
