// Package marketdata normalizes heterogeneous market-data provider responses
// into one internal schema and chains providers with absence-on-failure
// semantics. Callers treat an empty result as "no data available now".
package marketdata

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrRateLimited is the distinct error kind for provider rate limiting, so the
// orchestrator can decide between retrying later and aborting a batch. All
// other provider failures collapse to empty results.
var ErrRateLimited = errors.New("market data provider rate limited")

// MaxPeriods bounds every per-statement fetch.
const MaxPeriods = 4

// IncomeStatement is one normalized income-statement period report.
type IncomeStatement struct {
	Period       string // "Q1".."Q4" or "FY"
	CalendarYear string

	Revenue           decimal.NullDecimal
	CostOfRevenue     decimal.NullDecimal
	GrossProfit       decimal.NullDecimal
	OperatingIncome   decimal.NullDecimal
	NetIncome         decimal.NullDecimal
	EBITDA            decimal.NullDecimal
	EPSDiluted        decimal.NullDecimal
	SharesOutstanding decimal.NullDecimal
}

// BalanceSheet is one normalized balance-sheet period report.
type BalanceSheet struct {
	Period       string
	CalendarYear string

	TotalAssets        decimal.NullDecimal
	TotalLiabilities   decimal.NullDecimal
	TotalEquity        decimal.NullDecimal
	CashAndEquivalents decimal.NullDecimal
	TotalDebt          decimal.NullDecimal
}

// CashFlow is one normalized cash-flow period report.
type CashFlow struct {
	Period       string
	CalendarYear string

	OperatingCashFlow   decimal.NullDecimal
	CapitalExpenditures decimal.NullDecimal
	FreeCashFlow        decimal.NullDecimal
}

// SegmentData is one business segment's revenue for the most recent period.
type SegmentData struct {
	Name    string
	Revenue decimal.NullDecimal
}

// Quote is a live quote snapshot.
type Quote struct {
	Price      decimal.NullDecimal
	Change     decimal.NullDecimal
	ChangePct  decimal.NullDecimal
	PrevClose  decimal.NullDecimal
	TradingDay string
}

// Provider is one market-data backend. Implementations return their provider
// error as-is; the Gateway applies the absence-on-failure policy and the
// fallback chain.
type Provider interface {
	Name() string
	IncomeStatements(ctx context.Context, symbol string, limit int) ([]IncomeStatement, error)
	BalanceSheets(ctx context.Context, symbol string, limit int) ([]BalanceSheet, error)
	CashFlows(ctx context.Context, symbol string, limit int) ([]CashFlow, error)
	Segments(ctx context.Context, symbol string) ([]SegmentData, error)
	Quote(ctx context.Context, symbol string) (*Quote, error)
}
