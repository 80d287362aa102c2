package marketdata

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Gateway applies the resilience policy over an ordered list of providers:
// each provider is tried in sequence and the first non-empty result wins.
// Provider failures are logged and treated as absence, with one exception:
// rate limiting propagates as ErrRateLimited so callers can defer the batch.
type Gateway struct {
	providers []Provider
	log       *zap.Logger
}

// NewGateway builds a gateway over providers, tried in the given order.
func NewGateway(log *zap.Logger, providers ...Provider) *Gateway {
	return &Gateway{providers: providers, log: log}
}

// GetIncomeStatements returns up to MaxPeriods reports, most recent first.
// An empty slice means "no data available now", not "never will be".
func (g *Gateway) GetIncomeStatements(ctx context.Context, symbol string) ([]IncomeStatement, error) {
	var out []IncomeStatement
	err := g.chain(ctx, symbol, "income_statement", func(ctx context.Context, p Provider) (int, error) {
		rows, err := p.IncomeStatements(ctx, symbol, MaxPeriods)
		out = rows
		return len(rows), err
	})
	return out, err
}

func (g *Gateway) GetBalanceSheets(ctx context.Context, symbol string) ([]BalanceSheet, error) {
	var out []BalanceSheet
	err := g.chain(ctx, symbol, "balance_sheet", func(ctx context.Context, p Provider) (int, error) {
		rows, err := p.BalanceSheets(ctx, symbol, MaxPeriods)
		out = rows
		return len(rows), err
	})
	return out, err
}

func (g *Gateway) GetCashFlows(ctx context.Context, symbol string) ([]CashFlow, error) {
	var out []CashFlow
	err := g.chain(ctx, symbol, "cash_flow", func(ctx context.Context, p Provider) (int, error) {
		rows, err := p.CashFlows(ctx, symbol, MaxPeriods)
		out = rows
		return len(rows), err
	})
	return out, err
}

func (g *Gateway) GetSegments(ctx context.Context, symbol string) ([]SegmentData, error) {
	var out []SegmentData
	err := g.chain(ctx, symbol, "segments", func(ctx context.Context, p Provider) (int, error) {
		rows, err := p.Segments(ctx, symbol)
		out = rows
		return len(rows), err
	})
	return out, err
}

// GetQuote returns nil (absent) when no provider has a quote.
func (g *Gateway) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	var out *Quote
	err := g.chain(ctx, symbol, "quote", func(ctx context.Context, p Provider) (int, error) {
		q, err := p.Quote(ctx, symbol)
		out = q
		if q == nil {
			return 0, err
		}
		return 1, err
	})
	return out, err
}

// chain runs fetch against each provider in order until one yields data.
// Rate limiting stops the chain immediately; other errors fall through to the
// next provider and end as absence.
func (g *Gateway) chain(ctx context.Context, symbol, what string, fetch func(context.Context, Provider) (int, error)) error {
	for _, p := range g.providers {
		n, err := fetch(ctx, p)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				g.log.Warn("provider rate limited",
					zap.String("provider", p.Name()),
					zap.String("symbol", symbol),
					zap.String("data", what))
				return err
			}
			g.log.Warn("provider fetch failed, treating as no data",
				zap.String("provider", p.Name()),
				zap.String("symbol", symbol),
				zap.String("data", what),
				zap.Error(err))
			continue
		}
		if n > 0 {
			return nil
		}
	}
	return nil
}
