package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"thesisengine/pkg/models"
)

const snapshotColumns = `id, company_id, fiscal_year, fiscal_quarter, currency,
	revenue, cost_of_revenue, gross_profit, operating_income, net_income, ebitda,
	eps_diluted, shares_outstanding,
	total_assets, total_liabilities, total_equity, cash_and_equivalents, total_debt,
	operating_cash_flow, capital_expenditures, free_cash_flow,
	gross_margin, operating_margin, net_margin, roe, debt_to_equity,
	created_at, updated_at`

func scanSnapshot(row interface{ Scan(dest ...any) error }, s *models.FinancialSnapshot) error {
	return row.Scan(&s.ID, &s.CompanyID, &s.FiscalYear, &s.FiscalQuarter, &s.Currency,
		&s.Revenue, &s.CostOfRevenue, &s.GrossProfit, &s.OperatingIncome, &s.NetIncome, &s.EBITDA,
		&s.EPSDiluted, &s.SharesOutstanding,
		&s.TotalAssets, &s.TotalLiabilities, &s.TotalEquity, &s.CashAndEquivalents, &s.TotalDebt,
		&s.OperatingCashFlow, &s.CapitalExpenditures, &s.FreeCashFlow,
		&s.GrossMargin, &s.OperatingMargin, &s.NetMargin, &s.ROE, &s.DebtToEquity,
		&s.CreatedAt, &s.UpdatedAt)
}

// CreateSnapshot inserts a snapshot and its segment rows. Callers run this
// inside a transaction so the snapshot and segments land together.
func (q *queries) CreateSnapshot(ctx context.Context, s *models.FinancialSnapshot, segments []models.Segment) error {
	query := `
		INSERT INTO financial_snapshots (
			company_id, fiscal_year, fiscal_quarter, currency,
			revenue, cost_of_revenue, gross_profit, operating_income, net_income, ebitda,
			eps_diluted, shares_outstanding,
			total_assets, total_liabilities, total_equity, cash_and_equivalents, total_debt,
			operating_cash_flow, capital_expenditures, free_cash_flow,
			gross_margin, operating_margin, net_margin, roe, debt_to_equity
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		RETURNING id, created_at, updated_at`
	err := q.db.QueryRow(ctx, query,
		s.CompanyID, s.FiscalYear, s.FiscalQuarter, s.Currency,
		s.Revenue, s.CostOfRevenue, s.GrossProfit, s.OperatingIncome, s.NetIncome, s.EBITDA,
		s.EPSDiluted, s.SharesOutstanding,
		s.TotalAssets, s.TotalLiabilities, s.TotalEquity, s.CashAndEquivalents, s.TotalDebt,
		s.OperatingCashFlow, s.CapitalExpenditures, s.FreeCashFlow,
		s.GrossMargin, s.OperatingMargin, s.NetMargin, s.ROE, s.DebtToEquity,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create snapshot FY%d Q%d: %w", s.FiscalYear, s.FiscalQuarter, err)
	}

	for i := range segments {
		seg := &segments[i]
		seg.SnapshotID = s.ID
		err := q.db.QueryRow(ctx, `
			INSERT INTO segments (snapshot_id, name, revenue, operating_income, revenue_pct)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at`,
			seg.SnapshotID, seg.Name, seg.Revenue, seg.OperatingIncome, seg.RevenuePct,
		).Scan(&seg.ID, &seg.CreatedAt, &seg.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create segment %q: %w", seg.Name, err)
		}
	}
	return nil
}

// FindSnapshotByPeriod returns the snapshot for an exact fiscal period, or
// ErrNotFound.
func (q *queries) FindSnapshotByPeriod(ctx context.Context, companyID uuid.UUID, year, quarter int) (*models.FinancialSnapshot, error) {
	var s models.FinancialSnapshot
	row := q.db.QueryRow(ctx,
		`SELECT `+snapshotColumns+` FROM financial_snapshots
		 WHERE company_id = $1 AND fiscal_year = $2 AND fiscal_quarter = $3`,
		companyID, year, quarter)
	if err := scanSnapshot(row, &s); err != nil {
		return nil, notFound(err, fmt.Sprintf("snapshot FY%d Q%d", year, quarter))
	}
	return &s, nil
}

// LatestSnapshot returns the most recent fiscal period on file.
func (q *queries) LatestSnapshot(ctx context.Context, companyID uuid.UUID) (*models.FinancialSnapshot, error) {
	var s models.FinancialSnapshot
	row := q.db.QueryRow(ctx,
		`SELECT `+snapshotColumns+` FROM financial_snapshots
		 WHERE company_id = $1
		 ORDER BY fiscal_year DESC, fiscal_quarter DESC
		 LIMIT 1`,
		companyID)
	if err := scanSnapshot(row, &s); err != nil {
		return nil, notFound(err, "latest snapshot")
	}
	return &s, nil
}

// PriorSnapshot returns the newest snapshot strictly before the given period.
func (q *queries) PriorSnapshot(ctx context.Context, companyID uuid.UUID, year, quarter int) (*models.FinancialSnapshot, error) {
	var s models.FinancialSnapshot
	row := q.db.QueryRow(ctx,
		`SELECT `+snapshotColumns+` FROM financial_snapshots
		 WHERE company_id = $1 AND (fiscal_year, fiscal_quarter) < ($2, $3)
		 ORDER BY fiscal_year DESC, fiscal_quarter DESC
		 LIMIT 1`,
		companyID, year, quarter)
	if err := scanSnapshot(row, &s); err != nil {
		return nil, notFound(err, fmt.Sprintf("snapshot before FY%d Q%d", year, quarter))
	}
	return &s, nil
}

func (q *queries) GetSnapshot(ctx context.Context, id uuid.UUID) (*models.FinancialSnapshot, error) {
	var s models.FinancialSnapshot
	row := q.db.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM financial_snapshots WHERE id = $1`, id)
	if err := scanSnapshot(row, &s); err != nil {
		return nil, notFound(err, fmt.Sprintf("snapshot %s", id))
	}
	return &s, nil
}

func (q *queries) ListSnapshots(ctx context.Context, companyID uuid.UUID) ([]models.FinancialSnapshot, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+snapshotColumns+` FROM financial_snapshots
		 WHERE company_id = $1
		 ORDER BY fiscal_year DESC, fiscal_quarter DESC`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.FinancialSnapshot
	for rows.Next() {
		var s models.FinancialSnapshot
		if err := scanSnapshot(rows, &s); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *queries) ListSegments(ctx context.Context, snapshotID uuid.UUID) ([]models.Segment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, snapshot_id, name, revenue, operating_income, revenue_pct, created_at, updated_at
		FROM segments WHERE snapshot_id = $1 ORDER BY name`,
		snapshotID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var out []models.Segment
	for rows.Next() {
		var seg models.Segment
		if err := rows.Scan(&seg.ID, &seg.SnapshotID, &seg.Name, &seg.Revenue,
			&seg.OperatingIncome, &seg.RevenuePct, &seg.CreatedAt, &seg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}
