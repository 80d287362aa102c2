package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"thesisengine/pkg/models"
)

const companyColumns = `id, ticker, name, exchange, sector, industry, currency,
	cik, sedar_id, is_active, created_at, updated_at`

func scanCompany(row interface{ Scan(dest ...any) error }, c *models.Company) error {
	return row.Scan(&c.ID, &c.Ticker, &c.Name, &c.Exchange, &c.Sector, &c.Industry,
		&c.Currency, &c.CIK, &c.SedarID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
}

// CreateCompany inserts a company and fills in generated fields. The ticker
// unique index rejects duplicates.
func (q *queries) CreateCompany(ctx context.Context, c *models.Company) error {
	query := `
		INSERT INTO companies (ticker, name, exchange, sector, industry, currency, cik, sedar_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	err := q.db.QueryRow(ctx, query,
		c.Ticker, c.Name, c.Exchange, c.Sector, c.Industry, c.Currency, c.CIK, c.SedarID, c.IsActive,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create company %s: %w", c.Ticker, err)
	}
	return nil
}

func (q *queries) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var c models.Company
	row := q.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
	if err := scanCompany(row, &c); err != nil {
		return nil, notFound(err, fmt.Sprintf("company %s", id))
	}
	return &c, nil
}

func (q *queries) GetCompanyByTicker(ctx context.Context, ticker string) (*models.Company, error) {
	var c models.Company
	row := q.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE ticker = $1`, ticker)
	if err := scanCompany(row, &c); err != nil {
		return nil, notFound(err, fmt.Sprintf("company %s", ticker))
	}
	return &c, nil
}

func (q *queries) ListCompanies(ctx context.Context) ([]models.Company, error) {
	rows, err := q.db.Query(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var out []models.Company
	for rows.Next() {
		var c models.Company
		if err := scanCompany(rows, &c); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListActiveCompanies returns the companies the detection sweep covers.
func (q *queries) ListActiveCompanies(ctx context.Context) ([]models.Company, error) {
	rows, err := q.db.Query(ctx, `SELECT `+companyColumns+` FROM companies WHERE is_active ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("list active companies: %w", err)
	}
	defer rows.Close()

	var out []models.Company
	for rows.Next() {
		var c models.Company
		if err := scanCompany(rows, &c); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCompany overwrites the mutable descriptive fields.
func (q *queries) UpdateCompany(ctx context.Context, c *models.Company) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE companies
		SET name = $2, exchange = $3, sector = $4, industry = $5, currency = $6,
			cik = $7, sedar_id = $8, is_active = $9, updated_at = now()
		WHERE id = $1`,
		c.ID, c.Name, c.Exchange, c.Sector, c.Industry, c.Currency, c.CIK, c.SedarID, c.IsActive)
	if err != nil {
		return fmt.Errorf("update company %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("company %s: %w", c.ID, ErrNotFound)
	}
	return nil
}
