package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"thesisengine/pkg/models"
)

const updateColumns = `id, company_id, snapshot_id, thesis_version_id,
	fiscal_year, fiscal_quarter, filing_type,
	executive_summary, key_changes, guidance_update, management_commentary,
	created_at, updated_at`

func scanUpdate(row interface{ Scan(dest ...any) error }, u *models.QuarterlyUpdate) error {
	return row.Scan(&u.ID, &u.CompanyID, &u.SnapshotID, &u.ThesisVersionID,
		&u.FiscalYear, &u.FiscalQuarter, &u.FilingType,
		&u.ExecutiveSummary, &u.KeyChanges, &u.GuidanceUpdate, &u.ManagementCommentary,
		&u.CreatedAt, &u.UpdatedAt)
}

func (q *queries) CreateUpdate(ctx context.Context, u *models.QuarterlyUpdate) error {
	query := `
		INSERT INTO quarterly_updates (
			company_id, snapshot_id, thesis_version_id, fiscal_year, fiscal_quarter,
			filing_type, executive_summary, key_changes, guidance_update, management_commentary
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`
	err := q.db.QueryRow(ctx, query,
		u.CompanyID, u.SnapshotID, u.ThesisVersionID, u.FiscalYear, u.FiscalQuarter,
		u.FilingType, u.ExecutiveSummary, u.KeyChanges, u.GuidanceUpdate, u.ManagementCommentary,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create update FY%d Q%d: %w", u.FiscalYear, u.FiscalQuarter, err)
	}
	return nil
}

// FindUpdateByPeriod is the per-period dedup check for quarterly updates.
func (q *queries) FindUpdateByPeriod(ctx context.Context, companyID uuid.UUID, year, quarter int) (*models.QuarterlyUpdate, error) {
	var u models.QuarterlyUpdate
	row := q.db.QueryRow(ctx,
		`SELECT `+updateColumns+` FROM quarterly_updates
		 WHERE company_id = $1 AND fiscal_year = $2 AND fiscal_quarter = $3`,
		companyID, year, quarter)
	if err := scanUpdate(row, &u); err != nil {
		return nil, notFound(err, fmt.Sprintf("update FY%d Q%d", year, quarter))
	}
	return &u, nil
}

func (q *queries) ListUpdates(ctx context.Context, companyID uuid.UUID) ([]models.QuarterlyUpdate, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+updateColumns+` FROM quarterly_updates
		 WHERE company_id = $1 ORDER BY fiscal_year DESC, fiscal_quarter DESC`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}
	defer rows.Close()

	var out []models.QuarterlyUpdate
	for rows.Next() {
		var u models.QuarterlyUpdate
		if err := scanUpdate(rows, &u); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
