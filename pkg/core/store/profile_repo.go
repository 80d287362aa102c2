package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"thesisengine/pkg/models"
)

const profileColumns = `id, company_id, version, description, business_model,
	competitive_position, key_products, geographic_mix, moat_assessment, moat_sources,
	created_at, updated_at`

func scanProfile(row interface{ Scan(dest ...any) error }, p *models.BusinessProfile) error {
	return row.Scan(&p.ID, &p.CompanyID, &p.Version, &p.Description, &p.BusinessModel,
		&p.CompetitivePosition, &p.KeyProducts, &p.GeographicMix, &p.MoatAssessment,
		&p.MoatSources, &p.CreatedAt, &p.UpdatedAt)
}

// CreateProfile inserts the next profile version. Version is assigned by the
// caller; the (company, version) unique index rejects conflicting writers.
func (q *queries) CreateProfile(ctx context.Context, p *models.BusinessProfile) error {
	query := `
		INSERT INTO business_profiles (
			company_id, version, description, business_model, competitive_position,
			key_products, geographic_mix, moat_assessment, moat_sources
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	err := q.db.QueryRow(ctx, query,
		p.CompanyID, p.Version, p.Description, p.BusinessModel, p.CompetitivePosition,
		p.KeyProducts, p.GeographicMix, p.MoatAssessment, p.MoatSources,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create profile v%d: %w", p.Version, err)
	}
	return nil
}

// CurrentProfile returns the highest profile version for the company.
func (q *queries) CurrentProfile(ctx context.Context, companyID uuid.UUID) (*models.BusinessProfile, error) {
	var p models.BusinessProfile
	row := q.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM business_profiles
		 WHERE company_id = $1 ORDER BY version DESC LIMIT 1`,
		companyID)
	if err := scanProfile(row, &p); err != nil {
		return nil, notFound(err, "current profile")
	}
	return &p, nil
}

func (q *queries) ListProfiles(ctx context.Context, companyID uuid.UUID) ([]models.BusinessProfile, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+profileColumns+` FROM business_profiles
		 WHERE company_id = $1 ORDER BY version DESC`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []models.BusinessProfile
	for rows.Next() {
		var p models.BusinessProfile
		if err := scanProfile(rows, &p); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
