package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"thesisengine/pkg/models"
)

const thesisColumns = `id, company_id, snapshot_id, version,
	bull_case, bull_target, base_case, base_target, bear_case, bear_target,
	key_drivers, key_risks, catalysts,
	integrity_score, integrity_rationale,
	prior_version_id, drift_summary, conviction_direction,
	llm_model_used, created_at, updated_at`

func scanThesis(row interface{ Scan(dest ...any) error }, t *models.ThesisVersion) error {
	return row.Scan(&t.ID, &t.CompanyID, &t.SnapshotID, &t.Version,
		&t.BullCase, &t.BullTarget, &t.BaseCase, &t.BaseTarget, &t.BearCase, &t.BearTarget,
		&t.KeyDrivers, &t.KeyRisks, &t.Catalysts,
		&t.IntegrityScore, &t.IntegrityRationale,
		&t.PriorVersionID, &t.DriftSummary, &t.ConvictionDirection,
		&t.LLMModelUsed, &t.CreatedAt, &t.UpdatedAt)
}

// LockCompanyForThesis serializes thesis creation per company for the life of
// the current transaction. Reading the latest version and inserting the next
// one under this lock makes version numbers contiguous even with concurrent
// writers. Only meaningful inside InTx; the lock releases at commit/rollback.
func (q *queries) LockCompanyForThesis(ctx context.Context, companyID uuid.UUID) error {
	if _, err := q.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, companyID); err != nil {
		return fmt.Errorf("lock company %s for thesis: %w", companyID, err)
	}
	return nil
}

// LatestThesis returns the highest thesis version for the company.
func (q *queries) LatestThesis(ctx context.Context, companyID uuid.UUID) (*models.ThesisVersion, error) {
	var t models.ThesisVersion
	row := q.db.QueryRow(ctx,
		`SELECT `+thesisColumns+` FROM thesis_versions
		 WHERE company_id = $1 ORDER BY version DESC LIMIT 1`,
		companyID)
	if err := scanThesis(row, &t); err != nil {
		return nil, notFound(err, "latest thesis")
	}
	return &t, nil
}

func (q *queries) GetThesis(ctx context.Context, id uuid.UUID) (*models.ThesisVersion, error) {
	var t models.ThesisVersion
	row := q.db.QueryRow(ctx, `SELECT `+thesisColumns+` FROM thesis_versions WHERE id = $1`, id)
	if err := scanThesis(row, &t); err != nil {
		return nil, notFound(err, fmt.Sprintf("thesis %s", id))
	}
	return &t, nil
}

// InsertThesis persists a fully assembled version. The (company, version)
// unique index is the last line of defense against duplicate numbering.
func (q *queries) InsertThesis(ctx context.Context, t *models.ThesisVersion) error {
	query := `
		INSERT INTO thesis_versions (
			company_id, snapshot_id, version,
			bull_case, bull_target, base_case, base_target, bear_case, bear_target,
			key_drivers, key_risks, catalysts,
			integrity_score, integrity_rationale,
			prior_version_id, drift_summary, conviction_direction, llm_model_used
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at, updated_at`
	err := q.db.QueryRow(ctx, query,
		t.CompanyID, t.SnapshotID, t.Version,
		t.BullCase, t.BullTarget, t.BaseCase, t.BaseTarget, t.BearCase, t.BearTarget,
		t.KeyDrivers, t.KeyRisks, t.Catalysts,
		t.IntegrityScore, t.IntegrityRationale,
		t.PriorVersionID, t.DriftSummary, t.ConvictionDirection, t.LLMModelUsed,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert thesis v%d: %w", t.Version, err)
	}
	return nil
}

func (q *queries) ListTheses(ctx context.Context, companyID uuid.UUID) ([]models.ThesisVersion, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+thesisColumns+` FROM thesis_versions
		 WHERE company_id = $1 ORDER BY version DESC`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("list theses: %w", err)
	}
	defer rows.Close()

	var out []models.ThesisVersion
	for rows.Next() {
		var t models.ThesisVersion
		if err := scanThesis(rows, &t); err != nil {
			return nil, fmt.Errorf("scan thesis: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
