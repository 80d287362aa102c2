package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"thesisengine/pkg/models"
)

const jobColumns = `id, company_id, filing, status, attempts, max_attempts,
	next_run_at, last_error, created_at, updated_at`

func scanJob(row interface{ Scan(dest ...any) error }, j *models.IngestionJob) error {
	return row.Scan(&j.ID, &j.CompanyID, &j.Filing, &j.Status, &j.Attempts,
		&j.MaxAttempts, &j.NextRunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
}

// EnqueueJob records a discovered filing as pending work.
func (q *queries) EnqueueJob(ctx context.Context, j *models.IngestionJob) error {
	if j.Status == "" {
		j.Status = models.JobStatusPending
	}
	if j.MaxAttempts == 0 {
		j.MaxAttempts = 3
	}
	if j.NextRunAt.IsZero() {
		j.NextRunAt = time.Now()
	}
	query := `
		INSERT INTO ingestion_jobs (company_id, filing, status, max_attempts, next_run_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, attempts, created_at, updated_at`
	err := q.db.QueryRow(ctx, query,
		j.CompanyID, j.Filing, j.Status, j.MaxAttempts, j.NextRunAt,
	).Scan(&j.ID, &j.Attempts, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// ClaimDueJobs atomically moves up to limit due pending jobs to running and
// returns them. SKIP LOCKED lets multiple workers poll the same table without
// claiming the same row twice.
func (q *queries) ClaimDueJobs(ctx context.Context, limit int) ([]models.IngestionJob, error) {
	query := `
		UPDATE ingestion_jobs
		SET status = $1, attempts = attempts + 1, updated_at = now()
		WHERE id IN (
			SELECT id FROM ingestion_jobs
			WHERE status = $2 AND next_run_at <= now()
			ORDER BY next_run_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns
	rows, err := q.db.Query(ctx, query, models.JobStatusRunning, models.JobStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	defer rows.Close()

	var out []models.IngestionJob
	for rows.Next() {
		var j models.IngestionJob
		if err := scanJob(rows, &j); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// MarkJobSucceeded finishes a running job.
func (q *queries) MarkJobSucceeded(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE ingestion_jobs
		SET status = $2, last_error = '', updated_at = now()
		WHERE id = $1`,
		id, models.JobStatusSucceeded)
	if err != nil {
		return fmt.Errorf("mark job %s succeeded: %w", id, err)
	}
	return nil
}

// MarkJobFailed records a failed attempt. If attempts remain the job goes
// back to pending with the retry delay; otherwise it stays failed as a dead
// letter for operator review.
func (q *queries) MarkJobFailed(ctx context.Context, id uuid.UUID, cause string, retryDelay time.Duration) error {
	_, err := q.db.Exec(ctx, `
		UPDATE ingestion_jobs
		SET status = CASE WHEN attempts < max_attempts THEN $2 ELSE $3 END,
			next_run_at = now() + $4,
			last_error = $5,
			updated_at = now()
		WHERE id = $1`,
		id, models.JobStatusPending, models.JobStatusFailed, retryDelay, cause)
	if err != nil {
		return fmt.Errorf("mark job %s failed: %w", id, err)
	}
	return nil
}

// ReclaimStalledJobs requeues running jobs whose last update predates cutoff.
// Such rows belong to workers that died before recording an outcome; the claim
// already counted the attempt, so rows out of attempts dead-letter instead of
// requeueing. Returns the number of rows touched.
func (q *queries) ReclaimStalledJobs(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE ingestion_jobs
		SET status = CASE WHEN attempts < max_attempts THEN $2 ELSE $3 END,
			last_error = 'worker lost before recording an outcome',
			updated_at = now()
		WHERE status = $4 AND updated_at < $1`,
		cutoff, models.JobStatusPending, models.JobStatusFailed, models.JobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("reclaim stalled jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (q *queries) ListJobs(ctx context.Context, companyID uuid.UUID) ([]models.IngestionJob, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+jobColumns+` FROM ingestion_jobs WHERE company_id = $1 ORDER BY created_at DESC`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []models.IngestionJob
	for rows.Next() {
		var j models.IngestionJob
		if err := scanJob(rows, &j); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// HasPendingJob reports whether a job for the same filing URL is already
// queued or running, so the sweep does not enqueue duplicates.
func (q *queries) HasPendingJob(ctx context.Context, companyID uuid.UUID, sourceURL string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ingestion_jobs
			WHERE company_id = $1
			  AND filing->>'url' = $2
			  AND status IN ($3, $4)
		)`,
		companyID, sourceURL, models.JobStatusPending, models.JobStatusRunning,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending job: %w", err)
	}
	return exists, nil
}
