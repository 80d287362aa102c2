package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"thesisengine/pkg/models"
)

const documentColumns = `id, company_id, doc_type, source, source_url,
	storage_key, file_size_bytes, filing_date, created_at, updated_at`

func scanDocument(row interface{ Scan(dest ...any) error }, d *models.Document) error {
	return row.Scan(&d.ID, &d.CompanyID, &d.DocType, &d.Source, &d.SourceURL,
		&d.StorageKey, &d.FileSizeBytes, &d.FilingDate, &d.CreatedAt, &d.UpdatedAt)
}

func (q *queries) CreateDocument(ctx context.Context, d *models.Document) error {
	query := `
		INSERT INTO documents (company_id, doc_type, source, source_url, storage_key, file_size_bytes, filing_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	err := q.db.QueryRow(ctx, query,
		d.CompanyID, d.DocType, d.Source, d.SourceURL, d.StorageKey, d.FileSizeBytes, d.FilingDate,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create document %s: %w", d.SourceURL, err)
	}
	return nil
}

// FindDocumentByURL is the ingestion dedup check: a (company, source URL)
// pair already on file means the filing has been processed.
func (q *queries) FindDocumentByURL(ctx context.Context, companyID uuid.UUID, sourceURL string) (*models.Document, error) {
	var d models.Document
	row := q.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE company_id = $1 AND source_url = $2`,
		companyID, sourceURL)
	if err := scanDocument(row, &d); err != nil {
		return nil, notFound(err, fmt.Sprintf("document %s", sourceURL))
	}
	return &d, nil
}

func (q *queries) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var d models.Document
	row := q.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	if err := scanDocument(row, &d); err != nil {
		return nil, notFound(err, fmt.Sprintf("document %s", id))
	}
	return &d, nil
}

func (q *queries) ListDocuments(ctx context.Context, companyID uuid.UUID) ([]models.Document, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE company_id = $1 ORDER BY filing_date DESC, created_at DESC`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := scanDocument(rows, &d); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
