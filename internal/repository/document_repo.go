package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"edulearn-backend/internal/models"
)

type DocumentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

const documentColumns = `id, user_id, title, file_type, file_size, file_path, extracted_text, summary,
	page_summaries, easy_explanation, key_concepts, wiki_context, page_count, processing_status,
	created_at, updated_at`

func scanDocument(row pgx.Row) (*models.Document, error) {
	d := &models.Document{}
	err := row.Scan(
		&d.ID, &d.UserID, &d.Title, &d.FileType, &d.FileSize, &d.FilePath, &d.ExtractedText, &d.Summary,
		&d.PageSummaries, &d.EasyExplanation, &d.KeyConcepts, &d.WikiContext, &d.PageCount, &d.ProcessingStatus,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if d.PageSummaries == nil {
		d.PageSummaries = []models.PageSummary{}
	}
	if d.KeyConcepts == nil {
		d.KeyConcepts = []string{}
	}
	if d.WikiContext == nil {
		d.WikiContext = []models.WikiEntry{}
	}
	return d, nil
}

// Create inserts a new document in the pending state.
func (r *DocumentRepo) Create(ctx context.Context, d *models.Document) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.ProcessingStatus = models.StatusPending
	d.PageSummaries = []models.PageSummary{}
	d.KeyConcepts = []string{}
	d.WikiContext = []models.WikiEntry{}

	query := `INSERT INTO documents (id, user_id, title, file_type, file_size, file_path, processing_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		d.ID, d.UserID, d.Title, d.FileType, d.FileSize, d.FilePath, d.ProcessingStatus,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *DocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	d, err := scanDocument(r.pool.QueryRow(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

// ListByUser returns one page of the user's documents, newest first, and the total count.
func (r *DocumentRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Document, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM documents WHERE user_id = $1", userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	docs := []*models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, d)
	}
	return docs, total, rows.Err()
}

func (r *DocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ProcessingStatus) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE documents SET processing_status = $1, updated_at = NOW() WHERE id = $2",
		status, id,
	)
	return err
}

// SetExtraction stores the extracted text and page count. It runs before any
// page insight is written.
func (r *DocumentRepo) SetExtraction(ctx context.Context, id uuid.UUID, text string, pageCount int) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE documents SET extracted_text = $1, page_count = $2, updated_at = NOW() WHERE id = $3",
		text, pageCount, id,
	)
	return err
}

func (r *DocumentRepo) SetSummary(ctx context.Context, id uuid.UUID, summary string) error {
	_, err := r.pool.Exec(ctx, "UPDATE documents SET summary = $1, updated_at = NOW() WHERE id = $2", summary, id)
	return err
}

// AppendPageSummary appends one insight. The append is skipped once the array
// has reached page_count.
func (r *DocumentRepo) AppendPageSummary(ctx context.Context, id uuid.UUID, insight models.PageSummary) error {
	data, err := json.Marshal([]models.PageSummary{insight})
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE documents
		SET page_summaries = page_summaries || $1::jsonb, updated_at = NOW()
		WHERE id = $2 AND jsonb_array_length(page_summaries) < page_count`,
		data, id,
	)
	return err
}

func (r *DocumentRepo) SetExplanation(ctx context.Context, id uuid.UUID, explanation string) error {
	_, err := r.pool.Exec(ctx, "UPDATE documents SET easy_explanation = $1, updated_at = NOW() WHERE id = $2", explanation, id)
	return err
}

func (r *DocumentRepo) SetKeyConcepts(ctx context.Context, id uuid.UUID, concepts []string) error {
	data, err := json.Marshal(concepts)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, "UPDATE documents SET key_concepts = $1, updated_at = NOW() WHERE id = $2", data, id)
	return err
}

func (r *DocumentRepo) SetWikiContext(ctx context.Context, id uuid.UUID, entries []models.WikiEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, "UPDATE documents SET wiki_context = $1, updated_at = NOW() WHERE id = $2", data, id)
	return err
}

// ResetForReprocess clears every derived field and puts the document back to pending.
func (r *DocumentRepo) ResetForReprocess(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE documents SET
			extracted_text = NULL, summary = NULL, page_summaries = '[]'::jsonb,
			easy_explanation = NULL, key_concepts = '[]'::jsonb, wiki_context = '[]'::jsonb,
			page_count = 0, processing_status = $1, updated_at = NOW()
		WHERE id = $2`,
		models.StatusPending, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
