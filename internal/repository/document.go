package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/pagination"
	"github.com/cloo-solutions/studycompanion/internal/service"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

const documentColumns = `id, user_id, title, description, subject, kind, filename, size_bytes, content_key,
	status, is_processed, error, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		d.ID, d.UserID, d.Title, d.Description, d.Subject, d.Kind, d.Filename, d.SizeBytes, d.ContentKey,
		d.Status, d.IsProcessed, d.Error, d.CreatedAt, d.UpdatedAt,
	)
	if isForeignKeyViolation(err) {
		return domain.ErrUserNotFound
	}
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	d, err := scanDocument(r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`,
		id,
	))
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListByUserWithCursor pages the user's documents newest first.
func (r *DocumentRepository) ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	limit = pagination.ClampLimit(limit)

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE user_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			userID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE user_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			userID, limit+1,
		)
	}
	if err != nil {
		if isNotFound(err) {
			return &service.DocumentPageResult{Items: []*domain.Document{}}, nil
		}
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	items, next := pagination.Trim(items, limit, func(d *domain.Document) (string, time.Time) {
		return d.ID, d.CreatedAt
	})
	return &service.DocumentPageResult{Items: items, NextCursor: next, HasMore: next != ""}, nil
}

// ListPending returns the oldest pending documents first.
func (r *DocumentRepository) ListPending(ctx context.Context, limit int) ([]*domain.Document, error) {
	limit = pagination.ClampLimit(limit)
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+`
		 FROM documents
		 WHERE status = $1
		 ORDER BY created_at ASC, id ASC
		 LIMIT $2`,
		domain.DocumentStatusPending, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// TransitionStatus is a compare-and-set on the current status. reason is stored as
// the document error and is only meaningful for the failed state.
func (r *DocumentRepository) TransitionStatus(ctx context.Context, id string, from, to domain.DocumentStatus, reason string) error {
	if !from.CanTransitionTo(to) {
		return domain.ErrInvalidStatusTransition
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = $1, is_processed = is_processed OR $2, error = $3, updated_at = $4
		 WHERE id = $5 AND status = $6`,
		to, to == domain.DocumentStatusCompleted, reason, time.Now().UTC(), id, from,
	)
	if err != nil {
		if isNotFound(err) {
			return domain.ErrDocumentNotFound
		}
		return err
	}
	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrInvalidStatusTransition
}

// Delete removes the document; its chunks go with it by cascade.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		if isNotFound(err) {
			return domain.ErrDocumentNotFound
		}
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	err := row.Scan(&d.ID, &d.UserID, &d.Title, &d.Description, &d.Subject, &d.Kind, &d.Filename, &d.SizeBytes,
		&d.ContentKey, &d.Status, &d.IsProcessed, &d.Error, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	results := []*domain.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}
