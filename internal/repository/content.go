package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/studycompanion/internal/domain"
)

// ContentRepository keeps raw document bytes in PostgreSQL when no object store is configured.
type ContentRepository struct {
	db dbtx
}

func NewContentRepository(pool *pgxpool.Pool) *ContentRepository {
	return &ContentRepository{db: pool}
}

func (r *ContentRepository) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO document_contents (document_key, content_type, content)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (document_key) DO UPDATE SET content_type = EXCLUDED.content_type, content = EXCLUDED.content`,
		key, contentType, data,
	)
	return err
}

func (r *ContentRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRow(ctx,
		`SELECT content FROM document_contents WHERE document_key = $1`,
		key,
	).Scan(&data)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrContentNotFound
		}
		return nil, err
	}
	return data, nil
}

func (r *ContentRepository) Delete(ctx context.Context, key string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM document_contents WHERE document_key = $1`, key)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrContentNotFound
	}
	return nil
}
