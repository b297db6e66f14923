package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/studycompanion/internal/domain"
)

// ChunkRepository handles persistence of document chunks and their embeddings.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

const chunkColumns = `c.id, c.document_id, c.sequence_index, c.content, c.page_number, c.embedding::text, c.metadata, c.created_at`

// CreateBatch inserts the chunks in order. Chunks without an embedding get a NULL vector.
func (r *ChunkRepository) CreateBatch(ctx context.Context, chunks []*domain.Chunk) error {
	for _, c := range chunks {
		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("encode chunk metadata: %w", err)
		}

		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		var embedding any
		if c.HasEmbedding() {
			embedding = pgvector.NewVector(c.Embedding)
		}

		_, err = r.db.Exec(ctx,
			`INSERT INTO chunks (id, document_id, sequence_index, content, page_number, embedding, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.DocumentID, c.SequenceIndex, c.Content, c.PageNumber, embedding, metadata, createdAt,
		)
		switch {
		case isUniqueViolation(err):
			return domain.ErrChunkAlreadyExists
		case isForeignKeyViolation(err):
			return domain.ErrDocumentNotFound
		case err != nil:
			return err
		}
	}
	return nil
}

func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`
		 FROM chunks c
		 WHERE c.document_id = $1
		 ORDER BY c.sequence_index`,
		documentID,
	)
	if err != nil {
		if isNotFound(err) {
			return []*domain.Chunk{}, nil
		}
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// ListSearchable returns embedded chunks of the user's completed documents.
// An empty documentID searches all of them.
func (r *ChunkRepository) ListSearchable(ctx context.Context, userID, documentID string) ([]*domain.Chunk, error) {
	var rows pgx.Rows
	var err error

	if documentID != "" {
		rows, err = r.db.Query(ctx,
			`SELECT `+chunkColumns+`
			 FROM chunks c
			 JOIN documents d ON d.id = c.document_id
			 WHERE d.user_id = $1 AND d.id = $2 AND d.status = $3 AND c.embedding IS NOT NULL
			 ORDER BY c.sequence_index`,
			userID, documentID, domain.DocumentStatusCompleted,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+chunkColumns+`
			 FROM chunks c
			 JOIN documents d ON d.id = c.document_id
			 WHERE d.user_id = $1 AND d.status = $2 AND c.embedding IS NOT NULL
			 ORDER BY d.created_at, c.document_id, c.sequence_index`,
			userID, domain.DocumentStatusCompleted,
		)
	}
	if err != nil {
		if isNotFound(err) {
			return []*domain.Chunk{}, nil
		}
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

func scanChunkRows(rows pgx.Rows) ([]*domain.Chunk, error) {
	results := []*domain.Chunk{}
	for rows.Next() {
		var c domain.Chunk
		var embedding *string
		var metadata []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.SequenceIndex, &c.Content, &c.PageNumber, &embedding, &metadata, &c.CreatedAt); err != nil {
			return nil, err
		}
		if embedding != nil {
			var v pgvector.Vector
			if err := v.Scan(*embedding); err != nil {
				return nil, fmt.Errorf("decode chunk embedding: %w", err)
			}
			c.Embedding = v.Slice()
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
				return nil, fmt.Errorf("decode chunk metadata: %w", err)
			}
		}
		results = append(results, &c)
	}
	return results, rows.Err()
}
