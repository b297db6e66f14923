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

// QueryRecordRepository stores the immutable RAG query log
type QueryRecordRepository struct {
	pool *pgxpool.Pool
}

func NewQueryRecordRepository(pool *pgxpool.Pool) *QueryRecordRepository {
	return &QueryRecordRepository{pool: pool}
}

// Create writes the record and its citations in one transaction.
func (r *QueryRecordRepository) Create(ctx context.Context, rec *domain.QueryRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO query_records (id, user_id, document_id, question, answer, confidence, outcome, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.UserID, nullableString(rec.DocumentID), rec.Question, rec.Answer, rec.Confidence, rec.Outcome, rec.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, c := range rec.Citations {
		_, err := tx.Exec(ctx,
			`INSERT INTO query_record_chunks (query_record_id, chunk_id, document_id, sequence_index, rank)
			 VALUES ($1, $2, $3, $4, $5)`,
			rec.ID, c.ChunkID, c.DocumentID, c.SequenceIndex, c.Rank,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *QueryRecordRepository) ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*service.QueryRecordPageResult, error) {
	limit = pagination.ClampLimit(limit)

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.pool.Query(ctx,
			`SELECT id, user_id, document_id, question, answer, confidence, outcome, created_at
			 FROM query_records
			 WHERE user_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			userID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT id, user_id, document_id, question, answer, confidence, outcome, created_at
			 FROM query_records
			 WHERE user_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			userID, limit+1,
		)
	}
	if err != nil {
		if isNotFound(err) {
			return &service.QueryRecordPageResult{Items: []*domain.QueryRecord{}}, nil
		}
		return nil, err
	}

	items := []*domain.QueryRecord{}
	for rows.Next() {
		var rec domain.QueryRecord
		var documentID *string
		if err := rows.Scan(&rec.ID, &rec.UserID, &documentID, &rec.Question, &rec.Answer, &rec.Confidence, &rec.Outcome, &rec.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		rec.DocumentID = stringValue(documentID)
		items = append(items, &rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, next := pagination.Trim(items, limit, func(q *domain.QueryRecord) (string, time.Time) {
		return q.ID, q.CreatedAt
	})
	if err := r.loadCitations(ctx, items); err != nil {
		return nil, err
	}
	return &service.QueryRecordPageResult{Items: items, NextCursor: next, HasMore: next != ""}, nil
}

func (r *QueryRecordRepository) loadCitations(ctx context.Context, items []*domain.QueryRecord) error {
	if len(items) == 0 {
		return nil
	}

	byID := make(map[string]*domain.QueryRecord, len(items))
	ids := make([]string, len(items))
	for i, rec := range items {
		rec.Citations = []domain.Citation{}
		byID[rec.ID] = rec
		ids[i] = rec.ID
	}

	rows, err := r.pool.Query(ctx,
		`SELECT query_record_id, chunk_id, document_id, sequence_index, rank
		 FROM query_record_chunks
		 WHERE query_record_id = ANY($1::uuid[])
		 ORDER BY query_record_id, rank`,
		ids,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var recordID string
		var c domain.Citation
		if err := rows.Scan(&recordID, &c.ChunkID, &c.DocumentID, &c.SequenceIndex, &c.Rank); err != nil {
			return err
		}
		if rec, ok := byID[recordID]; ok {
			rec.Citations = append(rec.Citations, c)
		}
	}
	return rows.Err()
}
