package domain

import (
	"fmt"
	"time"
)

// AnswerOutcome classifies how a RAG interaction ended
type AnswerOutcome string

const (
	AnswerOutcomeAnswered         AnswerOutcome = "answered"
	AnswerOutcomeNoResults        AnswerOutcome = "no_results"
	AnswerOutcomeSearchFailed     AnswerOutcome = "search_failed"
	AnswerOutcomeGenerationFailed AnswerOutcome = "generation_failed"
)

// Citation is a weak reference to a chunk cited by a query record.
// The chunk may no longer exist.
type Citation struct {
	ChunkID       string
	DocumentID    string
	SequenceIndex int
	Rank          int
}

// QueryRecord is an immutable log entry of one RAG interaction
type QueryRecord struct {
	ID         string
	UserID     string
	DocumentID string // empty when the question was asked across all documents
	Question   string
	Answer     string
	Confidence float64
	Outcome    AnswerOutcome
	Citations  []Citation
	CreatedAt  time.Time
}

// ValidateQueryRecord validates a QueryRecord instance
func ValidateQueryRecord(q *QueryRecord) error {
	if q == nil {
		return fmt.Errorf("query record cannot be nil")
	}
	if err := requireFields("query record", field{"ID", q.ID}, field{"UserID", q.UserID}, field{"Question", q.Question}); err != nil {
		return err
	}
	if q.Confidence < 0 || q.Confidence > 1 {
		return fmt.Errorf("query record Confidence must be within [0,1], got %v", q.Confidence)
	}
	return nil
}
