package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/openai"
	"github.com/cloo-solutions/studycompanion/internal/pagination"
	"github.com/cloo-solutions/studycompanion/internal/retrieval"
	"github.com/cloo-solutions/studycompanion/internal/telemetry"
)

// Fixed user-facing replies of the RAG answerer
const (
	MessageSearchUnavailable = "Sorry, I couldn't search your documents right now. Please try again later."
	MessageNoResults         = "I couldn't find any relevant information in your uploaded documents to answer this question. Please try rephrasing your question or upload relevant study materials."
	MessageGenerationOff     = "Sorry, I'm unable to generate responses at the moment. Please try again later."
	MessageGenerationError   = "Sorry, I encountered an error while processing your question. Please try again."

	maxConfidence = 0.9
)

// Generator runs one chat completion
type Generator interface {
	Complete(ctx context.Context, req openai.ChatRequest) (string, error)
}

// QueryRecordRepositoryInterface defines the repository interface for the RAG query log
type QueryRecordRepositoryInterface interface {
	Create(ctx context.Context, rec *domain.QueryRecord) error
	ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*QueryRecordPageResult, error)
}

type QueryRecordPageResult struct {
	Items      []*domain.QueryRecord
	NextCursor string
	HasMore    bool
}

// RAGConfig bounds retrieval and the grounded generation call
type RAGConfig struct {
	MaxChunks   int
	MaxTokens   int
	Temperature float32
}

// DefaultRAGConfig returns five chunks, 500 tokens and temperature 0.3.
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		MaxChunks:   retrieval.DefaultTopK,
		MaxTokens:   500,
		Temperature: 0.3,
	}
}

// AskInput is one question against the user's documents
type AskInput struct {
	UserID     string
	Question   string
	DocumentID string
}

// Answer is the outcome of one RAG interaction. Chunks and Citations are in rank order.
type Answer struct {
	Text          string
	Confidence    float64
	Outcome       domain.AnswerOutcome
	Chunks        []*domain.Chunk
	Citations     []domain.Citation
	Label         string
	QueryRecordID string
}

// RAGService answers questions grounded in the user's processed documents
type RAGService struct {
	docs      DocumentRepositoryInterface
	chunks    ChunkRepositoryInterface
	queries   QueryRecordRepositoryInterface
	embedder  Embedder
	generator Generator
	cfg       RAGConfig
	uuidGen   UUIDGenerator
}

func NewRAGService(
	docs DocumentRepositoryInterface,
	chunks ChunkRepositoryInterface,
	queries QueryRecordRepositoryInterface,
	embedder Embedder,
	generator Generator,
	cfg RAGConfig,
) *RAGService {
	return NewRAGServiceWithUUIDGen(docs, chunks, queries, embedder, generator, cfg, &DefaultUUIDGenerator{})
}

func NewRAGServiceWithUUIDGen(
	docs DocumentRepositoryInterface,
	chunks ChunkRepositoryInterface,
	queries QueryRecordRepositoryInterface,
	embedder Embedder,
	generator Generator,
	cfg RAGConfig,
	uuidGen UUIDGenerator,
) *RAGService {
	defaults := DefaultRAGConfig()
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = defaults.MaxChunks
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	return &RAGService{
		docs:      docs,
		chunks:    chunks,
		queries:   queries,
		embedder:  embedder,
		generator: generator,
		cfg:       cfg,
		uuidGen:   uuidGen,
	}
}

// Answer embeds the question, ranks the user's searchable chunks and generates a
// grounded reply. Service failures become fixed replies, never errors; errors are
// returned only for invalid input, an unknown document or a failed chunk lookup.
func (s *RAGService) Answer(ctx context.Context, input AskInput) (*Answer, error) {
	ctx, span := telemetry.StartSpan(ctx, "RAGService.Answer", telemetry.SpanAttributes{
		UserID:     input.UserID,
		DocumentID: input.DocumentID,
		Operation:  "ask",
	})
	defer span.End()

	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	var label string
	if input.DocumentID != "" {
		doc, err := s.docs.GetByID(ctx, input.DocumentID)
		if err != nil {
			return nil, err
		}
		if doc.UserID != input.UserID {
			return nil, domain.ErrDocumentNotFound
		}
		label = "RAG Response - " + doc.Title
	}

	queryVector, err := s.embedder.GenerateEmbedding(ctx, question)
	if err != nil || len(queryVector) == 0 {
		log.Printf("rag: query embedding failed user_id=%s document_id=%s: %v", input.UserID, input.DocumentID, err)
		span.SetOutcome(string(domain.AnswerOutcomeSearchFailed))
		return &Answer{
			Text:      MessageSearchUnavailable,
			Outcome:   domain.AnswerOutcomeSearchFailed,
			Chunks:    []*domain.Chunk{},
			Citations: []domain.Citation{},
			Label:     label,
		}, nil
	}

	candidates, err := s.chunks.ListSearchable(ctx, input.UserID, input.DocumentID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	hits := retrieval.Search(queryVector, retrieval.CandidatesFromChunks(candidates), s.cfg.MaxChunks)
	found := retrieval.Chunks(hits)

	answer := &Answer{
		Chunks:    found,
		Citations: citationsFor(found),
		Label:     label,
	}

	if len(found) == 0 {
		answer.Text = MessageNoResults
		answer.Outcome = domain.AnswerOutcomeNoResults
		span.SetOutcome(string(domain.AnswerOutcomeNoResults))
		s.record(ctx, input, question, answer)
		return answer, nil
	}

	reply, err := s.generator.Complete(ctx, openai.ChatRequest{
		Messages:    []openai.Message{{Role: openai.RoleUser, Content: BuildRAGPrompt(found, question)}},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		log.Printf("rag: generation failed user_id=%s document_id=%s chunks=%d: %v",
			input.UserID, input.DocumentID, len(found), err)
		answer.Text = MessageGenerationError
		if errors.Is(err, openai.ErrNoAPIKey) {
			answer.Text = MessageGenerationOff
		}
		answer.Outcome = domain.AnswerOutcomeGenerationFailed
		span.SetOutcome(string(domain.AnswerOutcomeGenerationFailed))
		s.record(ctx, input, question, answer)
		return answer, nil
	}

	answer.Text = reply
	answer.Confidence = Confidence(len(found), s.cfg.MaxChunks)
	answer.Outcome = domain.AnswerOutcomeAnswered
	span.SetOutcome(string(domain.AnswerOutcomeAnswered))
	s.record(ctx, input, question, answer)
	return answer, nil
}

func (s *RAGService) ListQueries(ctx context.Context, userID, cursor string, limit int) (*QueryRecordPageResult, error) {
	c, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	return s.queries.ListByUserWithCursor(ctx, userID, c, limit)
}

// record stores the interaction. The answer is still returned if logging fails.
func (s *RAGService) record(ctx context.Context, input AskInput, question string, answer *Answer) {
	rec := &domain.QueryRecord{
		ID:         s.uuidGen.NewString(),
		UserID:     input.UserID,
		DocumentID: input.DocumentID,
		Question:   question,
		Answer:     answer.Text,
		Confidence: answer.Confidence,
		Outcome:    answer.Outcome,
		Citations:  answer.Citations,
		CreatedAt:  time.Now().UTC(),
	}
	if err := domain.ValidateQueryRecord(rec); err != nil {
		log.Printf("rag: invalid query record user_id=%s: %v", input.UserID, err)
		return
	}
	if err := s.queries.Create(ctx, rec); err != nil {
		log.Printf("rag: failed to store query record user_id=%s document_id=%s: %v", input.UserID, input.DocumentID, err)
		telemetry.CaptureError(ctx, err)
		return
	}
	answer.QueryRecordID = rec.ID
}

// Confidence is min(0.9, retrieved/max). It measures how much grounding was found,
// not how likely the answer is to be right.
func Confidence(retrieved, maxChunks int) float64 {
	if retrieved <= 0 || maxChunks <= 0 {
		return 0
	}
	return min(maxConfidence, float64(retrieved)/float64(maxChunks))
}

// BuildRAGPrompt joins the ranked chunks into the instructional grounding prompt.
func BuildRAGPrompt(chunks []*domain.Chunk, question string) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return fmt.Sprintf(`You are an educational assistant helping a student with their uploaded study materials.
Context from the student's documents:
%s
Student's question: %s
Please provide a helpful, educational response based on the context provided. If the context doesn't contain enough information to fully answer the question, acknowledge this and provide what you can from the available information.
Your response should be:
1. Educational and informative
2. Based on the provided context
3. Clear and well-structured
4. Helpful for learning and understanding
Response:`, strings.Join(parts, "\n\n"), question)
}

func citationsFor(chunks []*domain.Chunk) []domain.Citation {
	out := make([]domain.Citation, len(chunks))
	for i, c := range chunks {
		out[i] = domain.Citation{
			ChunkID:       c.ID,
			DocumentID:    c.DocumentID,
			SequenceIndex: c.SequenceIndex,
			Rank:          i + 1,
		}
	}
	return out
}
