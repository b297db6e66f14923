package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/openai"
)

type ragFixture struct {
	docs      *MockDocumentRepository
	chunks    *MockChunkRepository
	queries   *MockQueryRecordRepository
	embedder  *MockEmbedder
	generator *MockGenerator
	svc       *RAGService
}

func newRAGFixture() *ragFixture {
	f := &ragFixture{
		docs:      new(MockDocumentRepository),
		chunks:    new(MockChunkRepository),
		queries:   new(MockQueryRecordRepository),
		embedder:  new(MockEmbedder),
		generator: new(MockGenerator),
	}
	f.svc = NewRAGServiceWithUUIDGen(f.docs, f.chunks, f.queries, f.embedder, f.generator, DefaultRAGConfig(),
		NewMockUUIDGenerator("rec-1"))
	return f
}

func embeddedChunks(n int) []*domain.Chunk {
	out := make([]*domain.Chunk, n)
	for i := range out {
		out[i] = &domain.Chunk{
			ID:            fmt.Sprintf("chunk-%d", i),
			DocumentID:    "doc-1",
			SequenceIndex: i,
			Content:       fmt.Sprintf("content %d", i),
			Embedding:     []float32{1, float32(i) / 10},
		}
	}
	return out
}

func TestAnswer_NoDocuments(t *testing.T) {
	f := newRAGFixture()
	f.embedder.On("GenerateEmbedding", mock.Anything, "What is osmosis?").Return([]float32{1, 0}, nil)
	f.chunks.On("ListSearchable", mock.Anything, "user-1", "").Return([]*domain.Chunk{}, nil)
	f.queries.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.QueryRecord) bool {
		return r.Outcome == domain.AnswerOutcomeNoResults && r.Confidence == 0
	})).Return(nil)

	answer, err := f.svc.Answer(context.Background(), AskInput{UserID: "user-1", Question: "  What is osmosis? "})
	require.NoError(t, err)
	assert.Equal(t, MessageNoResults, answer.Text)
	assert.Equal(t, domain.AnswerOutcomeNoResults, answer.Outcome)
	assert.Empty(t, answer.Chunks)
	assert.Equal(t, "rec-1", answer.QueryRecordID)
	f.generator.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestAnswer_ConfidenceScalesWithChunks(t *testing.T) {
	tests := []struct {
		name      string
		available int
		wantCount int
		want      float64
	}{
		{"three chunks", 3, 3, 0.6},
		{"ten chunks capped", 10, 5, 0.9},
		{"one chunk", 1, 1, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRAGFixture()
			f.embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
			f.chunks.On("ListSearchable", mock.Anything, "user-1", "").Return(embeddedChunks(tt.available), nil)
			f.generator.On("Complete", mock.Anything, mock.MatchedBy(func(req openai.ChatRequest) bool {
				return len(req.Messages) == 1 && req.Messages[0].Role == openai.RoleUser &&
					req.MaxTokens == 500 && req.Temperature == 0.3
			})).Return("Osmosis is diffusion of water.", nil)
			f.queries.On("Create", mock.Anything, mock.Anything).Return(nil)

			answer, err := f.svc.Answer(context.Background(), AskInput{UserID: "user-1", Question: "q"})
			require.NoError(t, err)
			assert.Equal(t, domain.AnswerOutcomeAnswered, answer.Outcome)
			assert.Equal(t, "Osmosis is diffusion of water.", answer.Text)
			assert.Len(t, answer.Chunks, tt.wantCount)
			assert.InDelta(t, tt.want, answer.Confidence, 1e-9)
			for i, c := range answer.Citations {
				assert.Equal(t, i+1, c.Rank)
			}
		})
	}
}

func TestAnswer_GenerationFailureKeepsCitations(t *testing.T) {
	f := newRAGFixture()
	f.embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
	f.chunks.On("ListSearchable", mock.Anything, "user-1", "").Return(embeddedChunks(2), nil)
	f.generator.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("503 from upstream"))

	var stored *domain.QueryRecord
	f.queries.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.QueryRecord) }).
		Return(nil)

	answer, err := f.svc.Answer(context.Background(), AskInput{UserID: "user-1", Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, MessageGenerationError, answer.Text)
	assert.Equal(t, domain.AnswerOutcomeGenerationFailed, answer.Outcome)
	assert.Len(t, answer.Citations, 2)
	assert.Zero(t, answer.Confidence)

	require.NotNil(t, stored)
	assert.Equal(t, domain.AnswerOutcomeGenerationFailed, stored.Outcome)
	assert.Len(t, stored.Citations, 2)
}

func TestAnswer_GenerationNotConfigured(t *testing.T) {
	f := newRAGFixture()
	f.embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
	f.chunks.On("ListSearchable", mock.Anything, "user-1", "").Return(embeddedChunks(1), nil)
	f.generator.On("Complete", mock.Anything, mock.Anything).Return("", openai.ErrNoAPIKey)
	f.queries.On("Create", mock.Anything, mock.Anything).Return(nil)

	answer, err := f.svc.Answer(context.Background(), AskInput{UserID: "user-1", Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, MessageGenerationOff, answer.Text)
}

func TestAnswer_EmbeddingFailureIsNotRecorded(t *testing.T) {
	f := newRAGFixture()
	f.embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, openai.ErrTimeout)

	answer, err := f.svc.Answer(context.Background(), AskInput{UserID: "user-1", Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, MessageSearchUnavailable, answer.Text)
	assert.Equal(t, domain.AnswerOutcomeSearchFailed, answer.Outcome)
	assert.Empty(t, answer.QueryRecordID)

	f.chunks.AssertNotCalled(t, "ListSearchable", mock.Anything, mock.Anything, mock.Anything)
	f.queries.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAnswer_ScopedToDocument(t *testing.T) {
	f := newRAGFixture()
	f.docs.On("GetByID", mock.Anything, "doc-1").
		Return(&domain.Document{ID: "doc-1", UserID: "user-1", Title: "Biology Notes"}, nil)
	f.embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
	f.chunks.On("ListSearchable", mock.Anything, "user-1", "doc-1").Return(embeddedChunks(1), nil)
	f.generator.On("Complete", mock.Anything, mock.Anything).Return("answer", nil)
	f.queries.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.QueryRecord) bool {
		return r.DocumentID == "doc-1"
	})).Return(nil)

	answer, err := f.svc.Answer(context.Background(), AskInput{UserID: "user-1", Question: "q", DocumentID: "doc-1"})
	require.NoError(t, err)
	assert.Equal(t, "RAG Response - Biology Notes", answer.Label)
}

func TestAnswer_ForeignDocument(t *testing.T) {
	f := newRAGFixture()
	f.docs.On("GetByID", mock.Anything, "doc-1").
		Return(&domain.Document{ID: "doc-1", UserID: "someone-else"}, nil)

	_, err := f.svc.Answer(context.Background(), AskInput{UserID: "user-1", Question: "q", DocumentID: "doc-1"})
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	f.embedder.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	f := newRAGFixture()
	_, err := f.svc.Answer(context.Background(), AskInput{UserID: "user-1", Question: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
}

func TestAnswer_RecordFailureStillAnswers(t *testing.T) {
	f := newRAGFixture()
	f.embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
	f.chunks.On("ListSearchable", mock.Anything, "user-1", "").Return(embeddedChunks(1), nil)
	f.generator.On("Complete", mock.Anything, mock.Anything).Return("answer", nil)
	f.queries.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	answer, err := f.svc.Answer(context.Background(), AskInput{UserID: "user-1", Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "answer", answer.Text)
	assert.Empty(t, answer.QueryRecordID)
}

func TestAnswer_ChunkLookupError(t *testing.T) {
	f := newRAGFixture()
	f.embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
	f.chunks.On("ListSearchable", mock.Anything, "user-1", "").Return(nil, errors.New("db down"))

	_, err := f.svc.Answer(context.Background(), AskInput{UserID: "user-1", Question: "q"})
	require.Error(t, err)
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 0.0, Confidence(0, 5))
	assert.InDelta(t, 0.4, Confidence(2, 5), 1e-9)
	assert.Equal(t, 0.9, Confidence(5, 5))
	assert.Equal(t, 0.9, Confidence(7, 5))
	assert.Equal(t, 0.0, Confidence(3, 0))
}

func TestBuildRAGPrompt(t *testing.T) {
	prompt := BuildRAGPrompt([]*domain.Chunk{{Content: "alpha"}, {Content: "beta"}}, "why?")
	assert.Contains(t, prompt, "alpha\n\nbeta")
	assert.Contains(t, prompt, "Student's question: why?")
	assert.Contains(t, prompt, "Response:")
}

func TestListQueries_InvalidCursor(t *testing.T) {
	f := newRAGFixture()
	_, err := f.svc.ListQueries(context.Background(), "user-1", "%%%", 10)
	assert.Equal(t, domain.ErrCodeValidation, domain.CodeOf(err))
}
