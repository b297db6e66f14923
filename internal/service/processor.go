package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/retrieval"
	"github.com/cloo-solutions/studycompanion/internal/telemetry"
)

const defaultEmbedWorkers = 4

// Embedder converts text into a fixed-length vector
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ProcessorConfig tunes segmentation and the embedding pool
type ProcessorConfig struct {
	Chunk        retrieval.ChunkConfig
	EmbedWorkers int
}

// ProcessResult summarizes one successful processing run
type ProcessResult struct {
	DocumentID    string
	ChunkCount    int
	EmbeddedCount int
}

// DocumentProcessor drives a document through pending -> processing -> completed|failed
type DocumentProcessor struct {
	docs     DocumentRepositoryInterface
	store    ContentStore
	embedder Embedder
	txRunner TxRunner
	cfg      ProcessorConfig
	uuidGen  UUIDGenerator
}

func NewDocumentProcessor(
	docs DocumentRepositoryInterface,
	store ContentStore,
	embedder Embedder,
	txRunner TxRunner,
	cfg ProcessorConfig,
) *DocumentProcessor {
	return NewDocumentProcessorWithUUIDGen(docs, store, embedder, txRunner, cfg, &DefaultUUIDGenerator{})
}

func NewDocumentProcessorWithUUIDGen(
	docs DocumentRepositoryInterface,
	store ContentStore,
	embedder Embedder,
	txRunner TxRunner,
	cfg ProcessorConfig,
	uuidGen UUIDGenerator,
) *DocumentProcessor {
	if cfg.Chunk.Size <= 0 {
		cfg.Chunk = retrieval.DefaultChunkConfig()
	}
	if cfg.EmbedWorkers <= 0 {
		cfg.EmbedWorkers = defaultEmbedWorkers
	}
	return &DocumentProcessor{
		docs:     docs,
		store:    store,
		embedder: embedder,
		txRunner: txRunner,
		cfg:      cfg,
		uuidGen:  uuidGen,
	}
}

// Process runs one document to a terminal state. Claiming the document is a
// compare-and-set on pending, so a concurrent run for the same document gets
// domain.ErrInvalidStatusTransition and leaves the document untouched.
// Any failure after the claim, including a panic, leaves the document failed
// with no chunks from this run.
func (p *DocumentProcessor) Process(ctx context.Context, documentID string) (result *ProcessResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentProcessor.Process", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "process",
	})
	defer span.End()

	if err := p.docs.TransitionStatus(ctx, documentID, domain.DocumentStatusPending, domain.DocumentStatusProcessing, ""); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "document processing failed", fmt.Errorf("panic: %v", r))
			p.markFailed(ctx, documentID, err)
			span.SetError(err)
		}
	}()

	result, err = p.run(ctx, documentID)
	if err != nil {
		p.markFailed(ctx, documentID, err)
		span.SetOutcome(string(domain.DocumentStatusFailed))
		span.SetError(err)
		return nil, err
	}
	span.SetOutcome(string(domain.DocumentStatusCompleted))
	return result, nil
}

func (p *DocumentProcessor) run(ctx context.Context, documentID string) (*ProcessResult, error) {
	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	data, err := p.store.Get(ctx, doc.ContentKey)
	if err != nil {
		return nil, domain.Wrap(domain.ErrExtractionFailure, err)
	}

	text, err := ExtractText(doc.Kind, data)
	if err != nil {
		return nil, err
	}

	segments := retrieval.Chunk(text, p.cfg.Chunk)
	if len(segments) == 0 {
		return nil, domain.ErrExtractionFailure
	}

	chunks := p.embedChunks(ctx, doc, segments)

	embedded := 0
	for _, c := range chunks {
		if c.HasEmbedding() {
			embedded++
		}
	}

	err = p.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().CreateBatch(ctx, chunks); err != nil {
			return err
		}
		return repos.Documents().TransitionStatus(ctx, doc.ID, domain.DocumentStatusProcessing, domain.DocumentStatusCompleted, "")
	})
	if err != nil {
		return nil, err
	}

	log.Printf("processor: document completed document_id=%s user_id=%s chunks=%d embedded=%d",
		doc.ID, doc.UserID, len(chunks), embedded)

	return &ProcessResult{
		DocumentID:    doc.ID,
		ChunkCount:    len(chunks),
		EmbeddedCount: embedded,
	}, nil
}

// embedChunks embeds segments on a bounded pool. Each worker writes only its own
// slot, so sequence indexes are fixed before any embedding starts. A failed
// embedding leaves the chunk without a vector.
func (p *DocumentProcessor) embedChunks(ctx context.Context, doc *domain.Document, segments []string) []*domain.Chunk {
	now := time.Now().UTC()
	chunks := make([]*domain.Chunk, len(segments))
	for i, segment := range segments {
		chunks[i] = &domain.Chunk{
			ID:            p.uuidGen.NewString(),
			DocumentID:    doc.ID,
			SequenceIndex: i,
			Content:       segment,
			Metadata:      domain.ChunkMetadata{ChunkSize: utf8.RuneCountInString(segment)},
			CreatedAt:     now,
		}
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.EmbedWorkers)
	for _, chunk := range chunks {
		g.Go(func() error {
			vector, err := p.embedder.GenerateEmbedding(ctx, chunk.Content)
			if err != nil {
				log.Printf("processor: chunk embedding failed document_id=%s sequence_index=%d: %v",
					doc.ID, chunk.SequenceIndex, err)
				return nil
			}
			chunk.Embedding = vector
			return nil
		})
	}
	_ = g.Wait()

	return chunks
}

func (p *DocumentProcessor) markFailed(ctx context.Context, documentID string, cause error) {
	reason := failureReason(cause)
	log.Printf("processor: document failed document_id=%s reason=%q: %v", documentID, reason, cause)
	if code := domain.CodeOf(cause); code == "" || code == domain.ErrCodeInternalError {
		telemetry.CaptureError(ctx, cause)
	}

	err := p.docs.TransitionStatus(context.WithoutCancel(ctx), documentID,
		domain.DocumentStatusProcessing, domain.DocumentStatusFailed, reason)
	if err != nil {
		log.Printf("processor: failed to mark document failed document_id=%s: %v", documentID, err)
	}
}

// failureReason is the user-safe text stored on a failed document.
func failureReason(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "document processing failed"
}
