package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/service"
)

const defaultBatchSize = 10

// PendingDocumentLister finds documents waiting for processing
type PendingDocumentLister interface {
	ListPending(ctx context.Context, limit int) ([]*domain.Document, error)
}

// ProcessingWorker hands pending documents to the Document Processor
type ProcessingWorker struct {
	docs      PendingDocumentLister
	processor service.Processor
	batchSize int
}

// NewProcessingWorker creates a new ProcessingWorker instance
func NewProcessingWorker(docs PendingDocumentLister, processor service.Processor, batchSize int) *ProcessingWorker {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &ProcessingWorker{
		docs:      docs,
		processor: processor,
		batchSize: batchSize,
	}
}

// ProcessBatch implements the BatchProcessor interface. It returns the number of
// documents this worker claimed. Documents claimed by another worker or deleted
// meanwhile are skipped, and a document that fails processing is left failed
// without aborting the batch. An infrastructure error stops the batch.
func (w *ProcessingWorker) ProcessBatch(ctx context.Context) (int, error) {
	docs, err := w.docs.ListPending(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending documents: %w", err)
	}

	if len(docs) == 0 {
		return 0, nil
	}

	log.Printf("Processing %d pending documents", len(docs))

	claimed := 0
	for _, doc := range docs {
		if ctx.Err() != nil {
			return claimed, nil
		}

		result, err := w.processor.Process(ctx, doc.ID)
		switch {
		case errors.Is(err, domain.ErrInvalidStatusTransition), errors.Is(err, domain.ErrDocumentNotFound):
			continue
		case err != nil && domain.CodeOf(err) == "":
			return claimed, fmt.Errorf("failed to process document %s: %w", doc.ID, err)
		case err != nil:
			claimed++
			log.Printf("Document %s failed processing: %v", doc.ID, err)
		default:
			claimed++
			log.Printf("Document %s processed: %d chunks, %d embedded", doc.ID, result.ChunkCount, result.EmbeddedCount)
		}
	}

	return claimed, nil
}
