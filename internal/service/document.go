package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/pagination"
	"github.com/cloo-solutions/studycompanion/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	ListPending(ctx context.Context, limit int) ([]*domain.Document, error)
	// TransitionStatus applies from -> to only if the row is still in from.
	// It returns domain.ErrInvalidStatusTransition when the row has moved on.
	TransitionStatus(ctx context.Context, id string, from, to domain.DocumentStatus, reason string) error
	Delete(ctx context.Context, id string) error
}

// ChunkRepositoryInterface defines the repository interface for chunk persistence
type ChunkRepositoryInterface interface {
	CreateBatch(ctx context.Context, chunks []*domain.Chunk) error
	ListByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error)
	// ListSearchable returns embedded chunks of the user's completed documents,
	// optionally restricted to one document.
	ListSearchable(ctx context.Context, userID, documentID string) ([]*domain.Chunk, error)
}

// ContentStore keeps the raw bytes of uploaded documents
type ContentStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Processor turns one pending document into stored, embedded chunks
type Processor interface {
	Process(ctx context.Context, documentID string) (*ProcessResult, error)
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// UploadInput is one document submission
type UploadInput struct {
	UserID      string
	Title       string
	Description string
	Subject     string
	Filename    string
	Content     []byte
}

// DocumentService handles uploads and document management
type DocumentService struct {
	docs      DocumentRepositoryInterface
	chunks    ChunkRepositoryInterface
	store     ContentStore
	processor Processor
	inline    bool
	uuidGen   UUIDGenerator
}

// NewDocumentService creates a DocumentService. With inline set, uploads are processed
// before Upload returns; otherwise they stay pending for the background worker.
func NewDocumentService(
	docs DocumentRepositoryInterface,
	chunks ChunkRepositoryInterface,
	store ContentStore,
	processor Processor,
	inline bool,
) *DocumentService {
	return NewDocumentServiceWithUUIDGen(docs, chunks, store, processor, inline, &DefaultUUIDGenerator{})
}

func NewDocumentServiceWithUUIDGen(
	docs DocumentRepositoryInterface,
	chunks ChunkRepositoryInterface,
	store ContentStore,
	processor Processor,
	inline bool,
	uuidGen UUIDGenerator,
) *DocumentService {
	return &DocumentService{
		docs:      docs,
		chunks:    chunks,
		store:     store,
		processor: processor,
		inline:    inline,
		uuidGen:   uuidGen,
	}
}

// Upload stores the raw content, creates the pending document and, in inline mode, processes it.
// A processing failure does not fail the upload; the returned document carries the failed state.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Upload", telemetry.SpanAttributes{
		UserID:    input.UserID,
		Operation: "upload",
	})
	defer span.End()

	if input.UserID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "user ID is required")
	}
	filename := path.Base(strings.ReplaceAll(strings.TrimSpace(input.Filename), "\\", "/"))
	if filename == "" || filename == "." || filename == "/" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}
	kind, err := domain.KindFromFilename(filename)
	if err != nil {
		return nil, err
	}
	if len(input.Content) == 0 {
		return nil, domain.ErrEmptyDocument
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = filename
	}

	now := time.Now().UTC()
	id := s.uuidGen.NewString()
	doc := &domain.Document{
		ID:          id,
		UserID:      input.UserID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Subject:     strings.TrimSpace(input.Subject),
		Kind:        kind,
		Filename:    filename,
		SizeBytes:   int64(len(input.Content)),
		ContentKey:  fmt.Sprintf("%s/%s/%s", input.UserID, id, filename),
		Status:      domain.DocumentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	if err := s.store.Put(ctx, doc.ContentKey, input.Content, http.DetectContentType(input.Content)); err != nil {
		span.SetError(err)
		return nil, domain.Wrap(domain.ErrStorageOperationFail, err)
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), doc.ContentKey); delErr != nil {
			log.Printf("documents: failed to remove orphaned content document_id=%s: %v", doc.ID, delErr)
		}
		span.SetError(err)
		return nil, err
	}

	telemetry.AddBreadcrumb(ctx, "documents", "document uploaded")

	if !s.inline || s.processor == nil {
		return doc, nil
	}

	if _, err := s.processor.Process(ctx, doc.ID); err != nil {
		log.Printf("documents: inline processing failed document_id=%s user_id=%s: %v", doc.ID, doc.UserID, err)
	}

	refreshed, err := s.docs.GetByID(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}

// Get returns the document when it belongs to the user.
func (s *DocumentService) Get(ctx context.Context, userID, id string) (*domain.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, userID, cursor string, limit int) (*DocumentPageResult, error) {
	c, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	return s.docs.ListByUserWithCursor(ctx, userID, c, limit)
}

// ListChunks returns the document's chunks in sequence order.
func (s *DocumentService) ListChunks(ctx context.Context, userID, id string) ([]*domain.Chunk, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.chunks.ListByDocument(ctx, id)
}

// Delete removes the document with its chunks, then its stored content.
func (s *DocumentService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		UserID:     userID,
		DocumentID: id,
	})
	defer span.End()

	doc, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.docs.Delete(ctx, doc.ID); err != nil {
		span.SetError(err)
		return err
	}

	if err := s.store.Delete(ctx, doc.ContentKey); err != nil && !errors.Is(err, domain.ErrContentNotFound) {
		log.Printf("documents: failed to delete content document_id=%s: %v", doc.ID, err)
	}
	return nil
}
