package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/studycompanion/internal/api"
	"github.com/cloo-solutions/studycompanion/internal/api/middleware"
	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/pagination"
	"github.com/cloo-solutions/studycompanion/internal/service"
)

const (
	// multipartOverhead covers form fields and part headers on top of the file itself.
	multipartOverhead  int64 = 1 << 20
	multipartMaxMemory int64 = 8 << 20
)

type DocumentService interface {
	Upload(ctx context.Context, input service.UploadInput) (*domain.Document, error)
	Get(ctx context.Context, userID, id string) (*domain.Document, error)
	List(ctx context.Context, userID, cursor string, limit int) (*service.DocumentPageResult, error)
	ListChunks(ctx context.Context, userID, id string) ([]*domain.Chunk, error)
	Delete(ctx context.Context, userID, id string) error
}

type DocumentHandler struct {
	svc            DocumentService
	maxUploadBytes int64
}

func NewDocumentHandler(svc DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

type DocumentResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Kind        string `json:"kind"`
	Filename    string `json:"filename"`
	SizeBytes   int64  `json:"size_bytes"`
	Status      string `json:"status"`
	IsProcessed bool   `json:"is_processed"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

type ChunkResponse struct {
	ID            string `json:"id"`
	SequenceIndex int    `json:"sequence_index"`
	Content       string `json:"content"`
	PageNumber    *int   `json:"page_number,omitempty"`
	ChunkSize     int    `json:"chunk_size"`
	HasEmbedding  bool   `json:"has_embedding"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Subject:     d.Subject,
		Kind:        string(d.Kind),
		Filename:    d.Filename,
		SizeBytes:   d.SizeBytes,
		Status:      string(d.Status),
		IsProcessed: d.IsProcessed,
		Error:       d.Error,
		CreatedAt:   d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   d.UpdatedAt.Format(time.RFC3339),
	}
}

// Upload accepts a multipart form with a "file" part and optional title, description and subject fields.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		api.Error(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}

	doc, err := h.svc.Upload(r.Context(), service.UploadInput{
		UserID:      userID,
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Subject:     r.FormValue("subject"),
		Filename:    header.Filename,
		Content:     content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, err := h.svc.List(r.Context(), userID, r.URL.Query().Get("cursor"), parseLimit(r))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, len(page.Items))
	for i, d := range page.Items {
		items[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doc, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) ListChunks(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	chunks, err := h.svc.ListChunks(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*ChunkResponse, len(chunks))
	for i, c := range chunks {
		items[i] = &ChunkResponse{
			ID:            c.ID,
			SequenceIndex: c.SequenceIndex,
			Content:       c.Content,
			PageNumber:    c.PageNumber,
			ChunkSize:     c.Metadata.ChunkSize,
			HasEmbedding:  c.HasEmbedding(),
		}
	}

	api.Success(w, http.StatusOK, items)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseLimit reads the limit query parameter, falling back to the default page size.
func parseLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return pagination.DefaultLimit
	}
	return pagination.ClampLimit(limit)
}
