package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/studycompanion/internal/api/middleware"
	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/service"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, input service.UploadInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, userID, id string) (*domain.Document, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, userID, cursor string, limit int) (*service.DocumentPageResult, error) {
	args := m.Called(ctx, userID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentPageResult), args.Error(1)
}

func (m *MockDocumentService) ListChunks(ctx context.Context, userID, id string) ([]*domain.Chunk, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Chunk), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func newTestDocument() *domain.Document {
	now := time.Now().UTC()
	return &domain.Document{
		ID:        "doc-123",
		UserID:    "user-456",
		Title:     "Cell Biology",
		Kind:      domain.DocumentKindTXT,
		Filename:  "cells.txt",
		SizeBytes: 42,
		Status:    domain.DocumentStatusCompleted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func requestWithUserID(method, url string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	return req.WithContext(middleware.WithUserID(req.Context(), "user-456"))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestDocumentHandler_Upload_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, 1024)

	doc := newTestDocument()
	doc.Status = domain.DocumentStatusPending
	mockSvc.On("Upload", mock.Anything, mock.MatchedBy(func(input service.UploadInput) bool {
		return input.UserID == "user-456" &&
			input.Filename == "cells.txt" &&
			input.Title == "Cell Biology" &&
			input.Subject == "science" &&
			string(input.Content) == "Cells are the unit of life."
	})).Return(doc, nil)

	body, contentType := multipartBody(t, "cells.txt", "Cells are the unit of life.", map[string]string{
		"title":   "Cell Biology",
		"subject": "science",
	})
	req := requestWithUserID(http.MethodPost, "/documents", body.Bytes())
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "doc-123", data["id"])
	assert.Equal(t, "pending", data["status"])
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Upload_TooLarge(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, 16)

	body, contentType := multipartBody(t, "big.txt", strings.Repeat("a", 64), nil)
	req := requestWithUserID(http.MethodPost, "/documents", body.Bytes())
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	mockSvc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestDocumentHandler_Upload_MissingFile(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, 1024)

	body, contentType := multipartBody(t, "", "", map[string]string{"title": "No file"})
	req := requestWithUserID(http.MethodPost, "/documents", body.Bytes())
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file is required")
}

func TestDocumentHandler_Upload_NotMultipart(t *testing.T) {
	handler := NewDocumentHandler(new(MockDocumentService), 1024)

	req := requestWithUserID(http.MethodPost, "/documents", []byte(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid multipart form")
}

func TestDocumentHandler_Upload_UnsupportedKind(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, 1024)

	mockSvc.On("Upload", mock.Anything, mock.Anything).Return(nil, domain.ErrInvalidDocumentKind)

	body, contentType := multipartBody(t, "slides.pptx", "binary", nil)
	req := requestWithUserID(http.MethodPost, "/documents", body.Bytes())
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "allowed kinds")
}

func TestDocumentHandler_Upload_Unauthorized(t *testing.T) {
	handler := NewDocumentHandler(new(MockDocumentService), 1024)

	w := httptest.NewRecorder()
	handler.Upload(w, httptest.NewRequest(http.MethodPost, "/documents", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDocumentHandler_List(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, 1024)

	mockSvc.On("List", mock.Anything, "user-456", "abc", 100).Return(&service.DocumentPageResult{
		Items:      []*domain.Document{newTestDocument()},
		NextCursor: "next",
		HasMore:    true,
	}, nil)

	req := requestWithUserID(http.MethodGet, "/documents?cursor=abc&limit=500", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "next", data["cursor"])
	assert.Equal(t, true, data["has_more"])
	assert.Len(t, data["items"], 1)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_List_DefaultLimit(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("List", mock.Anything, "user-456", "", 20).Return(&service.DocumentPageResult{Items: []*domain.Document{}}, nil)

	w := httptest.NewRecorder()
	NewDocumentHandler(mockSvc, 1024).List(w, requestWithUserID(http.MethodGet, "/documents?limit=oops", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("Get", mock.Anything, "user-456", "doc-999").Return(nil, domain.ErrDocumentNotFound)

	req := withURLParam(requestWithUserID(http.MethodGet, "/documents/doc-999", nil), "id", "doc-999")
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc, 1024).Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "document not found")
}

func TestDocumentHandler_ListChunks(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("ListChunks", mock.Anything, "user-456", "doc-123").Return([]*domain.Chunk{
		{ID: "c-0", DocumentID: "doc-123", SequenceIndex: 0, Content: "Cells divide.", Embedding: []float32{0.1}, Metadata: domain.ChunkMetadata{ChunkSize: 13}},
		{ID: "c-1", DocumentID: "doc-123", SequenceIndex: 1, Content: "By mitosis.", Metadata: domain.ChunkMetadata{ChunkSize: 11}},
	}, nil)

	req := withURLParam(requestWithUserID(http.MethodGet, "/documents/doc-123/chunks", nil), "id", "doc-123")
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc, 1024).ListChunks(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []ChunkResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.True(t, resp.Data[0].HasEmbedding)
	assert.False(t, resp.Data[1].HasEmbedding)
	assert.Equal(t, 11, resp.Data[1].ChunkSize)
}

func TestDocumentHandler_Delete(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("Delete", mock.Anything, "user-456", "doc-123").Return(nil)

	req := withURLParam(requestWithUserID(http.MethodDelete, "/documents/doc-123", nil), "id", "doc-123")
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc, 1024).Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockSvc.AssertExpectations(t)
}
