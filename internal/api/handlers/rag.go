package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cloo-solutions/studycompanion/internal/api"
	"github.com/cloo-solutions/studycompanion/internal/api/middleware"
	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/service"
)

type RAGService interface {
	Answer(ctx context.Context, input service.AskInput) (*service.Answer, error)
	ListQueries(ctx context.Context, userID, cursor string, limit int) (*service.QueryRecordPageResult, error)
}

type RAGHandler struct {
	svc RAGService
}

func NewRAGHandler(svc RAGService) *RAGHandler {
	return &RAGHandler{svc: svc}
}

type AskRequest struct {
	Question   string `json:"question"`
	DocumentID string `json:"document_id,omitempty"`
}

type CitationResponse struct {
	ChunkID       string `json:"chunk_id"`
	DocumentID    string `json:"document_id"`
	SequenceIndex int    `json:"sequence_index"`
	Rank          int    `json:"rank"`
	Excerpt       string `json:"excerpt,omitempty"`
}

type AskResponse struct {
	Answer     string              `json:"answer"`
	Confidence float64             `json:"confidence"`
	Outcome    string              `json:"outcome"`
	Label      string              `json:"label,omitempty"`
	QueryID    string              `json:"query_id,omitempty"`
	Citations  []*CitationResponse `json:"citations"`
}

type QueryRecordResponse struct {
	ID         string              `json:"id"`
	DocumentID string              `json:"document_id,omitempty"`
	Question   string              `json:"question"`
	Answer     string              `json:"answer"`
	Confidence float64             `json:"confidence"`
	Outcome    string              `json:"outcome"`
	Citations  []*CitationResponse `json:"citations"`
	CreatedAt  string              `json:"created_at"`
}

type QueryRecordListResponse struct {
	Items   []*QueryRecordResponse `json:"items"`
	Cursor  string                 `json:"cursor,omitempty"`
	HasMore bool                   `json:"has_more"`
}

func citationsToResponse(citations []domain.Citation) []*CitationResponse {
	out := make([]*CitationResponse, len(citations))
	for i, c := range citations {
		out[i] = &CitationResponse{
			ChunkID:       c.ChunkID,
			DocumentID:    c.DocumentID,
			SequenceIndex: c.SequenceIndex,
			Rank:          c.Rank,
		}
	}
	return out
}

func answerToResponse(a *service.Answer) *AskResponse {
	citations := citationsToResponse(a.Citations)
	excerpts := make(map[string]string, len(a.Chunks))
	for _, c := range a.Chunks {
		excerpts[c.ID] = c.Content
	}
	for _, c := range citations {
		c.Excerpt = excerpts[c.ChunkID]
	}
	return &AskResponse{
		Answer:     a.Text,
		Confidence: a.Confidence,
		Outcome:    string(a.Outcome),
		Label:      a.Label,
		QueryID:    a.QueryRecordID,
		Citations:  citations,
	}
}

// Ask answers a question from the caller's processed documents.
func (h *RAGHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AskRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	answer, err := h.svc.Answer(r.Context(), service.AskInput{
		UserID:     userID,
		Question:   req.Question,
		DocumentID: req.DocumentID,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, answerToResponse(answer))
}

func (h *RAGHandler) ListQueries(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, err := h.svc.ListQueries(r.Context(), userID, r.URL.Query().Get("cursor"), parseLimit(r))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*QueryRecordResponse, len(page.Items))
	for i, q := range page.Items {
		items[i] = &QueryRecordResponse{
			ID:         q.ID,
			DocumentID: q.DocumentID,
			Question:   q.Question,
			Answer:     q.Answer,
			Confidence: q.Confidence,
			Outcome:    string(q.Outcome),
			Citations:  citationsToResponse(q.Citations),
			CreatedAt:  q.CreatedAt.Format(time.RFC3339),
		}
	}

	api.Success(w, http.StatusOK, QueryRecordListResponse{
		Items:   items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}
