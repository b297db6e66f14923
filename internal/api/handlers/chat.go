package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/studycompanion/internal/api"
	"github.com/cloo-solutions/studycompanion/internal/api/middleware"
	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/service"
)

type ChatService interface {
	Chat(ctx context.Context, input service.ChatInput) (*service.ChatReply, error)
	ListConversations(ctx context.Context, userID string) ([]*domain.Conversation, error)
	GetConversation(ctx context.Context, userID, id string) (*service.ConversationDetail, error)
	DeleteConversation(ctx context.Context, userID, id string) error
	DeleteAllConversations(ctx context.Context, userID string) (int64, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	DocumentID     string `json:"document_id,omitempty"`
	Subject        string `json:"subject,omitempty"`
}

type ChatResponse struct {
	Response          string              `json:"response"`
	Status            string              `json:"status"`
	ConversationID    string              `json:"conversation_id,omitempty"`
	ConversationTitle string              `json:"conversation_title,omitempty"`
	Subject           string              `json:"subject,omitempty"`
	Agent             string              `json:"agent,omitempty"`
	Label             string              `json:"label,omitempty"`
	Confidence        *float64            `json:"confidence,omitempty"`
	Citations         []*CitationResponse `json:"citations,omitempty"`
}

type ConversationResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Subject   string `json:"subject"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ChatMessageResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"created_at"`
}

type ConversationDetailResponse struct {
	*ConversationResponse
	Messages []*ChatMessageResponse `json:"messages"`
}

func conversationToResponse(c *domain.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:        c.ID,
		Title:     c.Title,
		Subject:   string(c.Subject),
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChatRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	reply, err := h.svc.Chat(r.Context(), service.ChatInput{
		UserID:         userID,
		Message:        req.Message,
		ConversationID: req.ConversationID,
		DocumentID:     req.DocumentID,
		Subject:        req.Subject,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &ChatResponse{
		Response:          reply.Response,
		Status:            string(reply.Status),
		ConversationID:    reply.ConversationID,
		ConversationTitle: reply.ConversationTitle,
		Subject:           string(reply.Subject),
		Agent:             reply.Agent,
		Label:             reply.Label,
		Confidence:        reply.Confidence,
	}
	if len(reply.Citations) > 0 {
		resp.Citations = citationsToResponse(reply.Citations)
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conversations, err := h.svc.ListConversations(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*ConversationResponse, len(conversations))
	for i, c := range conversations {
		items[i] = conversationToResponse(c)
	}
	api.Success(w, http.StatusOK, items)
}

func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	detail, err := h.svc.GetConversation(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	messages := make([]*ChatMessageResponse, len(detail.Messages))
	for i, m := range detail.Messages {
		messages[i] = &ChatMessageResponse{
			ID:        m.ID,
			Type:      string(m.Type),
			Content:   m.Content,
			Metadata:  m.Metadata,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		}
	}

	api.Success(w, http.StatusOK, ConversationDetailResponse{
		ConversationResponse: conversationToResponse(detail.Conversation),
		Messages:             messages,
	})
}

func (h *ChatHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.svc.DeleteConversation(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) DeleteAllConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	deleted, err := h.svc.DeleteAllConversations(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
