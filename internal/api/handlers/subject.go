package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/studycompanion/internal/api"
	"github.com/cloo-solutions/studycompanion/internal/api/middleware"
	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/service"
)

type AgentService interface {
	Ask(ctx context.Context, subject, question string) (*service.AgentReply, error)
	Recommendations(ctx context.Context, subjects []string, performance map[string]any) (map[string]any, error)
}

type SubjectHandler struct {
	svc AgentService
}

func NewSubjectHandler(svc AgentService) *SubjectHandler {
	return &SubjectHandler{svc: svc}
}

type SubjectResponse struct {
	Subject string   `json:"subject"`
	Agent   string   `json:"agent"`
	Label   string   `json:"label"`
	Topics  []string `json:"topics"`
}

type SubjectAskRequest struct {
	Question string `json:"question"`
}

type AgentReplyResponse struct {
	Subject  string `json:"subject"`
	Agent    string `json:"agent,omitempty"`
	Label    string `json:"label,omitempty"`
	Response string `json:"response"`
	Outcome  string `json:"outcome"`
}

type RecommendationsRequest struct {
	Subjects    []string       `json:"subjects"`
	Performance map[string]any `json:"performance,omitempty"`
}

func agentReplyToResponse(reply *service.AgentReply) *AgentReplyResponse {
	return &AgentReplyResponse{
		Subject:  string(reply.Subject),
		Agent:    reply.Agent,
		Label:    reply.Label,
		Response: reply.Response,
		Outcome:  string(reply.Outcome),
	}
}

// List returns the subject agents in display order.
func (h *SubjectHandler) List(w http.ResponseWriter, r *http.Request) {
	subjects := domain.Subjects()
	items := make([]*SubjectResponse, 0, len(subjects))
	for _, s := range subjects {
		profile, _ := s.Profile()
		items = append(items, &SubjectResponse{
			Subject: string(s),
			Agent:   profile.AgentName,
			Label:   profile.Label(),
			Topics:  profile.Topics,
		})
	}
	api.Success(w, http.StatusOK, items)
}

func (h *SubjectHandler) Ask(w http.ResponseWriter, r *http.Request) {
	if middleware.GetUserID(r.Context()) == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SubjectAskRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	reply, err := h.svc.Ask(r.Context(), chi.URLParam(r, "subject"), req.Question)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, agentReplyToResponse(reply))
}

func (h *SubjectHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	if middleware.GetUserID(r.Context()) == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RecommendationsRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	plan, err := h.svc.Recommendations(r.Context(), req.Subjects, req.Performance)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, plan)
}
