package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cloo-solutions/studycompanion/internal/api"
	"github.com/cloo-solutions/studycompanion/internal/api/handlers"
	"github.com/cloo-solutions/studycompanion/internal/api/middleware"
)

const (
	// defaultMaxBodyBytes caps JSON request bodies; uploads are bounded by the document handler.
	defaultMaxBodyBytes int64 = 1 << 20
	// slowRequestThreshold marks requests as slow in the access log.
	slowRequestThreshold = 15 * time.Second
)

type RouterConfig struct {
	AuthValidator   middleware.AuthValidator
	DocumentHandler *handlers.DocumentHandler
	RAGHandler      *handlers.RAGHandler
	SubjectHandler  *handlers.SubjectHandler
	ChatHandler     *handlers.ChatHandler
	// AuthHandler is mounted only when signup is enabled.
	AuthHandler *handlers.AuthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(middleware.AccessLogOptions{
		SkipPaths:     []string{"/health"},
		SlowThreshold: slowRequestThreshold,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/subjects", cfg.SubjectHandler.List)

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Upload)

			r.Group(func(r chi.Router) {
				r.Use(middleware.MaxBodyBytes(defaultMaxBodyBytes))
				r.Get("/", cfg.DocumentHandler.List)
				r.Get("/{id}", cfg.DocumentHandler.Get)
				r.Get("/{id}/chunks", cfg.DocumentHandler.ListChunks)
				r.Delete("/{id}", cfg.DocumentHandler.Delete)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodyBytes(defaultMaxBodyBytes))

			r.Post("/ask", cfg.RAGHandler.Ask)
			r.Get("/queries", cfg.RAGHandler.ListQueries)

			r.Post("/subjects/{subject}/ask", cfg.SubjectHandler.Ask)
			r.Post("/recommendations", cfg.SubjectHandler.Recommendations)

			r.Post("/chat", cfg.ChatHandler.Chat)
			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", cfg.ChatHandler.ListConversations)
				r.Delete("/", cfg.ChatHandler.DeleteAllConversations)
				r.Get("/{id}", cfg.ChatHandler.GetConversation)
				r.Delete("/{id}", cfg.ChatHandler.DeleteConversation)
			})
		})
	})

	if cfg.AuthHandler != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodyBytes(defaultMaxBodyBytes))
			r.Post("/users", cfg.AuthHandler.CreateUser)
			r.Post("/apikeys", cfg.AuthHandler.CreateAPIKey)
		})
	}

	return r
}
