package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// statusRecorder captures what the handler wrote for the logging and tracing middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// routeInfo describes the matched chi route. Only complete after the handler has run.
type routeInfo struct {
	Pattern        string
	DocumentID     string
	ConversationID string
	Subject        string
}

func matchedRoute(r *http.Request) routeInfo {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return routeInfo{Pattern: r.URL.Path}
	}

	info := routeInfo{Pattern: rctx.RoutePattern()}
	if info.Pattern == "" {
		info.Pattern = r.URL.Path
	}

	id := rctx.URLParam("id")
	switch {
	case id == "":
	case strings.HasPrefix(info.Pattern, "/documents/"):
		info.DocumentID = id
	case strings.HasPrefix(info.Pattern, "/conversations/"):
		info.ConversationID = id
	}
	info.Subject = rctx.URLParam("subject")
	return info
}
