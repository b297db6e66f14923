package middleware

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"
)

type accessLogEntry struct {
	Timestamp      string `json:"ts"`
	Method         string `json:"method"`
	Route          string `json:"route"`
	Path           string `json:"path"`
	Status         int    `json:"status"`
	Bytes          int    `json:"bytes"`
	DurationMS     int64  `json:"duration_ms"`
	Slow           bool   `json:"slow,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	DocumentID     string `json:"document_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Subject        string `json:"subject,omitempty"`
	RemoteAddr     string `json:"remote_addr,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
}

type AccessLogOptions struct {
	// SkipPaths are not logged, e.g. health probes.
	SkipPaths []string
	// SlowThreshold flags requests that took longer; zero disables the flag.
	SlowThreshold time.Duration
}

// AccessLog writes one JSON line per request. Routes are logged by their chi
// pattern so document and conversation IDs land in their own fields.
func AccessLog(opts AccessLogOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(opts.SkipPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			route := matchedRoute(r)
			entry := accessLogEntry{
				Timestamp:      start.UTC().Format(time.RFC3339Nano),
				Method:         r.Method,
				Route:          route.Pattern,
				Path:           r.URL.Path,
				Status:         rec.Status(),
				Bytes:          rec.bytes,
				DurationMS:     elapsed.Milliseconds(),
				Slow:           opts.SlowThreshold > 0 && elapsed > opts.SlowThreshold,
				RequestID:      GetRequestID(r.Context()),
				UserID:         authenticatedUserID(r),
				DocumentID:     route.DocumentID,
				ConversationID: route.ConversationID,
				Subject:        route.Subject,
				RemoteAddr:     clientIP(r),
				UserAgent:      r.UserAgent(),
			}

			payload, err := json.Marshal(entry)
			if err != nil {
				log.Printf("access_log: marshal error: %v", err)
				return
			}
			log.Println(string(payload))
		})
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
