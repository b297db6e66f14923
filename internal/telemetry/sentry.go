// Package telemetry wraps Sentry tracing and error capture for the service layer.
package telemetry

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	serverName   = "studyd"
	flushTimeout = 5 * time.Second
)

// unsampledTransactions are never traced: probes and static listings.
var unsampledTransactions = map[string]bool{
	"GET /health":   true,
	"GET /subjects": true,
}

type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init configures the global Sentry client and returns a flush function.
// An empty DSN, or a client that fails to initialize, leaves tracing off and
// is not an error: the server runs the same either way.
func Init(cfg Config) (func(), error) {
	noop := func() {}
	if cfg.DSN == "" {
		return noop, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serverName,
		TracesSampler:    sampler(cfg.TracesSampleRate),
	})
	if err != nil {
		log.Printf("sentry: failed to initialize, continuing without tracing: %v", err)
		return noop, nil
	}

	log.Printf("sentry: tracing initialized environment=%s sample_rate=%.2f", cfg.Environment, cfg.TracesSampleRate)
	return func() { sentry.Flush(flushTimeout) }, nil
}

// sampler drops unsampled transactions and makes child spans follow their parent.
func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		if unsampledTransactions[ctx.Span.Name] {
			return 0
		}
		var root sentry.SpanID
		if ctx.Span.ParentSpanID != root {
			if ctx.Span.Sampled.Bool() {
				return 1
			}
			return 0
		}
		return rate
	}
}

// SpanAttributes are the identifiers attached to a service span as tags.
type SpanAttributes struct {
	UserID         string
	DocumentID     string
	ConversationID string
	Subject        string
	Operation      string
}

func (a SpanAttributes) tags() map[string]string {
	return map[string]string{
		"user_id":         a.UserID,
		"document_id":     a.DocumentID,
		"conversation_id": a.ConversationID,
		"subject":         a.Subject,
	}
}

// Span is a nil-safe handle on a Sentry span.
type Span struct {
	inner *sentry.Span
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetOutcome tags how the operation ended, e.g. "answered" or "failed".
func (s *Span) SetOutcome(outcome string) {
	if s.inner != nil && outcome != "" {
		s.inner.SetTag("outcome", outcome)
	}
}

// SetError marks the span failed and reports err.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	}
}

// StartSpan opens a child of the span in ctx, or a new transaction when ctx has
// none, as happens for the processing worker.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	for k, v := range attrs.tags() {
		if v != "" {
			span.SetTag(k, v)
		}
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}

	return span.Context(), &Span{inner: span}
}

// CaptureError reports err on the hub bound to ctx, or the global hub.
func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// AddBreadcrumb records an informational breadcrumb for later events.
func AddBreadcrumb(ctx context.Context, category, message string) {
	crumb := &sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(crumb, nil)
		return
	}
	sentry.AddBreadcrumb(crumb)
}
