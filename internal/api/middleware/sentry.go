package middleware

import (
	"net/http"

	"github.com/getsentry/sentry-go"
)

// SentryMiddleware opens one transaction per request, named by the matched chi
// route once the handler returns. Panics are reported and re-raised for the
// recoverer. Without an initialized client it only passes requests through.
func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}

		options := []sentry.SpanOption{
			sentry.WithOpName("http.server"),
			sentry.WithTransactionSource(sentry.SourceURL),
		}
		if trace := r.Header.Get("sentry-trace"); trace != "" {
			options = append(options, sentry.ContinueFromHeaders(trace, r.Header.Get("baggage")))
		}

		transaction := sentry.StartTransaction(r.Context(), r.Method+" "+r.URL.Path, options...)
		defer transaction.Finish()

		r = r.WithContext(sentry.SetHubOnContext(transaction.Context(), hub))

		scope := hub.Scope()
		scope.SetRequest(r)
		if requestID := GetRequestID(r.Context()); requestID != "" {
			scope.SetTag("request_id", requestID)
			transaction.SetTag("request_id", requestID)
		}

		defer func() {
			if err := recover(); err != nil {
				transaction.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(r.Context(), err)
				panic(err)
			}
		}()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		status := rec.Status()

		route := matchedRoute(r)
		transaction.Name = r.Method + " " + route.Pattern
		transaction.Source = sentry.SourceRoute
		transaction.Status = spanStatus(status)
		transaction.SetData("http.response.status_code", status)

		for tag, value := range map[string]string{
			"document_id":     route.DocumentID,
			"conversation_id": route.ConversationID,
			"subject":         route.Subject,
		} {
			if value != "" {
				transaction.SetTag(tag, value)
			}
		}

		if userID := authenticatedUserID(r); userID != "" {
			scope.SetUser(sentry.User{ID: userID})
			transaction.SetTag("user_id", userID)
		}

		// Handlers capture the underlying errors; this records the failed response.
		if status >= http.StatusInternalServerError {
			hub.CaptureMessage(transaction.Name + ": " + http.StatusText(status))
		}
	})
}

var clientErrorStatus = map[int]sentry.SpanStatus{
	http.StatusBadRequest:            sentry.SpanStatusInvalidArgument,
	http.StatusUnauthorized:          sentry.SpanStatusUnauthenticated,
	http.StatusForbidden:             sentry.SpanStatusPermissionDenied,
	http.StatusNotFound:              sentry.SpanStatusNotFound,
	http.StatusConflict:              sentry.SpanStatusAlreadyExists,
	http.StatusRequestEntityTooLarge: sentry.SpanStatusOutOfRange,
	http.StatusUnsupportedMediaType:  sentry.SpanStatusInvalidArgument,
	http.StatusTooManyRequests:       sentry.SpanStatusResourceExhausted,
	499:                              sentry.SpanStatusCanceled,
}

func spanStatus(status int) sentry.SpanStatus {
	switch {
	case status < 400:
		return sentry.SpanStatusOK
	case status < 500:
		if s, ok := clientErrorStatus[status]; ok {
			return s
		}
		return sentry.SpanStatusInvalidArgument
	case status == http.StatusNotImplemented:
		return sentry.SpanStatusUnimplemented
	case status == http.StatusServiceUnavailable:
		return sentry.SpanStatusUnavailable
	case status == http.StatusGatewayTimeout:
		return sentry.SpanStatusDeadlineExceeded
	default:
		return sentry.SpanStatusInternalError
	}
}
