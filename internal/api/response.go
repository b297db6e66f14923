package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/cloo-solutions/studycompanion/internal/domain"
)

const internalErrorMessage = "internal server error"

// SuccessResponse is the envelope of every successful response
type SuccessResponse struct {
	Data any `json:"data"`
}

// ErrorResponse carries a fixed, client-safe message
type ErrorResponse struct {
	Error string `json:"error"`
}

var statusByCode = map[string]int{
	domain.ErrCodeValidation:         http.StatusBadRequest,
	domain.ErrCodeInvalidOperation:   http.StatusBadRequest,
	domain.ErrCodeUnsupportedSubject: http.StatusBadRequest,
	domain.ErrCodeNotFound:           http.StatusNotFound,
	domain.ErrCodeAlreadyExists:      http.StatusConflict,
	domain.ErrCodeUnauthorized:       http.StatusUnauthorized,
	domain.ErrCodeForbidden:          http.StatusForbidden,
	domain.ErrCodeExtractionFailure:  http.StatusUnprocessableEntity,
	domain.ErrCodeEmbeddingFailure:   http.StatusServiceUnavailable,
	domain.ErrCodeGenerationFailure:  http.StatusServiceUnavailable,
}

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("api: failed to encode response: %v", err)
	}
}

func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, SuccessResponse{Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DecodeJSON reads the request body into v. On failure it writes 413 for a
// body cut off by MaxBytesReader and 400 otherwise, and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	Error(w, http.StatusBadRequest, "invalid request body")
	return false
}

// DomainErrorToHTTP maps domain errors, wrapped or not, to HTTP status codes.
// Anything that is not a DomainError is a 500.
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}
	if status, ok := statusByCode[domainErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleError writes the domain message for err. Causes and non-domain errors
// are logged and the client sees only a generic message.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)

	var domainErr *domain.DomainError
	if status == http.StatusInternalServerError || !errors.As(err, &domainErr) {
		log.Printf("api: internal error: %v", err)
		Error(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	Error(w, status, domainErr.Message)
}
