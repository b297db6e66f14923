package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message,
// so wrapped sentinels still match with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap attaches cause to a copy of the sentinel, keeping its code and message.
func Wrap(sentinel *DomainError, cause error) *DomainError {
	return NewDomainErrorWithCause(sentinel.Code, sentinel.Message, cause)
}

// CodeOf returns the domain error code carried by err, or "" when err is not a DomainError.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Common domain error codes
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAlreadyExists      = "ALREADY_EXISTS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeInvalidOperation   = "INVALID_OPERATION"
	ErrCodeUnsupportedSubject = "UNSUPPORTED_SUBJECT"
	ErrCodeExtractionFailure  = "EXTRACTION_FAILURE"
	ErrCodeEmbeddingFailure   = "EMBEDDING_FAILURE"
	ErrCodeGenerationFailure  = "GENERATION_FAILURE"
)

// Validation errors
var (
	ErrInvalidDocumentKind   = NewDomainError(ErrCodeValidation, "unsupported document kind, allowed kinds: pdf, doc, docx, txt")
	ErrInvalidDocumentStatus = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuestion         = NewDomainError(ErrCodeValidation, "question is required")
	ErrEmptyDocument         = NewDomainError(ErrCodeValidation, "uploaded file is empty")
)

// Not found errors
var (
	// ErrDocumentNotFound covers both missing documents and documents owned by someone else.
	ErrDocumentNotFound     = NewDomainError(ErrCodeNotFound, "document not found")
	ErrUserNotFound         = NewDomainError(ErrCodeNotFound, "user not found")
	ErrAPIKeyNotFound       = NewDomainError(ErrCodeNotFound, "api key not found")
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
	ErrContentNotFound      = NewDomainError(ErrCodeNotFound, "document content not found")
)

// Already exists errors
var (
	ErrUserAlreadyExists   = NewDomainError(ErrCodeAlreadyExists, "user already exists")
	ErrAPIKeyAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "api key already exists")
	ErrChunkAlreadyExists  = NewDomainError(ErrCodeAlreadyExists, "chunk sequence index already exists for document")
)

// Authorization errors
var (
	ErrAPIKeyRevoked = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Operation errors
var (
	ErrInvalidStatusTransition = NewDomainError(ErrCodeInvalidOperation, "invalid document status transition")
	ErrStorageOperationFail    = NewDomainError(ErrCodeInternalError, "storage operation failed")
)

// Retrieval pipeline failures
var (
	ErrExtractionFailure  = NewDomainError(ErrCodeExtractionFailure, "no text could be extracted from document")
	ErrEmbeddingFailure   = NewDomainError(ErrCodeEmbeddingFailure, "embedding unavailable")
	ErrGenerationFailure  = NewDomainError(ErrCodeGenerationFailure, "generation unavailable")
	ErrUnsupportedSubject = NewDomainError(ErrCodeUnsupportedSubject, "unsupported subject")
)
