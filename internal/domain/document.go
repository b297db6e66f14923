package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DocumentKind is the closed set of uploadable file kinds
type DocumentKind string

const (
	DocumentKindTXT  DocumentKind = "txt"
	DocumentKindPDF  DocumentKind = "pdf"
	DocumentKindDOC  DocumentKind = "doc"
	DocumentKindDOCX DocumentKind = "docx"
)

// DocumentStatus is the processing state of a document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is an uploaded study material owned by one user
type Document struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Subject     string
	Kind        DocumentKind
	Filename    string
	SizeBytes   int64
	ContentKey  string
	Status      DocumentStatus
	IsProcessed bool
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsValid checks if the document kind is one of the supported kinds
func (k DocumentKind) IsValid() bool {
	switch k {
	case DocumentKindTXT, DocumentKindPDF, DocumentKindDOC, DocumentKindDOCX:
		return true
	}
	return false
}

// HasTextExtraction reports whether the kind has real text extraction.
// Every other kind yields a fixed placeholder text.
func (k DocumentKind) HasTextExtraction() bool {
	return k == DocumentKindTXT
}

// KindFromFilename derives the document kind from a file extension.
func KindFromFilename(filename string) (DocumentKind, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	kind := DocumentKind(ext)
	if !kind.IsValid() {
		return "", ErrInvalidDocumentKind
	}
	return kind, nil
}

// IsValid checks if the status is one of the known states
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing, DocumentStatusCompleted, DocumentStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed
}

// CanTransitionTo encodes pending -> processing -> {completed | failed}.
// There are no backward transitions.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	switch s {
	case DocumentStatusPending:
		return next == DocumentStatusProcessing
	case DocumentStatusProcessing:
		return next == DocumentStatusCompleted || next == DocumentStatusFailed
	}
	return false
}

// IsSearchable reports whether the document's chunks may be retrieved
func (d *Document) IsSearchable() bool {
	return d.Status == DocumentStatusCompleted
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if err := requireFields("document", field{"ID", d.ID}, field{"UserID", d.UserID}, field{"Title", d.Title}); err != nil {
		return err
	}
	if !d.Kind.IsValid() {
		return ErrInvalidDocumentKind
	}
	if !d.Status.IsValid() {
		return ErrInvalidDocumentStatus
	}
	if d.SizeBytes < 0 {
		return fmt.Errorf("document SizeBytes cannot be negative")
	}
	return nil
}
