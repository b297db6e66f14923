package service

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/studycompanion/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ExtractText returns the text of a document. Only plain text is read; every other
// kind yields a fixed placeholder.
func ExtractText(kind domain.DocumentKind, data []byte) (string, error) {
	if !kind.IsValid() {
		return "", domain.ErrInvalidDocumentKind
	}

	if !kind.HasTextExtraction() {
		return fmt.Sprintf("Document content for %s file. This is a placeholder for the actual content extraction.", kind), nil
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", domain.Wrap(domain.ErrExtractionFailure, fmt.Errorf("content is not valid UTF-8"))
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrExtractionFailure
	}
	return text, nil
}
