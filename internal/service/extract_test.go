package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/studycompanion/internal/domain"
)

func TestExtractText(t *testing.T) {
	t.Run("plain text", func(t *testing.T) {
		text, err := ExtractText(domain.DocumentKindTXT, []byte("Photosynthesis converts light."))
		require.NoError(t, err)
		assert.Equal(t, "Photosynthesis converts light.", text)
	})

	t.Run("strips byte order mark", func(t *testing.T) {
		text, err := ExtractText(domain.DocumentKindTXT, append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello")...))
		require.NoError(t, err)
		assert.Equal(t, "hello", text)
	})

	t.Run("blank text fails", func(t *testing.T) {
		_, err := ExtractText(domain.DocumentKindTXT, []byte(" \n\t "))
		assert.ErrorIs(t, err, domain.ErrExtractionFailure)
	})

	t.Run("invalid utf8 fails", func(t *testing.T) {
		_, err := ExtractText(domain.DocumentKindTXT, []byte{0xff, 0xfe, 0xfd})
		assert.ErrorIs(t, err, domain.ErrExtractionFailure)
	})

	t.Run("placeholder for binary kinds", func(t *testing.T) {
		for _, kind := range []domain.DocumentKind{domain.DocumentKindPDF, domain.DocumentKindDOC, domain.DocumentKindDOCX} {
			text, err := ExtractText(kind, []byte{0x25, 0x50, 0x44, 0x46})
			require.NoError(t, err)
			assert.Contains(t, text, "Document content for "+string(kind)+" file.")
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := ExtractText(domain.DocumentKind("exe"), []byte("x"))
		assert.ErrorIs(t, err, domain.ErrInvalidDocumentKind)
	})
}
