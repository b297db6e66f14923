//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_GenerateEmbedding_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClient(apiKey)

	embedding, err := client.GenerateEmbedding(context.Background(), "The mitochondria is the powerhouse of the cell.")

	require.NoError(t, err)
	assert.Len(t, embedding, DefaultEmbeddingDimensions)
}

func TestIntegration_Complete_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClient(apiKey)

	content, err := client.Complete(context.Background(), ChatRequest{
		Messages:    []Message{{Role: RoleUser, Content: "Reply with the single word: ok"}},
		MaxTokens:   5,
		Temperature: 0,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, content)
}
