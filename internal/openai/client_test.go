package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOpenAIAPI is a mock for the OpenAI API
type MockOpenAIAPI struct {
	mock.Mock
}

func (m *MockOpenAIAPI) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockOpenAIAPI) CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func newMockClient(api API) *Client {
	return newClient(api, Config{APIKey: "test-key"})
}

func TestClient_GenerateEmbedding_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newMockClient(mockAPI)

	text := "Photosynthesis converts light energy into chemical energy."
	expectedEmbedding := make([]float32, 1536)
	for i := range expectedEmbedding {
		expectedEmbedding[i] = float32(i) * 0.001
	}

	mockAPI.On("CreateEmbeddings", mock.Anything, text).Return(expectedEmbedding, nil)

	embedding, err := client.GenerateEmbedding(context.Background(), text)

	assert.NoError(t, err)
	assert.Len(t, embedding, 1536)
	assert.Equal(t, expectedEmbedding, embedding)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := NewClient("test-key")

	embedding, err := client.GenerateEmbedding(context.Background(), "   ")

	assert.Nil(t, embedding)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_GenerateEmbedding_NoAPIKey(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, Config{})

	embedding, err := client.GenerateEmbedding(context.Background(), "text")

	assert.Nil(t, embedding)
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.False(t, client.Configured())
	mockAPI.AssertNotCalled(t, "CreateEmbeddings", mock.Anything, mock.Anything)
}

func TestClient_GenerateEmbedding_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newMockClient(mockAPI)

	apiErr := errors.New("API rate limit exceeded")
	mockAPI.On("CreateEmbeddings", mock.Anything, "Test text").Return(nil, apiErr)

	embedding, err := client.GenerateEmbedding(context.Background(), "Test text")

	assert.Nil(t, embedding)
	assert.ErrorIs(t, err, apiErr)
	assert.Contains(t, err.Error(), "failed to create embedding")
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_WrongDimensions(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newMockClient(mockAPI)

	mockAPI.On("CreateEmbeddings", mock.Anything, "Test text").Return(make([]float32, 512), nil)

	embedding, err := client.GenerateEmbedding(context.Background(), "Test text")

	assert.Nil(t, embedding)
	assert.ErrorIs(t, err, ErrWrongDimensions)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_AppliesTimeout(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, Config{APIKey: "k", EmbedTimeout: 20 * time.Millisecond})

	mockAPI.On("CreateEmbeddings", mock.Anything, "slow").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	_, err := client.GenerateEmbedding(context.Background(), "slow")

	assert.ErrorIs(t, err, ErrTimeout)
	mockAPI.AssertExpectations(t)
}

func TestClient_Complete_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newMockClient(mockAPI)

	req := ChatRequest{
		Messages:    []Message{{Role: RoleUser, Content: "What is a cell?"}},
		MaxTokens:   500,
		Temperature: 0.3,
	}
	mockAPI.On("CreateChatCompletion", mock.Anything, req).Return("  A cell is the basic unit of life.\n", nil)

	content, err := client.Complete(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "A cell is the basic unit of life.", content)
	mockAPI.AssertExpectations(t)
}

func TestClient_Complete_EmptyContent(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newMockClient(mockAPI)

	req := ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}}
	mockAPI.On("CreateChatCompletion", mock.Anything, req).Return(" ", nil)

	_, err := client.Complete(context.Background(), req)

	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestClient_Complete_Errors(t *testing.T) {
	client := newClient(new(MockOpenAIAPI), Config{})
	_, err := client.Complete(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, ErrNoAPIKey)

	client = newMockClient(new(MockOpenAIAPI))
	_, err = client.Complete(context.Background(), ChatRequest{})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestClient_RateLimiterRespectsContext(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	limiter := NewLimiter(0.001, 1)
	require.NotNil(t, limiter)
	require.True(t, limiter.Allow())

	client := newClient(mockAPI, Config{APIKey: "k", Limiter: limiter, EmbedTimeout: 10 * time.Millisecond})

	_, err := client.GenerateEmbedding(context.Background(), "text")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
	mockAPI.AssertNotCalled(t, "CreateEmbeddings", mock.Anything, mock.Anything)
}

func TestNewLimiter_Disabled(t *testing.T) {
	assert.Nil(t, NewLimiter(0, 5))
	assert.NotNil(t, NewLimiter(2, 0))
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key")

	assert.NotNil(t, client)
	assert.NotNil(t, client.api)
	assert.True(t, client.Configured())
	assert.Equal(t, DefaultEmbeddingDimensions, client.dimensions)
}

func TestOpenAIAdapter_AgainstFakeServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fake-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/v1/embeddings":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "text-embedding-ada-002", body["model"])
			_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25,0.125]}],"model":"text-embedding-ada-002"}`))
		case "/v1/chat/completions":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "gpt-3.5-turbo", body["model"])
			assert.EqualValues(t, 500, body["max_tokens"])
			_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Cells divide."},"finish_reason":"stop"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClientWithConfig(Config{
		APIKey:              "fake-key",
		BaseURL:             server.URL + "/v1/",
		EmbeddingDimensions: 3,
	})

	embedding, err := client.GenerateEmbedding(context.Background(), "cells")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, 0.125}, embedding)

	content, err := client.Complete(context.Background(), ChatRequest{
		Messages:  []Message{{Role: RoleSystem, Content: "tutor"}, {Role: RoleUser, Content: "mitosis?"}},
		MaxTokens: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, "Cells divide.", content)
}

func TestOpenAIAdapter_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewClientWithConfig(Config{APIKey: "bad", BaseURL: server.URL})

	embedding, err := client.GenerateEmbedding(context.Background(), "cells")
	assert.Nil(t, embedding)
	assert.Error(t, err)
}
