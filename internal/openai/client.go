package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is the completion model used for answers and subject agents
	DefaultChatModel = openai.GPT3Dot5Turbo

	defaultEmbedTimeout      = 30 * time.Second
	defaultGenerationTimeout = 60 * time.Second
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when no OpenAI API key is configured
	ErrNoAPIKey = errors.New("openai api key not configured")
	// ErrEmptyCompletion is returned when the completion has no usable text
	ErrEmptyCompletion = errors.New("completion returned no content")
	// ErrTimeout is returned when a single call exceeds its deadline
	ErrTimeout = errors.New("openai request timed out")
)

// Message roles accepted by ChatRequest
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Message is one role/content pair of a chat prompt
type Message struct {
	Role    string
	Content string
}

// ChatRequest describes one completion call
type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// API defines the raw calls made against the hosted service
type API interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
	CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error)
}

// OpenAIAdapter implements API with the go-openai client
type OpenAIAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	chatModel      string
}

func NewOpenAIAdapter(apiKey, baseURL string, embeddingModel openai.EmbeddingModel, chatModel string) *OpenAIAdapter {
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIAdapter{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// CreateChatCompletion calls the OpenAI API and returns the first choice's content
func (a *OpenAIAdapter) CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.chatModel,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	ChatModel           string
	EmbedTimeout        time.Duration
	GenerationTimeout   time.Duration
	// Limiter is shared by every call made through the client; nil disables rate limiting.
	Limiter *rate.Limiter
}

// Client wraps the OpenAI API with per-call timeouts, rate limiting and response checks
type Client struct {
	api               API
	hasKey            bool
	dimensions        int
	embedTimeout      time.Duration
	generationTimeout time.Duration
	limiter           *rate.Limiter
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
// A client without an API key is valid; every call fails with ErrNoAPIKey.
func NewClientWithConfig(cfg Config) *Client {
	return newClient(NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, cfg.EmbeddingModel, cfg.ChatModel), cfg)
}

func newClient(api API, cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	embedTimeout := cfg.EmbedTimeout
	if embedTimeout <= 0 {
		embedTimeout = defaultEmbedTimeout
	}
	generationTimeout := cfg.GenerationTimeout
	if generationTimeout <= 0 {
		generationTimeout = defaultGenerationTimeout
	}
	return &Client{
		api:               api,
		hasKey:            strings.TrimSpace(cfg.APIKey) != "",
		dimensions:        dimensions,
		embedTimeout:      embedTimeout,
		generationTimeout: generationTimeout,
		limiter:           cfg.Limiter,
	}
}

// NewLimiter builds the shared limiter for rps requests per second; rps <= 0 disables limiting.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Configured reports whether an API key is available
func (c *Client) Configured() bool {
	return c.hasKey
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if !c.hasKey {
		return nil, ErrNoAPIKey
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	ctx, cancel := context.WithTimeout(ctx, c.embedTimeout)
	defer cancel()

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", timeoutErr(ctx, err))
	}

	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(embedding))
	}

	return embedding, nil
}

// Complete runs one chat completion and returns its trimmed text
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if !c.hasKey {
		return "", ErrNoAPIKey
	}
	if len(req.Messages) == 0 {
		return "", ErrEmptyText
	}

	ctx, cancel := context.WithTimeout(ctx, c.generationTimeout)
	defer cancel()

	if err := c.wait(ctx); err != nil {
		return "", err
	}

	content, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", timeoutErr(ctx, err))
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyCompletion
	}

	return content, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", timeoutErr(ctx, err))
	}
	return nil
}

func timeoutErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
