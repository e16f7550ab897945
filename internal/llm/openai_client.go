// ABOUTME: OpenAI client for embeddings and LLM-based extraction and routing
// ABOUTME: Uses text-embedding-3-small for embeddings, gpt-4o-mini for structured calls (configurable)
package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/harper/hmlr/internal/util"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the default model for embeddings
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
)

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:         apiKey,
		ChatModel:      DefaultChatModel,
		EmbeddingModel: DefaultEmbeddingModel,
		EmbeddingDim:   1536,
		Timeout:        30 * time.Second,
		MaxRetries:     1,
		RetryDelay:     2 * time.Second,
	}
}

// Client wraps the OpenAI API client with timeouts and retry logic.
// It implements the core.LLMClient and core.Embedder interfaces.
type Client struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	embeddingDim   int
	timeout        time.Duration
	maxRetries     int
	retryDelay     time.Duration
}

// NewClient creates a new OpenAI client with the given API key using default configuration
func NewClient(apiKey string) (*Client, error) {
	return NewClientWithConfig(DefaultConfig(apiKey))
}

// NewClientWithConfig creates a new OpenAI client with custom configuration
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		client:         openai.NewClient(config.APIKey),
		chatModel:      config.ChatModel,
		embeddingModel: config.EmbeddingModel,
		embeddingDim:   config.EmbeddingDim,
		timeout:        timeout,
		maxRetries:     config.MaxRetries,
		retryDelay:     config.RetryDelay,
	}, nil
}

// Query sends a single-prompt completion and returns the response text.
func (c *Client) Query(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, nil)
}

// QueryJSON sends a single-prompt completion in strict JSON mode.
// The returned string is guaranteed by the API to be a JSON document.
func (c *Client) QueryJSON(ctx context.Context, prompt string) (string, error) {
	format := &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
	return c.complete(ctx, prompt, format)
}

func (c *Client) complete(ctx context.Context, prompt string, format *openai.ChatCompletionResponseFormat) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(util.CalculateBackoff(c.retryDelay, attempt)):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)

		resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature:    0.1,
			ResponseFormat: format,
		})
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("attempt %d: no completion choices returned", attempt+1)
			continue
		}

		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("completion failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// GenerateEmbedding generates an embedding vector for the given text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(util.CalculateBackoff(c.retryDelay, attempt)):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)

		req := openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(c.embeddingModel),
		}
		if c.embeddingDim > 0 && c.embeddingDim != 1536 {
			req.Dimensions = c.embeddingDim
		}

		resp, err := c.client.CreateEmbeddings(callCtx, req)
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		if len(resp.Data) == 0 {
			lastErr = fmt.Errorf("attempt %d: no embeddings returned", attempt+1)
			continue
		}

		embedding32 := resp.Data[0].Embedding
		embedding64 := make([]float64, len(embedding32))
		for i, v := range embedding32 {
			embedding64[i] = float64(v)
		}
		return embedding64, nil
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// Dimension returns the configured embedding dimension.
func (c *Client) Dimension() int {
	return c.embeddingDim
}
