// ABOUTME: OpenAI-compatible client for chat completions and embeddings
// ABOUTME: Works against any compatible base URL (Albert, OpenAI) with timeouts and retry with backoff
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/actes-verif/internal/logging"
	"github.com/harper/actes-verif/internal/util"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the default model for embeddings
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
	// embedBatchSize bounds the number of inputs sent in one embeddings request
	embedBatchSize = 64
)

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	MaxRetries     int
	RetryDelay     time.Duration
	Timeout        time.Duration
	Temperature    float32
	Logger         *log.Logger
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:         apiKey,
		ChatModel:      DefaultChatModel,
		EmbeddingModel: DefaultEmbeddingModel,
		MaxRetries:     3,
		RetryDelay:     time.Second * 2,
		Timeout:        time.Second * 60,
		Temperature:    0.1,
	}
}

// OpenAIClient wraps the OpenAI API client with retry logic
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	maxRetries     int
	retryDelay     time.Duration
	timeout        time.Duration
	temperature    float32
	logger         *log.Logger
}

// NewOpenAIClient creates a new OpenAI client with the given API key using default configuration
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithConfig(DefaultConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom configuration
func NewOpenAIClientWithConfig(config *ClientConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required")
	}

	oc := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}

	chatModel := config.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	embeddingModel := config.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(oc),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		maxRetries:     config.MaxRetries,
		retryDelay:     config.RetryDelay,
		timeout:        timeout,
		temperature:    config.Temperature,
		logger:         logger.With("client", "openai"),
	}, nil
}

// ChatModel returns the chat completion model name
func (c *OpenAIClient) ChatModel() string {
	return c.chatModel
}

// Model returns the embedding space identifier for vectors produced by this client
func (c *OpenAIClient) Model() string {
	return "openai:" + c.embeddingModel
}

// Invoke sends prompt as a single user message and returns the completion text
func (c *OpenAIClient) Invoke(ctx context.Context, prompt string) (string, error) {
	var content string
	err := c.withRetry(ctx, "chat completion", func(callCtx context.Context) error {
		resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: c.temperature,
		})
		if err != nil {
			return classifyOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			return NewTransientError(errors.New("no completion choices returned"))
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	return content, err
}

// Embed generates the embedding vector of a single text
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for texts, preserving input order
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		batch := texts[start:end]

		var vectors [][]float64
		err := c.withRetry(ctx, "embeddings", func(callCtx context.Context) error {
			resp, err := c.client.CreateEmbeddings(callCtx, openai.EmbeddingRequestStrings{
				Input: batch,
				Model: openai.EmbeddingModel(c.embeddingModel),
			})
			if err != nil {
				return classifyOpenAIError(err)
			}
			if len(resp.Data) != len(batch) {
				return NewTransientError(fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Data)))
			}
			sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
			vectors = make([][]float64, len(resp.Data))
			for i, d := range resp.Data {
				vectors[i] = toFloat64(d.Embedding)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// withRetry runs call with a per-attempt timeout, retrying transient failures with backoff
func (c *OpenAIClient) withRetry(ctx context.Context, op string, call func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := util.Sleep(ctx, util.CalculateBackoff(c.retryDelay, attempt)); err != nil {
				return fmt.Errorf("%s cancelled after %d attempts: %w", op, attempt, err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := call(callCtx)
		cancel()

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}

		lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
		if IsFatal(err) {
			return fmt.Errorf("%s failed: %w", op, lastErr)
		}
		c.logger.Warn("retrying", "op", op, "attempt", attempt+1, "err", err)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, c.maxRetries+1, lastErr)
}

// toFloat64 converts a []float32 embedding to []float64
func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
