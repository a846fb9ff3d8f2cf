// ABOUTME: Gemini client for chat completions and embeddings through generative-ai-go
// ABOUTME: Alternative to the OpenAI-compatible client, sharing its retry policy
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/generative-ai-go/genai"
	"github.com/harper/actes-verif/internal/logging"
	"github.com/harper/actes-verif/internal/util"
	"google.golang.org/api/option"
)

const (
	// DefaultGeminiChatModel is the default Gemini generation model
	DefaultGeminiChatModel = "gemini-2.0-flash"
	// DefaultGeminiEmbeddingModel is the default Gemini embedding model
	DefaultGeminiEmbeddingModel = "text-embedding-004"
)

// GeminiConfig holds configuration for the Gemini client
type GeminiConfig struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	MaxRetries     int
	RetryDelay     time.Duration
	Timeout        time.Duration
	Temperature    float32
	Logger         *log.Logger
}

// GeminiClient wraps genai.Client with the same Invoke and Embed surface as OpenAIClient
type GeminiClient struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	maxRetries     int
	retryDelay     time.Duration
	timeout        time.Duration
	temperature    float32
	logger         *log.Logger
}

// NewGeminiClient creates a Gemini client
func NewGeminiClient(ctx context.Context, cfg *GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultGeminiChatModel
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultGeminiEmbeddingModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &GeminiClient{
		client:         client,
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
		timeout:        timeout,
		temperature:    cfg.Temperature,
		logger:         logger.With("client", "gemini"),
	}, nil
}

// ChatModel returns the generation model name
func (c *GeminiClient) ChatModel() string {
	return c.chatModel
}

// Model returns the embedding space identifier for vectors produced by this client
func (c *GeminiClient) Model() string {
	return "gemini:" + c.embeddingModel
}

// Close releases the underlying connection
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// Invoke generates a completion for prompt
func (c *GeminiClient) Invoke(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.chatModel)
	model.SetTemperature(c.temperature)

	var text string
	err := c.withRetry(ctx, "generate content", func(callCtx context.Context) error {
		resp, err := model.GenerateContent(callCtx, genai.Text(prompt))
		if err != nil {
			return classifyGeminiError(err)
		}
		out := candidateText(resp)
		if out == "" {
			return NewTransientError(errors.New("no candidate text returned"))
		}
		text = out
		return nil
	})
	return text, err
}

// Embed generates the embedding vector of a single text
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for texts, preserving input order
func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	em := c.client.EmbeddingModel(c.embeddingModel)
	out := make([][]float64, 0, len(texts))

	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))

		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}

		var vectors [][]float64
		err := c.withRetry(ctx, "batch embed", func(callCtx context.Context) error {
			resp, err := em.BatchEmbedContents(callCtx, batch)
			if err != nil {
				return classifyGeminiError(err)
			}
			if len(resp.Embeddings) != end-start {
				return NewTransientError(fmt.Errorf("expected %d embeddings, got %d", end-start, len(resp.Embeddings)))
			}
			vectors = make([][]float64, len(resp.Embeddings))
			for i, e := range resp.Embeddings {
				vectors[i] = toFloat64(e.Values)
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

func (c *GeminiClient) withRetry(ctx context.Context, op string, call func(context.Context) error) error {
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

// candidateText concatenates the text parts of the first candidate
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
