// ABOUTME: Composition root wiring configuration into providers, corpus, pipeline stages and event sinks
// ABOUTME: Every command and server builds one App per process and closes it on exit
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/actes-verif/internal/charm"
	"github.com/harper/actes-verif/internal/config"
	"github.com/harper/actes-verif/internal/core"
	"github.com/harper/actes-verif/internal/embedding"
	"github.com/harper/actes-verif/internal/llm"
	"github.com/harper/actes-verif/internal/logging"
	"github.com/harper/actes-verif/internal/sources"
	"github.com/harper/actes-verif/internal/storage"
	"github.com/harper/actes-verif/internal/storage/pgvector"
	"github.com/harper/actes-verif/internal/storage/sqlite"
	"github.com/harper/actes-verif/internal/telemetry"
)

// ErrNoLanguageModel is returned by Assessor when no language model could be configured
var ErrNoLanguageModel = errors.New("no language model configured")

// App holds the wired pipeline
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Metrics *telemetry.Metrics
	Sink    telemetry.Sink

	Provider  embedding.Provider
	Corpus    *storage.Corpus
	Ledger    storage.Ledger
	Chunker   *core.ArticleChunker
	Fetcher   *sources.Fetcher
	Loader    *core.CorpusLoader
	Extractor *core.ConceptExtractor
	Retriever *core.EvidenceRetriever

	assessor *core.Assessor
	form     *core.FormAnalyzer
	llmErr   error
	closers  []func() error
}

// Option overrides a component New would otherwise build from configuration
type Option func(*overrides)

type overrides struct {
	logger   *log.Logger
	invoker  llm.Invoker
	provider embedding.Provider
	backend  storage.Backend
	fetcher  core.Fetcher
	sinks    []telemetry.Sink
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(o *overrides) { o.logger = logger }
}

// WithInvoker sets the language model
func WithInvoker(invoker llm.Invoker) Option {
	return func(o *overrides) { o.invoker = invoker }
}

// WithProvider sets the embedding provider; it is still wrapped in the memo
func WithProvider(provider embedding.Provider) Option {
	return func(o *overrides) { o.provider = provider }
}

// WithBackend sets the corpus backend; the App closes it
func WithBackend(backend storage.Backend) Option {
	return func(o *overrides) { o.backend = backend }
}

// WithFetcher sets the source fetcher used by the loader
func WithFetcher(fetcher core.Fetcher) Option {
	return func(o *overrides) { o.fetcher = fetcher }
}

// WithSink adds an event sink
func WithSink(sink telemetry.Sink) Option {
	return func(o *overrides) { o.sinks = append(o.sinks, sink) }
}

// New builds the pipeline described by cfg.
// A missing language model is not fatal: ingestion and search still work and
// Assessor reports the cause.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: o.logger}
	if a.Logger == nil {
		a.Logger = logging.Discard()
	}

	if err := a.wireSinks(o.sinks); err != nil {
		a.Close()
		return nil, err
	}

	invoker := o.invoker
	provider := o.provider
	if invoker == nil || provider == nil {
		built, builtProvider, err := a.buildClients(ctx, invoker == nil, provider == nil)
		if err != nil {
			a.Close()
			return nil, err
		}
		if invoker == nil {
			invoker = built
		}
		if provider == nil {
			provider = builtProvider
		}
	}

	provider, err := a.decorateProvider(provider)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Provider = provider

	backend := o.backend
	if backend == nil {
		backend, err = openBackend(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	corpus, err := storage.Open(ctx, backend, provider, storage.Options{
		BatchSize: cfg.BatchSize,
		Logger:    a.Logger,
		OnBatch:   a.emitBatch,
	})
	if err != nil {
		_ = backend.Close()
		a.Close()
		return nil, err
	}
	a.Corpus = corpus
	a.closers = append(a.closers, corpus.Close)
	if ledger, ok := backend.(storage.Ledger); ok {
		a.Ledger = ledger
	}

	a.Chunker = core.NewArticleChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	a.Fetcher = sources.New(sources.Options{
		Timeout: cfg.FetchTimeout,
		S3: sources.S3Config{
			Region:    cfg.AWSRegion,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
		},
		Logger: a.Logger,
	})
	var fetcher core.Fetcher = a.Fetcher
	if o.fetcher != nil {
		fetcher = o.fetcher
	}
	a.Loader = core.NewCorpusLoader(fetcher, a.Chunker, corpus, a.Ledger, cfg.DuplicateThreshold, a.Sink, a.Logger)
	a.Retriever = core.NewEvidenceRetriever(corpus, cfg.RetrievalConcurrency, a.Sink)

	if invoker != nil {
		a.Extractor = core.NewConceptExtractor(invoker, cfg.ConceptMaxInputChars, a.Sink)
		a.assessor = core.NewAssessor(invoker, a.Extractor, a.Retriever, core.AssessorConfig{
			ConceptCount: cfg.ConceptCount,
			KPerConcept:  cfg.KPerConcept,
			MaxEvidence:  cfg.MaxEvidence,
			Strict:       cfg.StrictVerdict,
		}, a.Sink, a.Logger)
		a.form = core.NewFormAnalyzer(invoker, a.Retriever, core.FormConfig{}, a.Sink, a.Logger)
	}
	return a, nil
}

// Assessor returns the validity assessor, or the reason no language model is available
func (a *App) Assessor() (*core.Assessor, error) {
	if a.assessor == nil {
		if a.llmErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoLanguageModel, a.llmErr)
		}
		return nil, ErrNoLanguageModel
	}
	return a.assessor, nil
}

// FormAnalyzer returns the form-conformance analyzer, or the reason no language model is available
func (a *App) FormAnalyzer() (*core.FormAnalyzer, error) {
	if a.form == nil {
		if a.llmErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoLanguageModel, a.llmErr)
		}
		return nil, ErrNoLanguageModel
	}
	return a.form, nil
}

// Close releases everything New opened, last opened first
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) wireSinks(extra []telemetry.Sink) error {
	a.Metrics = telemetry.NewMetrics()
	sinks := telemetry.Multi{telemetry.NewLogSink(a.Logger), a.Metrics}
	if a.Config.NATSURL != "" {
		natsSink, err := telemetry.DialNATS(a.Config.NATSURL, a.Config.NATSSubject, a.Logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, natsSink)
		a.closers = append(a.closers, natsSink.Close)
	}
	a.Sink = append(sinks, extra...)
	return nil
}

func (a *App) emitBatch(b storage.BatchStats) {
	a.Sink.Emit(telemetry.Event{
		Stage: telemetry.StageIngestBatch,
		Kind:  telemetry.KindCompleted,
		Fields: map[string]any{
			"batch":      b.Batch,
			"seen":       b.Seen,
			"inserted":   b.Inserted,
			"duplicates": b.Duplicates,
		},
		Duration: b.Duration,
		At:       time.Now().UTC(),
	})
}

// buildClients creates the language model and embedding provider named by the configuration.
// A language model failure is recorded for Assessor; an embedding failure is fatal.
func (a *App) buildClients(ctx context.Context, needInvoker, needProvider bool) (llm.Invoker, embedding.Provider, error) {
	cfg := a.Config
	defaults := config.Default()

	var openaiClient *llm.OpenAIClient
	var geminiClient *llm.GeminiClient
	openAI := func() (*llm.OpenAIClient, error) {
		if openaiClient != nil {
			return openaiClient, nil
		}
		client, err := llm.NewOpenAIClientWithConfig(&llm.ClientConfig{
			APIKey:         cfg.OpenAIKey,
			BaseURL:        cfg.BaseURL,
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbeddingModel,
			MaxRetries:     cfg.MaxRetries,
			RetryDelay:     cfg.RetryDelay,
			Timeout:        cfg.Timeout,
			Temperature:    float32(cfg.Temperature),
			Logger:         a.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		openaiClient = client
		return client, nil
	}
	gemini := func() (*llm.GeminiClient, error) {
		if geminiClient != nil {
			return geminiClient, nil
		}
		client, err := llm.NewGeminiClient(ctx, &llm.GeminiConfig{
			APIKey:         cfg.GeminiKey,
			ChatModel:      unlessDefault(cfg.ChatModel, defaults.ChatModel),
			EmbeddingModel: unlessDefault(cfg.EmbeddingModel, defaults.EmbeddingModel),
			MaxRetries:     cfg.MaxRetries,
			RetryDelay:     cfg.RetryDelay,
			Timeout:        cfg.Timeout,
			Temperature:    float32(cfg.Temperature),
			Logger:         a.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		geminiClient = client
		a.closers = append(a.closers, client.Close)
		return client, nil
	}

	var provider embedding.Provider
	var err error
	if needProvider {
		switch cfg.EmbeddingProvider {
		case config.ProviderHashing:
			provider = embedding.NewHashing(cfg.HashingDimension)
		case config.ProviderGemini:
			provider, err = gemini()
		default:
			provider, err = openAI()
		}
		if err != nil {
			return nil, nil, fmt.Errorf("embedding provider: %w", err)
		}
	}
	if !needInvoker {
		return nil, provider, nil
	}

	var invoker llm.Invoker
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		invoker, err = gemini()
	default:
		invoker, err = openAI()
	}
	if err != nil {
		a.llmErr = err
		a.Logger.Warn("language model unavailable, assessment disabled", "err", err)
		return nil, provider, nil
	}
	return invoker, provider, nil
}

func (a *App) decorateProvider(provider embedding.Provider) (embedding.Provider, error) {
	if a.Config.EmbedCache == config.CacheCharm {
		client, err := charm.NewClient(&charm.Config{
			Host:     a.Config.CharmHost,
			DBName:   a.Config.CharmDBName,
			AutoSync: true,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		provider = embedding.NewCache(provider, client, a.Logger)
	}
	memo := embedding.NewMemo(provider, embedding.DefaultMemoSize)
	a.closers = append(a.closers, func() error {
		hits, misses := memo.Stats()
		a.Logger.Debug("embedding memo", "hits", hits, "misses", misses)
		return nil
	})
	return memo, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.CorpusBackend {
	case config.BackendPgvector:
		return pgvector.Open(ctx, cfg.PostgresURL, cfg.Collection)
	default:
		return sqlite.OpenCollection(ctx, cfg.CorpusDir, cfg.Collection)
	}
}

func unlessDefault(value, def string) string {
	if value == def {
		return ""
	}
	return value
}
