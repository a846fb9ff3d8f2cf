// ABOUTME: Centralized configuration for the validity assessment pipeline
// ABOUTME: Defaults, optional YAML file overlay, then environment variables, then validation
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider and backend names accepted by the configuration
const (
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderHashing = "hashing"

	BackendSQLite   = "sqlite"
	BackendPgvector = "pgvector"

	CacheNone  = "none"
	CacheCharm = "charm"
)

// DefaultBaseURL is the OpenAI-compatible Albert API endpoint
const DefaultBaseURL = "https://albert.api.etalab.gouv.fr/v1"

// Config holds all configuration for the pipeline
type Config struct {
	// Language model settings
	LLMProvider string        `yaml:"llm_provider"`
	OpenAIKey   string        `yaml:"-"`
	BaseURL     string        `yaml:"base_url"`
	ChatModel   string        `yaml:"chat_model"`
	GeminiKey   string        `yaml:"-"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Temperature float64       `yaml:"temperature"`

	// Embedding settings
	EmbeddingProvider string `yaml:"embedding_provider"`
	EmbeddingModel    string `yaml:"embedding_model"`
	HashingDimension  int    `yaml:"hashing_dimension"`
	EmbedCache        string `yaml:"embed_cache"`

	// Corpus settings
	CorpusBackend      string  `yaml:"corpus_backend"`
	CorpusDir          string  `yaml:"corpus_dir"`
	Collection         string  `yaml:"collection"`
	PostgresURL        string  `yaml:"-"`
	DuplicateThreshold float64 `yaml:"duplicate_threshold"`
	BatchSize          int     `yaml:"batch_size"`
	ChunkSize          int     `yaml:"chunk_size"`
	ChunkOverlap       int     `yaml:"chunk_overlap"`
	// Sources are loaded by the server at startup
	Sources []string `yaml:"sources"`

	// Assessment settings
	ConceptCount         int  `yaml:"concept_count"`
	ConceptMaxInputChars int  `yaml:"concept_max_input_chars"`
	KPerConcept          int  `yaml:"k_per_concept"`
	MaxEvidence          int  `yaml:"max_evidence"`
	RetrievalConcurrency int  `yaml:"retrieval_concurrency"`
	StrictVerdict        bool `yaml:"strict_verdict"`

	// Charm settings
	CharmHost   string `yaml:"charm_host"`
	CharmDBName string `yaml:"charm_db"`

	// Events and serving
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	HTTPAddr    string `yaml:"http_addr"`

	// Source fetching
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	AWSRegion    string        `yaml:"aws_region"`
	AWSAccessKey string        `yaml:"aws_access_key_id"`
	AWSSecretKey string        `yaml:"aws_secret_access_key"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LLMProvider:          ProviderOpenAI,
		BaseURL:              DefaultBaseURL,
		ChatModel:            "neuralmagic/Meta-Llama-3.1-70B-Instruct-FP8",
		Timeout:              60 * time.Second,
		MaxRetries:           3,
		RetryDelay:           2 * time.Second,
		Temperature:          0.1,
		EmbeddingProvider:    ProviderOpenAI,
		EmbeddingModel:       "BAAI/bge-m3",
		HashingDimension:     4096,
		EmbedCache:           CacheNone,
		CorpusBackend:        BackendSQLite,
		CorpusDir:            DefaultCorpusDir(),
		Collection:           "rag_collection",
		DuplicateThreshold:   0.95,
		BatchSize:            1000,
		ChunkSize:            1000,
		ChunkOverlap:         200,
		ConceptCount:         5,
		ConceptMaxInputChars: 6000,
		KPerConcept:          2,
		MaxEvidence:          10,
		RetrievalConcurrency: 4,
		CharmHost:            "cloud.charm.sh",
		CharmDBName:          "actes-embeddings",
		NATSSubject:          "actes.pipeline",
		LogLevel:             "info",
		LogFormat:            "text",
		HTTPAddr:             ":8080",
		FetchTimeout:         30 * time.Second,
		AWSRegion:            "eu-west-3",
	}
}

// DefaultCorpusDir returns the default corpus directory following the XDG spec
func DefaultCorpusDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".local/share/actes"
		}
		dataHome = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataHome, "actes")
}

// Load reads configuration from the file named by ACTES_CONFIG (if any) and the environment
func Load() (*Config, error) {
	return LoadFile(os.Getenv("ACTES_CONFIG"))
}

// LoadFile overlays a YAML file (when path is non-empty) and then environment variables onto the defaults
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.LLMProvider = getEnv("LLM_PROVIDER", c.LLMProvider)
	c.OpenAIKey = getEnv("OPENAI_API_KEY", getEnv("API_KEY", c.OpenAIKey))
	c.BaseURL = getEnv("OPENAI_BASE_URL", c.BaseURL)
	c.ChatModel = getEnv("ACTES_CHAT_MODEL", c.ChatModel)
	c.GeminiKey = getEnv("GEMINI_API_KEY", c.GeminiKey)
	c.Timeout = getEnvDuration("LLM_TIMEOUT", c.Timeout)
	c.MaxRetries = getEnvInt("OPENAI_MAX_RETRIES", c.MaxRetries)
	c.RetryDelay = getEnvDuration("OPENAI_RETRY_DELAY", c.RetryDelay)
	c.Temperature = getEnvFloat("LLM_TEMPERATURE", c.Temperature)

	c.EmbeddingProvider = getEnv("EMBEDDING_PROVIDER", c.EmbeddingProvider)
	c.EmbeddingModel = getEnv("ACTES_EMBEDDING_MODEL", c.EmbeddingModel)
	c.HashingDimension = getEnvInt("HASHING_DIMENSION", c.HashingDimension)
	c.EmbedCache = getEnv("EMBED_CACHE", c.EmbedCache)

	c.CorpusBackend = getEnv("CORPUS_BACKEND", c.CorpusBackend)
	c.CorpusDir = getEnv("CORPUS_DIR", c.CorpusDir)
	c.Collection = getEnv("CORPUS_COLLECTION", c.Collection)
	c.PostgresURL = getEnv("POSTGRES_URL", c.PostgresURL)
	c.DuplicateThreshold = getEnvFloat("DUPLICATE_THRESHOLD", c.DuplicateThreshold)
	c.BatchSize = getEnvInt("INGEST_BATCH_SIZE", c.BatchSize)
	c.ChunkSize = getEnvInt("CHUNK_SIZE", c.ChunkSize)
	c.ChunkOverlap = getEnvInt("CHUNK_OVERLAP", c.ChunkOverlap)
	c.Sources = getEnvList("CORPUS_SOURCES", c.Sources)

	c.ConceptCount = getEnvInt("CONCEPT_COUNT", c.ConceptCount)
	c.ConceptMaxInputChars = getEnvInt("CONCEPT_MAX_INPUT_CHARS", c.ConceptMaxInputChars)
	c.KPerConcept = getEnvInt("K_PER_CONCEPT", c.KPerConcept)
	c.MaxEvidence = getEnvInt("MAX_EVIDENCE", c.MaxEvidence)
	c.RetrievalConcurrency = getEnvInt("RETRIEVAL_CONCURRENCY", c.RetrievalConcurrency)
	c.StrictVerdict = getEnvBool("STRICT_VERDICT", c.StrictVerdict)

	c.CharmHost = getEnv("CHARM_HOST", c.CharmHost)
	c.CharmDBName = getEnv("CHARM_DB", c.CharmDBName)

	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	c.NATSSubject = getEnv("NATS_SUBJECT", c.NATSSubject)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", c.FetchTimeout)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.AWSAccessKey = getEnv("AWS_ACCESS_KEY_ID", c.AWSAccessKey)
	c.AWSSecretKey = getEnv("AWS_SECRET_ACCESS_KEY", c.AWSSecretKey)
}

func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("LLM_PROVIDER must be openai or gemini, got %q", c.LLMProvider)
	}
	switch c.EmbeddingProvider {
	case ProviderOpenAI, ProviderGemini, ProviderHashing:
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be openai, gemini or hashing, got %q", c.EmbeddingProvider)
	}
	switch c.CorpusBackend {
	case BackendSQLite, BackendPgvector:
	default:
		return fmt.Errorf("CORPUS_BACKEND must be sqlite or pgvector, got %q", c.CorpusBackend)
	}
	switch c.EmbedCache {
	case CacheNone, CacheCharm:
	default:
		return fmt.Errorf("EMBED_CACHE must be none or charm, got %q", c.EmbedCache)
	}
	if c.CorpusBackend == BackendPgvector && c.PostgresURL == "" {
		return errors.New("POSTGRES_URL is required for the pgvector backend")
	}
	if c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1 {
		return fmt.Errorf("DUPLICATE_THRESHOLD must be in (0, 1], got %f", c.DuplicateThreshold)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d (chunk size %d)", c.ChunkOverlap, c.ChunkSize)
	}
	positives := []struct {
		name  string
		value int
	}{
		{"INGEST_BATCH_SIZE", c.BatchSize},
		{"CHUNK_SIZE", c.ChunkSize},
		{"CONCEPT_COUNT", c.ConceptCount},
		{"CONCEPT_MAX_INPUT_CHARS", c.ConceptMaxInputChars},
		{"K_PER_CONCEPT", c.KPerConcept},
		{"MAX_EVIDENCE", c.MaxEvidence},
		{"RETRIEVAL_CONCURRENCY", c.RetrievalConcurrency},
		{"HASHING_DIMENSION", c.HashingDimension},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	if c.Collection == "" {
		return errors.New("CORPUS_COLLECTION must not be empty")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvList splits a comma-separated variable, dropping empty items
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
