// ABOUTME: Corpus store facade: embeds chunks, suppresses near-duplicates and answers similarity queries
// ABOUTME: Guards the embedding space and serializes ingestion against concurrent queries
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/harper/actes-verif/internal/embedding"
	"github.com/harper/actes-verif/internal/logging"
	"github.com/harper/actes-verif/internal/models"
)

const (
	// DefaultDuplicateThreshold is the cosine similarity at or above which a chunk is a duplicate
	DefaultDuplicateThreshold = 0.95
	// DefaultBatchSize is the number of chunks embedded and committed together during ingestion
	DefaultBatchSize = 1000
)

// Options configures a Corpus
type Options struct {
	BatchSize int
	Logger    *log.Logger
	// OnBatch is called after each committed ingestion batch
	OnBatch func(BatchStats)
}

// BatchStats describes one committed ingestion batch
type BatchStats struct {
	Batch      int
	Seen       int
	Inserted   int
	Duplicates int
	Duration   time.Duration
}

// IngestStats summarizes an InsertBatch call
type IngestStats struct {
	Seen       int `json:"seen"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Batches    int `json:"batches"`
}

// Add accumulates other into s
func (s *IngestStats) Add(other IngestStats) {
	s.Seen += other.Seen
	s.Inserted += other.Inserted
	s.Duplicates += other.Duplicates
	s.Batches += other.Batches
}

// Corpus is the persistent, queryable set of embedded law chunks
type Corpus struct {
	backend  Backend
	provider embedding.Provider
	opts     Options
	logger   *log.Logger

	// mu makes ingestion exclusive with respect to queries
	mu    sync.RWMutex
	space models.EmbeddingSpace
	known bool
}

// Open binds a backend to an embedding provider, refusing a collection built with another model
func Open(ctx context.Context, backend Backend, provider embedding.Provider, opts Options) (*Corpus, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	space, ok, err := backend.Space(ctx)
	if err != nil {
		return nil, models.NewRetrievalError("open", err)
	}
	if ok && space.Model != provider.Model() {
		return nil, fmt.Errorf("collection built with %s, provider is %s: %w", space, provider.Model(), models.ErrEmbeddingSpaceMismatch)
	}

	return &Corpus{
		backend:  backend,
		provider: provider,
		opts:     opts,
		logger:   logger.With("component", "corpus"),
		space:    space,
		known:    ok,
	}, nil
}

// Space returns the embedding space of the collection; ok is false until the first insert
func (c *Corpus) Space() (models.EmbeddingSpace, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.space, c.known
}

// Insert embeds and stores chunk unconditionally, returning the new entry ID
func (c *Corpus) Insert(ctx context.Context, chunk models.Chunk) (string, error) {
	vec, err := c.embedOne(ctx, "insert", chunk.Content)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.bindSpace(ctx, len(vec)); err != nil {
		return "", err
	}
	entries := []models.CorpusEntry{newEntry(chunk, vec)}
	if err := c.backend.Append(ctx, entries); err != nil {
		return "", models.NewRetrievalError("append", err)
	}
	return entries[0].ID, nil
}

// InsertIfNovel stores chunk only when no existing entry reaches threshold cosine similarity.
// A duplicate returns an empty ID and inserted=false.
func (c *Corpus) InsertIfNovel(ctx context.Context, chunk models.Chunk, threshold float64) (string, bool, error) {
	vec, err := c.embedOne(ctx, "insert", chunk.Content)
	if err != nil {
		return "", false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.bindSpace(ctx, len(vec)); err != nil {
		return "", false, err
	}
	dup, err := c.isStoredDuplicate(ctx, vec, threshold)
	if err != nil {
		return "", false, err
	}
	if dup {
		return "", false, nil
	}

	entries := []models.CorpusEntry{newEntry(chunk, vec)}
	if err := c.backend.Append(ctx, entries); err != nil {
		return "", false, models.NewRetrievalError("append", err)
	}
	return entries[0].ID, true, nil
}

// InsertBatch ingests chunks in fixed-size batches with duplicate suppression.
// Each chunk is compared with the whole stored corpus and with the chunks already accepted
// in its own batch; every batch is committed atomically.
func (c *Corpus) InsertBatch(ctx context.Context, chunks []models.Chunk, threshold float64) (IngestStats, error) {
	var stats IngestStats

	for start := 0; start < len(chunks); start += c.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := min(start+c.opts.BatchSize, len(chunks))
		began := time.Now()

		batch, err := c.insertBatch(ctx, chunks[start:end], threshold)
		if err != nil {
			return stats, fmt.Errorf("batch %d: %w", stats.Batches+1, err)
		}
		stats.Add(batch)

		c.logger.Debug("batch committed", "batch", stats.Batches, "inserted", batch.Inserted, "duplicates", batch.Duplicates)
		if c.opts.OnBatch != nil {
			c.opts.OnBatch(BatchStats{
				Batch:      stats.Batches,
				Seen:       batch.Seen,
				Inserted:   batch.Inserted,
				Duplicates: batch.Duplicates,
				Duration:   time.Since(began),
			})
		}
	}
	return stats, nil
}

func (c *Corpus) insertBatch(ctx context.Context, chunks []models.Chunk, threshold float64) (IngestStats, error) {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := c.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return IngestStats{}, models.NewEmbeddingError("batch", err)
	}
	if len(vectors) != len(chunks) {
		return IngestStats{}, models.NewEmbeddingError("batch", fmt.Errorf("expected %d vectors, got %d", len(chunks), len(vectors)))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stats := IngestStats{Seen: len(chunks), Batches: 1}
	accepted := make([]models.CorpusEntry, 0, len(chunks))

	for i, vec := range vectors {
		if err := c.bindSpace(ctx, len(vec)); err != nil {
			return IngestStats{}, err
		}
		dup, err := c.isStoredDuplicate(ctx, vec, threshold)
		if err != nil {
			return IngestStats{}, err
		}
		if !dup {
			dup = duplicateOfAny(vec, accepted, threshold)
		}
		if dup {
			stats.Duplicates++
			continue
		}
		accepted = append(accepted, newEntry(chunks[i], vec))
	}

	if len(accepted) > 0 {
		if err := c.backend.Append(ctx, accepted); err != nil {
			return IngestStats{}, models.NewRetrievalError("append", err)
		}
	}
	stats.Inserted = len(accepted)
	return stats, nil
}

// Query returns up to k entries most similar to text, by score descending then insertion order
func (c *Corpus) Query(ctx context.Context, text string, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := c.embedOne(ctx, "query", text)
	if err != nil {
		return nil, err
	}
	return c.QueryVector(ctx, vec, k)
}

// QueryVector returns up to k entries most similar to an already embedded query
func (c *Corpus) QueryVector(ctx context.Context, vec []float64, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.known {
		return []models.SearchResult{}, nil
	}
	if len(vec) != c.space.Dimension {
		return nil, fmt.Errorf("query vector has dimension %d, collection has %d: %w", len(vec), c.space.Dimension, models.ErrEmbeddingSpaceMismatch)
	}

	results, err := c.backend.Nearest(ctx, vec, k)
	if err != nil {
		return nil, models.NewRetrievalError("nearest", err)
	}
	return results, nil
}

// Count returns the number of stored entries
func (c *Corpus) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, err := c.backend.Count(ctx)
	if err != nil {
		return 0, models.NewRetrievalError("count", err)
	}
	return n, nil
}

// Close closes the backend
func (c *Corpus) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Close()
}

func (c *Corpus) embedOne(ctx context.Context, op, text string) ([]float64, error) {
	vec, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, models.NewEmbeddingError(op, err)
	}
	if len(vec) == 0 {
		return nil, models.NewEmbeddingError(op, errors.New("provider returned an empty vector"))
	}
	return vec, nil
}

// bindSpace records the embedding space on first insert and checks it afterwards. Callers hold mu.
func (c *Corpus) bindSpace(ctx context.Context, dimension int) error {
	space := models.EmbeddingSpace{Model: c.provider.Model(), Dimension: dimension}
	if c.known {
		if !c.space.Compatible(space) {
			return fmt.Errorf("vector space %s, collection has %s: %w", space, c.space, models.ErrEmbeddingSpaceMismatch)
		}
		return nil
	}

	if err := c.backend.SetSpace(ctx, space); err != nil {
		return models.NewRetrievalError("set space", err)
	}
	c.space = space
	c.known = true
	c.logger.Info("collection bound to embedding space", "space", space.String())
	return nil
}

// isStoredDuplicate checks vec against the nearest stored entry. Callers hold mu.
func (c *Corpus) isStoredDuplicate(ctx context.Context, vec []float64, threshold float64) (bool, error) {
	nearest, err := c.backend.Nearest(ctx, vec, 1)
	if err != nil {
		return false, models.NewRetrievalError("nearest", err)
	}
	return len(nearest) > 0 && IsDuplicate(nearest[0].Score, threshold), nil
}

// IsDuplicate applies the duplicate policy: similarity at or above threshold is a duplicate
func IsDuplicate(similarity, threshold float64) bool {
	return similarity >= threshold
}

func duplicateOfAny(vec []float64, accepted []models.CorpusEntry, threshold float64) bool {
	for _, e := range accepted {
		if IsDuplicate(embedding.CosineSimilarity(vec, e.Vector), threshold) {
			return true
		}
	}
	return false
}

func newEntry(chunk models.Chunk, vec []float64) models.CorpusEntry {
	return models.CorpusEntry{
		ID:        uuid.New().String(),
		Chunk:     chunk,
		Vector:    vec,
		CreatedAt: time.Now().UTC(),
	}
}
