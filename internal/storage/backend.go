// ABOUTME: Persistence contract implemented by the sqlite and pgvector corpus backends
// ABOUTME: Backends store entries and answer nearest-neighbour queries; the Corpus owns policy
package storage

import (
	"context"
	"time"

	"github.com/harper/actes-verif/internal/models"
)

// Backend persists corpus entries for one collection.
// Nearest returns at most k results ordered by score descending, ties by Seq ascending.
type Backend interface {
	// Space returns the recorded embedding space; ok is false for a new collection
	Space(ctx context.Context) (space models.EmbeddingSpace, ok bool, err error)
	SetSpace(ctx context.Context, space models.EmbeddingSpace) error
	// Append stores entries atomically and assigns their Seq in slice order
	Append(ctx context.Context, entries []models.CorpusEntry) error
	Nearest(ctx context.Context, vector []float64, k int) ([]models.SearchResult, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// SourceRecord is a completed source in the ingest ledger
type SourceRecord struct {
	Source   string    `json:"source"`
	Digest   string    `json:"digest"`
	Entries  int       `json:"entries"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Ledger is implemented by backends that remember which sources finished loading
type Ledger interface {
	SourceDigest(ctx context.Context, source string) (digest string, ok bool, err error)
	MarkSource(ctx context.Context, record SourceRecord) error
	Sources(ctx context.Context) ([]SourceRecord, error)
}
