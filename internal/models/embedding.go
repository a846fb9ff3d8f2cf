// ABOUTME: Corpus entries, embedding space identity, and vector search results
// ABOUTME: Defines CorpusEntry, EmbeddingSpace and SearchResult structures
package models

import (
	"errors"
	"fmt"
	"time"
)

// EmbeddingSpace identifies the provider configuration that produced a set of vectors
type EmbeddingSpace struct {
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// String renders the space as model/dimension
func (s EmbeddingSpace) String() string {
	return fmt.Sprintf("%s/%d", s.Model, s.Dimension)
}

// Compatible reports whether vectors from other can be compared with vectors from s
func (s EmbeddingSpace) Compatible(other EmbeddingSpace) bool {
	return s.Model == other.Model && s.Dimension == other.Dimension
}

// CorpusEntry is one stored chunk with its embedding vector
type CorpusEntry struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Chunk     Chunk     `json:"chunk"`
	Vector    []float64 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateDimension checks the entry vector against the expected dimension
func (e *CorpusEntry) ValidateDimension(expected int) error {
	if len(e.Vector) == 0 {
		return errors.New("embedding vector cannot be empty")
	}
	if len(e.Vector) != expected {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", expected, len(e.Vector))
	}
	return nil
}

// SearchResult is a corpus entry matched by a query, with its similarity score
type SearchResult struct {
	EntryID string  `json:"entry_id"`
	Seq     int64   `json:"seq"`
	Chunk   Chunk   `json:"chunk"`
	Score   float64 `json:"score"`
}
