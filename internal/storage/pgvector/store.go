// ABOUTME: Postgres corpus backend using the pgvector extension for nearest-neighbour search
// ABOUTME: Entries of every collection share one table and are keyed by collection name
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harper/actes-verif/internal/models"
	"github.com/harper/actes-verif/internal/storage"
)

// Schema creates the pgvector tables; safe to run on every open
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS actes_meta (
	collection TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (collection, key)
);

CREATE TABLE IF NOT EXISTS actes_entries (
	seq BIGSERIAL PRIMARY KEY,
	id UUID NOT NULL UNIQUE,
	collection TEXT NOT NULL,
	chunk_id TEXT NOT NULL,
	source TEXT NOT NULL,
	locator TEXT,
	page INTEGER NOT NULL DEFAULT 1,
	char_offset INTEGER NOT NULL DEFAULT 0,
	chunk_index INTEGER NOT NULL DEFAULT 0,
	article_ref TEXT,
	content TEXT NOT NULL,
	embedding vector NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_actes_entries_collection ON actes_entries(collection);

CREATE TABLE IF NOT EXISTS actes_sources (
	collection TEXT NOT NULL,
	source TEXT NOT NULL,
	digest TEXT NOT NULL,
	entries INTEGER NOT NULL,
	loaded_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (collection, source)
);
`

// Store implements storage.Backend and storage.Ledger on Postgres
type Store struct {
	pool       *pgxpool.Pool
	collection string
}

// Open connects to Postgres, creates the schema and binds the store to one collection
func Open(ctx context.Context, connString, collection string) (*Store, error) {
	if connString == "" {
		return nil, errors.New("postgres connection string is required")
	}
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{pool: pool, collection: collection}, nil
}

// Space returns the embedding space recorded for the collection
func (s *Store) Space(ctx context.Context) (models.EmbeddingSpace, bool, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT key, value FROM actes_meta WHERE collection = $1 AND key IN ('embedding_model', 'embedding_dimension')",
		s.collection)
	if err != nil {
		return models.EmbeddingSpace{}, false, fmt.Errorf("failed to read collection meta: %w", err)
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.EmbeddingSpace{}, false, err
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return models.EmbeddingSpace{}, false, err
	}

	model, okModel := values["embedding_model"]
	dimStr, okDim := values["embedding_dimension"]
	if !okModel || !okDim {
		return models.EmbeddingSpace{}, false, nil
	}
	dim, err := strconv.Atoi(dimStr)
	if err != nil {
		return models.EmbeddingSpace{}, false, fmt.Errorf("invalid stored dimension %q: %w", dimStr, err)
	}
	return models.EmbeddingSpace{Model: model, Dimension: dim}, true, nil
}

// SetSpace records the embedding space of the collection
func (s *Store) SetSpace(ctx context.Context, space models.EmbeddingSpace) error {
	batch := &pgx.Batch{}
	for key, value := range map[string]string{
		"embedding_model":     space.Model,
		"embedding_dimension": strconv.Itoa(space.Dimension),
	} {
		batch.Queue(`
			INSERT INTO actes_meta (collection, key, value) VALUES ($1, $2, $3)
			ON CONFLICT (collection, key) DO UPDATE SET value = EXCLUDED.value`,
			s.collection, key, value)
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

// Append stores entries in one transaction and assigns their Seq
func (s *Store) Append(ctx context.Context, entries []models.CorpusEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range entries {
		e := &entries[i]
		c := e.Chunk
		err := tx.QueryRow(ctx, `
			INSERT INTO actes_entries
				(id, collection, chunk_id, source, locator, page, char_offset, chunk_index, article_ref, content, embedding, created_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, NULLIF($9, ''), $10, $11::vector, $12)
			RETURNING seq`,
			e.ID, s.collection, c.ChunkID, c.Source, c.Locator, c.Page, c.Offset, c.Index, c.ArticleRef,
			c.Content, formatVector(e.Vector), e.CreatedAt,
		).Scan(&e.Seq)
		if err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// Nearest orders by cosine distance; score is 1 - distance
func (s *Store) Nearest(ctx context.Context, vector []float64, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
			id::text, seq, chunk_id, source, COALESCE(locator, ''), page, char_offset, chunk_index,
			COALESCE(article_ref, ''), content,
			embedding <=> $1::vector AS distance
		FROM actes_entries
		WHERE collection = $2
		ORDER BY distance ASC, seq ASC
		LIMIT $3`,
		formatVector(vector), s.collection, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	results := []models.SearchResult{}
	for rows.Next() {
		var (
			r        models.SearchResult
			distance float64
		)
		c := &r.Chunk
		if err := rows.Scan(&r.EntryID, &r.Seq, &c.ChunkID, &c.Source, &c.Locator, &c.Page, &c.Offset,
			&c.Index, &c.ArticleRef, &c.Content, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		r.Score = 1 - distance
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return results, nil
}

// Count returns the number of entries in the collection
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM actes_entries WHERE collection = $1", s.collection).Scan(&n)
	return n, err
}

// SourceDigest returns the digest recorded for a completed source
func (s *Store) SourceDigest(ctx context.Context, source string) (string, bool, error) {
	var digest string
	err := s.pool.QueryRow(ctx,
		"SELECT digest FROM actes_sources WHERE collection = $1 AND source = $2",
		s.collection, source).Scan(&digest)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return digest, true, nil
}

// MarkSource records a completed source in the ledger
func (s *Store) MarkSource(ctx context.Context, record storage.SourceRecord) error {
	if record.LoadedAt.IsZero() {
		record.LoadedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO actes_sources (collection, source, digest, entries, loaded_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection, source) DO UPDATE SET
			digest = EXCLUDED.digest,
			entries = EXCLUDED.entries,
			loaded_at = EXCLUDED.loaded_at`,
		s.collection, record.Source, record.Digest, record.Entries, record.LoadedAt)
	return err
}

// Sources lists the ledger ordered by source
func (s *Store) Sources(ctx context.Context) ([]storage.SourceRecord, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT source, digest, entries, loaded_at FROM actes_sources WHERE collection = $1 ORDER BY source ASC",
		s.collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []storage.SourceRecord
	for rows.Next() {
		var r storage.SourceRecord
		if err := rows.Scan(&r.Source, &r.Digest, &r.Entries, &r.LoadedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the connection pool
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// formatVector renders a vector in pgvector's text input format
func formatVector(vec []float64) string {
	if len(vec) == 0 {
		return "[]"
	}
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
