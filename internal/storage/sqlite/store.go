// ABOUTME: SQLite corpus backend with an in-memory vector index loaded at open
// ABOUTME: Vectors persist as BLOBs so reopening a collection never re-embeds its chunks
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/harper/actes-verif/internal/embedding"
	"github.com/harper/actes-verif/internal/models"
	"github.com/harper/actes-verif/internal/storage"
)

const (
	metaModel     = "embedding_model"
	metaDimension = "embedding_dimension"
)

type indexed struct {
	result models.SearchResult
	vector []float64
}

// Store implements storage.Backend and storage.Ledger on a SQLite database
type Store struct {
	db *DB

	mu    sync.RWMutex
	index []indexed
}

// NewStore loads every stored entry of db into memory
func NewStore(ctx context.Context, db *DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenCollection opens <dir>/<collection>.db and loads its entries
func OpenCollection(ctx context.Context, dir, collection string) (*Store, error) {
	db, err := Open(CollectionPath(dir, collection))
	if err != nil {
		return nil, err
	}
	s, err := NewStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, chunk_id, source, locator, page, char_offset, chunk_index, article_ref, content, vector
		FROM entries
		ORDER BY seq ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var index []indexed
	for rows.Next() {
		var (
			item       indexed
			locator    sql.NullString
			articleRef sql.NullString
			blob       []byte
		)
		c := &item.result.Chunk
		if err := rows.Scan(&item.result.Seq, &item.result.EntryID, &c.ChunkID, &c.Source, &locator,
			&c.Page, &c.Offset, &c.Index, &articleRef, &c.Content, &blob); err != nil {
			return fmt.Errorf("failed to scan entry: %w", err)
		}
		c.Locator = locator.String
		c.ArticleRef = articleRef.String

		vec, err := embedding.DecodeVector(blob)
		if err != nil {
			return fmt.Errorf("entry %s: %w", item.result.EntryID, err)
		}
		item.vector = vec
		index = append(index, item)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	return nil
}

// Space returns the embedding space recorded for the collection
func (s *Store) Space(ctx context.Context) (models.EmbeddingSpace, bool, error) {
	model, ok, err := s.meta(ctx, metaModel)
	if err != nil || !ok {
		return models.EmbeddingSpace{}, false, err
	}
	dimStr, ok, err := s.meta(ctx, metaDimension)
	if err != nil || !ok {
		return models.EmbeddingSpace{}, false, err
	}
	dim, err := strconv.Atoi(dimStr)
	if err != nil {
		return models.EmbeddingSpace{}, false, fmt.Errorf("invalid stored dimension %q: %w", dimStr, err)
	}
	return models.EmbeddingSpace{Model: model, Dimension: dim}, true, nil
}

// SetSpace records the embedding space of the collection
func (s *Store) SetSpace(ctx context.Context, space models.EmbeddingSpace) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for key, value := range map[string]string{
		metaModel:     space.Model,
		metaDimension: strconv.Itoa(space.Dimension),
	} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func (s *Store) meta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Append stores entries in one transaction and assigns their Seq.
// Vectors must match the recorded embedding space, since BLOB columns carry no dimension.
func (s *Store) Append(ctx context.Context, entries []models.CorpusEntry) error {
	space, ok, err := s.Space(ctx)
	if err != nil {
		return err
	}
	if ok {
		for i := range entries {
			if err := entries[i].ValidateDimension(space.Dimension); err != nil {
				return fmt.Errorf("entry %s: %w", entries[i].ID, err)
			}
		}
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (id, chunk_id, source, locator, page, char_offset, chunk_index, article_ref, content, vector, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for i := range entries {
		e := &entries[i]
		c := e.Chunk
		res, err := stmt.ExecContext(ctx, e.ID, c.ChunkID, c.Source, nullString(c.Locator), c.Page, c.Offset,
			c.Index, nullString(c.ArticleRef), c.Content, embedding.EncodeVector(e.Vector), e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return err
		}
		e.Seq = seq
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.mu.Lock()
	for _, e := range entries {
		s.index = append(s.index, indexed{
			result: models.SearchResult{EntryID: e.ID, Seq: e.Seq, Chunk: e.Chunk},
			vector: e.Vector,
		})
	}
	s.mu.Unlock()
	return nil
}

// Nearest performs brute-force cosine similarity search over the loaded index,
// keeping only the best k results while scanning
func (s *Store) Nearest(ctx context.Context, vector []float64, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	top := make([]models.SearchResult, 0, min(k, len(s.index)))
	for _, item := range s.index {
		score := embedding.CosineSimilarity(vector, item.vector)
		if len(top) == k && score <= top[k-1].Score {
			continue
		}
		// index is in seq order, so a strict comparison keeps earlier entries first on ties
		pos := len(top)
		for pos > 0 && top[pos-1].Score < score {
			pos--
		}
		r := item.result
		r.Score = score
		if len(top) == k {
			top = top[:k-1]
		}
		top = slices.Insert(top, pos, r)
	}
	return top, nil
}

// Count returns the number of stored entries
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n)
	return n, err
}

// SourceDigest returns the digest recorded for a completed source
func (s *Store) SourceDigest(ctx context.Context, source string) (string, bool, error) {
	var digest string
	err := s.db.QueryRowContext(ctx, "SELECT digest FROM sources WHERE source = ?", source).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (source, digest, entries, loaded_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			digest = excluded.digest,
			entries = excluded.entries,
			loaded_at = excluded.loaded_at
	`, record.Source, record.Digest, record.Entries, record.LoadedAt)
	return err
}

// Sources lists the ledger ordered by source
func (s *Store) Sources(ctx context.Context) ([]storage.SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT source, digest, entries, loaded_at FROM sources ORDER BY source ASC")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

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

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
