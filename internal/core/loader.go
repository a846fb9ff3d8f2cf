// ABOUTME: CorpusLoader fetches reference legal texts, chunks them and ingests them into the corpus
// ABOUTME: Re-runs are cheap: unchanged completed sources are skipped and duplicates suppressed
package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/actes-verif/internal/logging"
	"github.com/harper/actes-verif/internal/models"
	"github.com/harper/actes-verif/internal/storage"
	"github.com/harper/actes-verif/internal/telemetry"
)

// Fetcher resolves a locator into documents
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]models.Document, error)
}

// Ingester stores chunks with duplicate suppression
type Ingester interface {
	InsertBatch(ctx context.Context, chunks []models.Chunk, threshold float64) (storage.IngestStats, error)
}

// SourceReport is the outcome of loading one document
type SourceReport struct {
	Locator string              `json:"locator"`
	Chunks  int                 `json:"chunks"`
	Stats   storage.IngestStats `json:"stats"`
	Skipped bool                `json:"skipped,omitempty"`
	Err     string              `json:"error,omitempty"`
}

// LoadReport summarizes a Load call
type LoadReport struct {
	Sources []SourceReport      `json:"sources"`
	Total   storage.IngestStats `json:"total"`
	Skipped int                 `json:"skipped"`
	Failed  int                 `json:"failed"`
}

// CorpusLoader populates the corpus from source locators
type CorpusLoader struct {
	fetcher   Fetcher
	chunker   *ArticleChunker
	corpus    Ingester
	ledger    storage.Ledger
	threshold float64
	sink      telemetry.Sink
	logger    *log.Logger
}

// NewCorpusLoader creates a loader; ledger may be nil, disabling skip of unchanged sources
func NewCorpusLoader(fetcher Fetcher, chunker *ArticleChunker, corpus Ingester, ledger storage.Ledger, threshold float64, sink telemetry.Sink, logger *log.Logger) *CorpusLoader {
	if threshold <= 0 {
		threshold = storage.DefaultDuplicateThreshold
	}
	if sink == nil {
		sink = telemetry.Nop
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &CorpusLoader{
		fetcher:   fetcher,
		chunker:   chunker,
		corpus:    corpus,
		ledger:    ledger,
		threshold: threshold,
		sink:      sink,
		logger:    logger.With("component", "loader"),
	}
}

// Load ingests every document behind locators. Extraction failures are reported per source
// and joined into the returned error; embedding and storage failures abort the run.
func (l *CorpusLoader) Load(ctx context.Context, locators []string) (LoadReport, error) {
	var report LoadReport
	var failures []error

	for _, loc := range locators {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		docs, err := l.fetcher.Fetch(ctx, loc)
		if err != nil {
			if !recoverable(err) {
				return report, err
			}
			l.logger.Warn("source skipped", "locator", loc, "err", err)
			report.Sources = append(report.Sources, SourceReport{Locator: loc, Err: err.Error()})
			report.Failed++
			failures = append(failures, err)
			continue
		}

		for _, doc := range docs {
			sr, err := l.loadDocument(ctx, doc)
			if err != nil {
				if !recoverable(err) {
					return report, fmt.Errorf("%s: %w", doc.Locator, err)
				}
				sr.Err = err.Error()
				report.Failed++
				failures = append(failures, fmt.Errorf("%s: %w", doc.Locator, err))
			}
			report.Sources = append(report.Sources, sr)
			report.Total.Add(sr.Stats)
			if sr.Skipped {
				report.Skipped++
			}
		}
	}
	return report, errors.Join(failures...)
}

func (l *CorpusLoader) loadDocument(ctx context.Context, doc models.Document) (SourceReport, error) {
	start := time.Now()
	sr := SourceReport{Locator: doc.Locator}
	digest := Digest(doc.Content)

	if l.ledger != nil {
		prev, ok, err := l.ledger.SourceDigest(ctx, doc.Locator)
		if err != nil {
			return sr, models.NewRetrievalError("ledger", err)
		}
		if ok && prev == digest {
			sr.Skipped = true
			l.logger.Debug("source unchanged", "locator", doc.Locator)
			l.sink.Emit(telemetry.Event{Stage: telemetry.StageIngestSource, Kind: telemetry.KindSkipped,
				Fields: map[string]any{"locator": doc.Locator}, Duration: time.Since(start), At: time.Now().UTC()})
			return sr, nil
		}
	}

	chunks, err := l.chunker.Chunk(doc)
	if err != nil {
		if errors.Is(err, models.ErrEmptyDocument) {
			err = models.NewExtractionError(doc.Locator, err)
		}
		l.sink.Emit(telemetry.Failed(telemetry.StageIngestSource, start, err, map[string]any{"locator": doc.Locator}))
		return sr, err
	}
	sr.Chunks = len(chunks)

	stats, err := l.corpus.InsertBatch(ctx, chunks, l.threshold)
	sr.Stats = stats
	if err != nil {
		l.sink.Emit(telemetry.Failed(telemetry.StageIngestSource, start, err, map[string]any{"locator": doc.Locator}))
		return sr, err
	}

	if l.ledger != nil {
		if err := l.ledger.MarkSource(ctx, storage.SourceRecord{
			Source:  doc.Locator,
			Digest:  digest,
			Entries: stats.Inserted,
		}); err != nil {
			return sr, models.NewRetrievalError("ledger", err)
		}
	}

	l.logger.Info("source loaded", "locator", doc.Locator, "chunks", len(chunks),
		"inserted", stats.Inserted, "duplicates", stats.Duplicates)
	l.sink.Emit(telemetry.Completed(telemetry.StageIngestSource, start, map[string]any{
		"locator":    doc.Locator,
		"chunks":     len(chunks),
		"inserted":   stats.Inserted,
		"duplicates": stats.Duplicates,
	}))
	return sr, nil
}

// Digest identifies the content of a source in the ingest ledger
func Digest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func recoverable(err error) bool {
	return models.IsExtraction(err)
}
