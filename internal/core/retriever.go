// ABOUTME: EvidenceRetriever queries the corpus once per concept with bounded concurrency
// ABOUTME: Results are assembled concept-major so evidence order never depends on scheduling
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harper/actes-verif/internal/models"
	"github.com/harper/actes-verif/internal/telemetry"
)

const (
	// DefaultKPerConcept is the number of passages retrieved per concept
	DefaultKPerConcept = 2
	// DefaultMaxEvidence caps the passages included in the assessment prompt
	DefaultMaxEvidence = 10
	// DefaultRetrievalConcurrency bounds the in-flight corpus queries of one request
	DefaultRetrievalConcurrency = 4
)

// Searcher answers similarity queries over the corpus
type Searcher interface {
	Query(ctx context.Context, text string, k int) ([]models.SearchResult, error)
}

// EvidenceRetriever gathers corpus passages for a set of concepts
type EvidenceRetriever struct {
	corpus      Searcher
	concurrency int
	sink        telemetry.Sink
}

// NewEvidenceRetriever creates a retriever; concurrency <= 0 selects the default
func NewEvidenceRetriever(corpus Searcher, concurrency int, sink telemetry.Sink) *EvidenceRetriever {
	if concurrency <= 0 {
		concurrency = DefaultRetrievalConcurrency
	}
	if sink == nil {
		sink = telemetry.Nop
	}
	return &EvidenceRetriever{corpus: corpus, concurrency: concurrency, sink: sink}
}

// Retrieve returns up to k passages per concept, concept-major and score-ordered within a concept.
// Concepts repeated in the same call (ignoring case) are queried once.
func (er *EvidenceRetriever) Retrieve(ctx context.Context, concepts []string, k int) ([]models.Passage, error) {
	if k <= 0 {
		k = DefaultKPerConcept
	}
	start := time.Now()

	// unique concepts keyed by their folded form, in first-seen order
	keys := make([]string, len(concepts))
	var unique []string
	slot := map[string]int{}
	for i, c := range concepts {
		key := strings.ToLower(strings.TrimSpace(c))
		keys[i] = key
		if _, ok := slot[key]; !ok {
			slot[key] = len(unique)
			unique = append(unique, c)
		}
	}

	results := make([][]models.SearchResult, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(er.concurrency)
	for i, concept := range unique {
		g.Go(func() error {
			found, err := er.corpus.Query(gctx, concept, k)
			if err != nil {
				return fmt.Errorf("concept %q: %w", concept, err)
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		er.sink.Emit(telemetry.Failed(telemetry.StageRetrieval, start, err, map[string]any{"concepts": len(unique)}))
		return nil, err
	}

	var passages []models.Passage
	for i, c := range concepts {
		for _, r := range results[slot[keys[i]]] {
			passages = append(passages, models.Passage{SearchResult: r, Concept: c})
		}
	}

	er.sink.Emit(telemetry.Completed(telemetry.StageRetrieval, start, map[string]any{
		"concepts": len(concepts),
		"queries":  len(unique),
		"passages": len(passages),
	}))
	return passages, nil
}

// LimitPassages keeps the first max passages
func LimitPassages(passages []models.Passage, max int) []models.Passage {
	if max <= 0 || len(passages) <= max {
		return passages
	}
	return passages[:max]
}

// DedupePassages drops passages whose entry already appeared earlier in the list
func DedupePassages(passages []models.Passage) []models.Passage {
	seen := make(map[string]struct{}, len(passages))
	out := make([]models.Passage, 0, len(passages))
	for _, p := range passages {
		if _, ok := seen[p.EntryID]; ok {
			continue
		}
		seen[p.EntryID] = struct{}{}
		out = append(out, p)
	}
	return out
}
