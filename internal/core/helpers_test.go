// ABOUTME: Shared test doubles for the core pipeline: scripted language model and event recorder
// ABOUTME: Also builds an in-memory corpus backed by SQLite and the hashing embedder
package core

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/harper/actes-verif/internal/embedding"
	"github.com/harper/actes-verif/internal/models"
	"github.com/harper/actes-verif/internal/storage"
	"github.com/harper/actes-verif/internal/storage/sqlite"
	"github.com/harper/actes-verif/internal/telemetry"
)

// scriptedLLM answers prompts with a function and records every prompt
type scriptedLLM struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (s *scriptedLLM) Invoke(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return s.respond(prompt)
}

func (s *scriptedLLM) ChatModel() string { return "stub-model" }

func (s *scriptedLLM) promptsContaining(marker string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, p := range s.prompts {
		if strings.Contains(p, marker) {
			out = append(out, p)
		}
	}
	return out
}

// fixedLLM always returns the same answer
func fixedLLM(answer string) *scriptedLLM {
	return &scriptedLLM{respond: func(string) (string, error) { return answer, nil }}
}

// pipelineLLM routes concept, assessment and strict prompts to separate answers
func pipelineLLM(concepts, verdict, strict string, err error) *scriptedLLM {
	return &scriptedLLM{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "identifie les"):
			return concepts, nil
		case strings.Contains(prompt, "Reformule"):
			return strict, nil
		default:
			if err != nil {
				return "", err
			}
			return verdict, nil
		}
	}}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (r *eventRecorder) Emit(e telemetry.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) kinds(stage string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Stage == stage {
			out = append(out, e.Kind)
		}
	}
	return out
}

func newTestCorpus(t *testing.T) (*storage.Corpus, *sqlite.Store) {
	t.Helper()
	db, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	store, err := sqlite.NewStore(context.Background(), db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	corpus, err := storage.Open(context.Background(), store, embedding.NewHashing(embedding.DefaultHashingDimension), storage.Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = corpus.Close() })
	return corpus, store
}

func seedCorpus(t *testing.T, corpus *storage.Corpus, contents ...string) {
	t.Helper()
	chunks := make([]models.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = models.Chunk{
			ChunkID:    models.ChunkIDFor("cgct", i),
			Source:     "cgct",
			Locator:    "cgct.txt",
			Page:       1,
			Index:      i,
			ArticleRef: FirstArticleRef(c),
			Content:    c,
		}
	}
	if _, err := corpus.InsertBatch(context.Background(), chunks, storage.DefaultDuplicateThreshold); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
}
