// ABOUTME: Tests for CorpusLoader ingestion, ledger skipping, failure handling and directory watching
// ABOUTME: Uses a map-backed fetcher and a real in-memory SQLite corpus

package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harper/actes-verif/internal/models"
	"github.com/harper/actes-verif/internal/storage"
	"github.com/harper/actes-verif/internal/telemetry"
)

type mapFetcher struct {
	docs  map[string][]models.Document
	fails map[string]error
	calls int
}

func (f *mapFetcher) Fetch(_ context.Context, locator string) ([]models.Document, error) {
	f.calls++
	if err := f.fails[locator]; err != nil {
		return nil, err
	}
	docs, ok := f.docs[locator]
	if !ok {
		return nil, models.NewExtractionError(locator, os.ErrNotExist)
	}
	return docs, nil
}

const cgctExcerpt = `Article L.2212-1
Le maire est chargé, sous le contrôle administratif du représentant de l'État dans le département, de la police municipale.

Article L.2212-2
La police municipale a pour objet d'assurer le bon ordre, la sûreté, la sécurité et la salubrité publiques.

Article L.2213-1
Le maire exerce la police de la circulation sur les routes nationales et départementales à l'intérieur des agglomérations.`

func newTestLoader(t *testing.T, fetcher Fetcher, rec *eventRecorder) (*CorpusLoader, *storage.Corpus) {
	t.Helper()
	corpus, store := newTestCorpus(t)
	var sink telemetry.Sink = telemetry.Nop
	if rec != nil {
		sink = rec
	}
	return NewCorpusLoader(fetcher, NewArticleChunker(120, 20), corpus, store, 0, sink, nil), corpus
}

func TestLoad_IngestsAndIsIdempotent(t *testing.T) {
	fetcher := &mapFetcher{docs: map[string][]models.Document{
		"cgct.txt": {models.NewDocument("cgct.txt", cgctExcerpt)},
	}}
	rec := &eventRecorder{}
	loader, corpus := newTestLoader(t, fetcher, rec)
	ctx := context.Background()

	first, err := loader.Load(ctx, []string{"cgct.txt"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if first.Total.Inserted < 3 || first.Failed != 0 || first.Skipped != 0 {
		t.Errorf("first report = %+v", first)
	}
	count, _ := corpus.Count(ctx)

	second, err := loader.Load(ctx, []string{"cgct.txt"})
	if err != nil {
		t.Fatalf("Load() second error = %v", err)
	}
	again, _ := corpus.Count(ctx)
	if again != count {
		t.Errorf("Count() after reload = %d, want %d", again, count)
	}
	if second.Skipped != 1 || second.Total.Inserted != 0 {
		t.Errorf("second report = %+v, want the unchanged source skipped", second)
	}

	kinds := rec.kinds(telemetry.StageIngestSource)
	if len(kinds) != 2 || kinds[0] != telemetry.KindCompleted || kinds[1] != telemetry.KindSkipped {
		t.Errorf("ingest events = %v", kinds)
	}
}

func TestLoad_ChangedSourceIsReprocessedWithDedupe(t *testing.T) {
	doc := models.NewDocument("cgct.txt", cgctExcerpt)
	fetcher := &mapFetcher{docs: map[string][]models.Document{"cgct.txt": {doc}}}
	loader, corpus := newTestLoader(t, fetcher, nil)
	ctx := context.Background()

	if _, err := loader.Load(ctx, []string{"cgct.txt"}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	before, _ := corpus.Count(ctx)

	extended := cgctExcerpt + "\n\nArticle L.2122-22\nLe maire peut recevoir délégation du conseil municipal pour fixer les tarifs."
	fetcher.docs["cgct.txt"] = []models.Document{models.NewDocument("cgct.txt", extended)}

	report, err := loader.Load(ctx, []string{"cgct.txt"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	after, _ := corpus.Count(ctx)
	if report.Skipped != 0 || report.Total.Duplicates == 0 {
		t.Errorf("report = %+v, want reprocessing with duplicates suppressed", report)
	}
	if after <= before || after > before+2 {
		t.Errorf("Count() went from %d to %d", before, after)
	}
}

func TestLoad_ExtractionFailureDoesNotStopOtherSources(t *testing.T) {
	fetcher := &mapFetcher{
		docs: map[string][]models.Document{
			"cgct.txt": {models.NewDocument("cgct.txt", cgctExcerpt)},
			"vide.txt": {models.NewDocument("vide.txt", "   ")},
		},
		fails: map[string]error{
			"code.pdf": models.NewExtractionError("code.pdf", errors.New("unsupported format")),
		},
	}
	loader, corpus := newTestLoader(t, fetcher, nil)

	report, err := loader.Load(context.Background(), []string{"code.pdf", "vide.txt", "cgct.txt"})
	if !models.IsExtraction(err) {
		t.Fatalf("Load() error = %v, want joined ExtractionError", err)
	}
	if !strings.Contains(err.Error(), "code.pdf") || !strings.Contains(err.Error(), "vide.txt") {
		t.Errorf("error %q should name both failed sources", err)
	}
	if report.Failed != 2 || len(report.Sources) != 3 {
		t.Errorf("report = %+v", report)
	}
	if n, _ := corpus.Count(context.Background()); n == 0 {
		t.Error("healthy source was not loaded")
	}
}

func TestLoad_EmbeddingFailureAborts(t *testing.T) {
	fetcher := &mapFetcher{docs: map[string][]models.Document{
		"a.txt": {models.NewDocument("a.txt", cgctExcerpt)},
		"b.txt": {models.NewDocument("b.txt", cgctExcerpt)},
	}}
	failing := ingesterFunc(func(context.Context, []models.Chunk, float64) (storage.IngestStats, error) {
		return storage.IngestStats{}, models.NewEmbeddingError("batch", errors.New("provider unavailable"))
	})
	loader := NewCorpusLoader(fetcher, NewArticleChunker(0, 0), failing, nil, 0, nil, nil)

	_, err := loader.Load(context.Background(), []string{"a.txt", "b.txt"})
	if !models.IsEmbedding(err) {
		t.Fatalf("Load() error = %v, want EmbeddingError", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetched %d sources, want the run to stop after the first", fetcher.calls)
	}
}

func TestLoad_InterruptedSourceIsRetried(t *testing.T) {
	fetcher := &mapFetcher{docs: map[string][]models.Document{
		"cgct.txt": {models.NewDocument("cgct.txt", cgctExcerpt)},
	}}
	corpus, store := newTestCorpus(t)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	interrupting := ingesterFunc(func(ctx context.Context, chunks []models.Chunk, threshold float64) (storage.IngestStats, error) {
		calls++
		stats, err := corpus.InsertBatch(ctx, chunks[:1], threshold)
		cancel()
		if err != nil {
			return stats, err
		}
		return stats, context.Canceled
	})
	loader := NewCorpusLoader(fetcher, NewArticleChunker(120, 20), interrupting, store, 0, nil, nil)
	if _, err := loader.Load(ctx, []string{"cgct.txt"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load() error = %v, want context.Canceled", err)
	}
	if _, ok, _ := store.SourceDigest(context.Background(), "cgct.txt"); ok {
		t.Fatal("interrupted source was marked complete")
	}

	resumed := NewCorpusLoader(fetcher, NewArticleChunker(120, 20), corpus, store, 0, nil, nil)
	report, err := resumed.Load(context.Background(), []string{"cgct.txt"})
	if err != nil {
		t.Fatalf("Load() resume error = %v", err)
	}
	if report.Total.Duplicates != 1 || report.Skipped != 0 {
		t.Errorf("resume report = %+v, want the stored chunk suppressed", report)
	}
}

type ingesterFunc func(ctx context.Context, chunks []models.Chunk, threshold float64) (storage.IngestStats, error)

func (f ingesterFunc) InsertBatch(ctx context.Context, chunks []models.Chunk, threshold float64) (storage.IngestStats, error) {
	return f(ctx, chunks, threshold)
}

func TestDigest(t *testing.T) {
	if Digest("a") == Digest("b") || Digest("a") != Digest("a") || len(Digest("a")) != 64 {
		t.Error("Digest() is not a stable sha256 hex digest")
	}
}

// fileFetcher reads local files, enough for the watcher test
type fileFetcher struct{}

func (fileFetcher) Fetch(_ context.Context, locator string) ([]models.Document, error) {
	data, err := os.ReadFile(locator)
	if err != nil {
		return nil, models.NewExtractionError(locator, err)
	}
	return []models.Document{models.NewDocument(locator, string(data))}, nil
}

func TestWatch_LoadsNewFiles(t *testing.T) {
	dir := t.TempDir()
	corpus, store := newTestCorpus(t)
	loader := NewCorpusLoader(fileFetcher{}, NewArticleChunker(0, 0), corpus, store, 0, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loaded := make(chan LoadReport, 4)
	done := make(chan error, 1)
	go func() {
		done <- loader.Watch(ctx, dir, WatchOptions{
			Debounce: 50 * time.Millisecond,
			OnLoad:   func(r LoadReport, _ error) { loaded <- r },
		})
	}()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "ignored.bin"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cgct.txt"), []byte(cgctExcerpt), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-loaded:
		if len(r.Sources) != 1 || !strings.HasSuffix(r.Sources[0].Locator, "cgct.txt") {
			t.Errorf("report = %+v, want only cgct.txt", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not load the new file")
	}

	if n, _ := corpus.Count(context.Background()); n == 0 {
		t.Error("corpus is empty after the watched load")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Watch() did not return after cancel")
	}
}
