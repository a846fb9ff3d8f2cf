// ABOUTME: Benchmark runner that assesses labelled acts against isolated corpora
// ABOUTME: Each scenario gets a fresh collection, loads its reference texts, then scores the verdict

package validity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/harper/actes-verif/internal/app"
	"github.com/harper/actes-verif/internal/config"
)

// BenchmarkRunner executes validity benchmark scenarios
type BenchmarkRunner struct {
	cfg     *config.Config
	opts    []app.Option
	metrics *MetricsCalculator
	verbose bool
	out     io.Writer
}

// NewBenchmarkRunner creates a runner; opts are applied to every per-scenario App
func NewBenchmarkRunner(cfg *config.Config, verbose bool, out io.Writer, opts ...app.Option) *BenchmarkRunner {
	if out == nil {
		out = io.Discard
	}
	return &BenchmarkRunner{
		cfg:     cfg,
		opts:    opts,
		metrics: NewMetricsCalculator(),
		verbose: verbose,
		out:     out,
	}
}

// RunTest executes a single scenario against its own temporary corpus
func (r *BenchmarkRunner) RunTest(ctx context.Context, scenario Scenario) (Result, error) {
	if r.verbose {
		fmt.Fprintf(r.out, "\n========================================\n")
		fmt.Fprintf(r.out, "RUNNING: %s\n", scenario.Name)
		fmt.Fprintf(r.out, "========================================\n")
		fmt.Fprintf(r.out, "Description: %s\n\n", scenario.Description)
	}

	tmpDir, err := os.MkdirTemp("", fmt.Sprintf("actes_bench_%s_", scenario.ID))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	corpusDir := filepath.Join(tmpDir, "corpus")
	if err := writeCorpus(corpusDir, scenario.Corpus); err != nil {
		return Result{}, fmt.Errorf("setup failed: %w", err)
	}

	cfg := *r.cfg
	cfg.CorpusBackend = config.BackendSQLite
	cfg.CorpusDir = filepath.Join(tmpDir, "store")
	cfg.Collection = "bench_" + scenario.ID
	cfg.NATSURL = ""

	a, err := app.New(ctx, &cfg, r.opts...)
	if err != nil {
		return Result{}, fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer a.Close()

	report, err := a.Loader.Load(ctx, []string{corpusDir})
	if err != nil {
		return Result{}, fmt.Errorf("loading corpus failed: %w", err)
	}
	if r.verbose {
		fmt.Fprintf(r.out, "[Setup] %d source(s), %d chunk(s) inserted\n", len(report.Sources), report.Total.Inserted)
	}

	assessor, err := a.Assessor()
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	verdict, err := assessor.Assess(ctx, scenario.Act)
	if err != nil {
		return Result{
			ScenarioID:   scenario.ID,
			ScenarioName: scenario.Name,
			Status:       "FAIL",
			ErrorMessage: err.Error(),
		}, nil
	}

	if r.verbose {
		if verdict.Parsed() {
			fmt.Fprintf(r.out, "[Verdict] confidence %.0f in %s\n", *verdict.Confidence, time.Since(start).Round(time.Millisecond))
		} else {
			fmt.Fprintf(r.out, "[Verdict] unparsed in %s\n", time.Since(start).Round(time.Millisecond))
		}
		fmt.Fprintf(r.out, "[Evidence] %d passage(s), concepts: %v\n", len(verdict.Evidence), verdict.Concepts)
	}

	result := r.metrics.EvaluateScenario(scenario, verdict)
	result.Details["duration_ms"] = time.Since(start).Milliseconds()
	return result, nil
}

// RunAllTests executes every scenario, stopping only on setup failures
func (r *BenchmarkRunner) RunAllTests(ctx context.Context) ([]Result, error) {
	var results []Result
	for _, scenario := range AllScenarios() {
		result, err := r.RunTest(ctx, scenario)
		if err != nil {
			return results, fmt.Errorf("scenario %s: %w", scenario.ID, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// ExportResults writes results as indented JSON to path
func (r *BenchmarkRunner) ExportResults(results []Result, path string) error {
	data, err := json.MarshalIndent(map[string]interface{}{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"results":      results,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	if r.verbose {
		fmt.Fprintf(r.out, "\nResults exported to: %s\n", path)
	}
	return nil
}

func writeCorpus(dir string, docs []CorpusDocument) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, doc := range docs {
		if err := os.WriteFile(filepath.Join(dir, doc.Name), []byte(doc.Content), 0o644); err != nil {
			return err
		}
	}
	return nil
}
