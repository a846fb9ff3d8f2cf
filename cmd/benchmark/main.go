// ABOUTME: Command-line benchmark runner for validity assessment scenarios
// ABOUTME: Executes labelled scenarios against the configured language model and outputs JSON results

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/harper/actes-verif/benchmarks/validity"
	"github.com/harper/actes-verif/internal/app"
	"github.com/harper/actes-verif/internal/config"
	"github.com/harper/actes-verif/internal/logging"
)

func main() {
	testID := flag.String("test", "", "Run specific scenario (1a, 1b, 2a). If empty, runs all scenarios.")
	outputPath := flag.String("output", "benchmark_results.json", "Output path for JSON results")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", "err", err)
	}

	level := "error"
	if *verbose {
		level = "info"
	}
	logger := logging.New(os.Stderr, logging.Options{Level: level, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("========================================")
	fmt.Println("Actes Validity Benchmarks")
	fmt.Println("========================================")
	fmt.Println()

	runner := validity.NewBenchmarkRunner(cfg, *verbose, os.Stdout, app.WithLogger(logger))

	var results []validity.Result
	if *testID == "" {
		fmt.Println("Running all benchmark scenarios...")
		fmt.Println()

		results, err = runner.RunAllTests(ctx)
		if err != nil {
			log.Fatal("benchmark failed", "err", err)
		}
	} else {
		scenario, ok := validity.ScenarioByID(*testID)
		if !ok {
			log.Fatal("unknown scenario ID (valid options: 1a, 1b, 2a)", "id", *testID)
		}

		fmt.Printf("Running scenario: %s\n\n", scenario.Name)

		result, err := runner.RunTest(ctx, scenario)
		if err != nil {
			log.Fatal("scenario failed", "err", err)
		}
		results = []validity.Result{result}
	}

	fmt.Println("\n========================================")
	fmt.Println("BENCHMARK SUMMARY")
	fmt.Println("========================================")

	passed, failed := 0, 0
	for _, result := range results {
		fmt.Printf("\n%s: %s\n", result.ScenarioID, result.ScenarioName)
		if result.ErrorMessage != "" {
			fmt.Printf("  Error: %s\n", result.ErrorMessage)
		} else {
			fmt.Printf("  Confidence agreement: %.2f\n", result.ConfidenceScore)
			fmt.Printf("  Context recall: %.2f\n", result.ContextRecallScore)
			fmt.Printf("  Faithfulness: %.2f\n", result.FaithfulnessScore)
			fmt.Printf("  Overall: %.2f\n", result.OverallScore)
		}
		fmt.Printf("  Status: %s\n", result.Status)

		if result.Status == "PASS" {
			passed++
		} else {
			failed++
		}
	}

	fmt.Println("\n========================================")
	fmt.Printf("Total Scenarios: %d\n", len(results))
	fmt.Printf("Passed: %d\n", passed)
	fmt.Printf("Failed: %d\n", failed)
	fmt.Println("========================================")

	if err := runner.ExportResults(results, *outputPath); err != nil {
		log.Fatal("failed to export results", "err", err)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
