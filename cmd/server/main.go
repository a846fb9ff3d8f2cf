// ABOUTME: Standalone HTTP server for validity assessment, configured from the environment
// ABOUTME: Loads CORPUS_SOURCES at startup, then serves the API until SIGINT or SIGTERM
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/harper/actes-verif/internal/app"
	"github.com/harper/actes-verif/internal/config"
	"github.com/harper/actes-verif/internal/logging"
	"github.com/harper/actes-verif/internal/server"
)

func main() {
	// Load .env file if it exists (for API keys)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", "err", err)
	}
	logger := logging.New(os.Stderr, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	a, err := app.New(ctx, cfg, app.WithLogger(logger))
	if err != nil {
		return err
	}
	defer a.Close()

	if len(cfg.Sources) > 0 {
		report, err := a.Loader.Load(ctx, cfg.Sources)
		logger.Info("corpus loaded",
			"sources", len(report.Sources),
			"inserted", report.Total.Inserted,
			"duplicates", report.Total.Duplicates,
			"unchanged", report.Skipped,
			"failed", report.Failed)
		if err != nil {
			// Sources that did load stay queryable.
			logger.Warn("some sources could not be loaded", "err", err)
		}
	}

	if logger.GetLevel() >= log.InfoLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	srvCfg := server.Config{
		Addr:    cfg.HTTPAddr,
		Corpus:  a.Corpus,
		Metrics: a.Metrics.Handler(),
		Logger:  logger,
	}
	if assessor, err := a.Assessor(); err == nil {
		srvCfg.Assessor = assessor
	} else {
		logger.Warn("assessment endpoint disabled", "err", err)
	}
	if form, err := a.FormAnalyzer(); err == nil {
		srvCfg.FormAnalyzer = form
	}

	return server.New(srvCfg).Run(ctx)
}
