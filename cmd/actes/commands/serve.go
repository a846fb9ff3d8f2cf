// ABOUTME: Serve command runs the HTTP API
// ABOUTME: Exposes /analyser-validite, /recherche, /healthz and /metrics until interrupted
package commands

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/harper/actes-verif/internal/config"
	"github.com/harper/actes-verif/internal/server"
)

var serveAddr string

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assessment pipeline over HTTP",
		Long: `Serve the assessment pipeline over HTTP.

Endpoints:
  POST /analyser-validite  {"texte": "..."}        -> {"analyse": verdict}
  POST /recherche          {"query": "...", "k": 5} -> matching passages
  GET  /healthz                                     -> corpus status
  GET  /metrics                                     -> Prometheus metrics`,
		Example: `  actes serve
  actes serve --addr 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default HTTP_ADDR)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, func(cfg *config.Config) {
		if serveAddr != "" {
			cfg.HTTPAddr = serveAddr
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg := server.Config{
		Addr:    a.Config.HTTPAddr,
		Corpus:  a.Corpus,
		Metrics: a.Metrics.Handler(),
		Logger:  a.Logger,
	}
	if assessor, err := a.Assessor(); err == nil {
		cfg.Assessor = assessor
	} else {
		a.Logger.Warn("assessment endpoint disabled", "err", err)
	}
	if form, err := a.FormAnalyzer(); err == nil {
		cfg.FormAnalyzer = form
	}

	return server.New(cfg).Run(cmd.Context())
}
