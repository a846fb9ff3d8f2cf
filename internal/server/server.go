// ABOUTME: gin HTTP server exposing validity and form analysis, corpus search, health and metrics
// ABOUTME: Maps pipeline error kinds onto HTTP status codes with a {"error","kind"} body
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/harper/actes-verif/internal/logging"
	"github.com/harper/actes-verif/internal/models"
)

const (
	// DefaultSearchK is the number of passages /recherche returns when k is omitted
	DefaultSearchK = 5
	// MaxSearchK caps k on /recherche
	MaxSearchK = 50
	// DefaultMaxBodyBytes caps request bodies
	DefaultMaxBodyBytes = 4 << 20

	shutdownTimeout = 10 * time.Second
)

// Assessor produces a validity verdict for a document
type Assessor interface {
	Assess(ctx context.Context, text string) (*models.Verdict, error)
}

// FormAnalyzer judges the formal conformity of a document
type FormAnalyzer interface {
	Analyze(ctx context.Context, text string) (*models.FormAnalysis, error)
}

// Corpus is the read side of the corpus store
type Corpus interface {
	Query(ctx context.Context, text string, k int) ([]models.SearchResult, error)
	Count(ctx context.Context) (int, error)
}

// Config wires the server to the pipeline.
// A nil Assessor makes /analyser-validite answer 503, a nil FormAnalyzer does the same
// for /analyser, and a nil Metrics disables /metrics.
type Config struct {
	Addr         string
	Assessor     Assessor
	FormAnalyzer FormAnalyzer
	Corpus       Corpus
	Metrics      http.Handler
	Logger       *log.Logger
	MaxBodyBytes int64
}

// Server is the HTTP front end of the pipeline
type Server struct {
	cfg    Config
	engine *gin.Engine
	logger *log.Logger
}

// New builds the router
func New(cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{cfg: cfg, engine: gin.New(), logger: logger.With("component", "http")}

	s.engine.Use(gin.Recovery(), s.requestLogger(), s.limitBody())
	s.engine.POST("/analyser-validite", s.handleAssess)
	s.engine.POST("/analyser", s.handleForm)
	s.engine.POST("/recherche", s.handleSearch)
	s.engine.GET("/healthz", s.handleHealth)
	if cfg.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(cfg.Metrics))
	}
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
		}
		c.Next()
	}
}

// StatusFor maps a pipeline error to its HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrEmptyDocument):
		return http.StatusBadRequest
	case models.IsAssessment(err), models.IsEmbedding(err):
		return http.StatusBadGateway
	case models.IsRetrieval(err), errors.Is(err, models.ErrEmbeddingSpaceMismatch):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": message,
		"kind":  kind,
	})
}

func writePipelineError(c *gin.Context, err error) {
	kind := models.ErrorKind(err)
	if errors.Is(err, models.ErrEmptyDocument) {
		kind = "empty_document"
	}
	writeError(c, StatusFor(err), kind, err.Error())
}
