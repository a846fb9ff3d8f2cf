// ABOUTME: HTTP handlers for /analyser-validite, /analyser, /recherche and /healthz
// ABOUTME: Request and response bodies keep the French field names of the public API
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harper/actes-verif/internal/models"
)

// AssessRequest is the body of POST /analyser-validite
type AssessRequest struct {
	Texte string `json:"texte" binding:"required"`
}

// AssessResponse is the success body of POST /analyser-validite
type AssessResponse struct {
	Analyse *models.Verdict `json:"analyse"`
}

// FormResponse is the success body of POST /analyser
type FormResponse struct {
	Analyse *models.FormAnalysis `json:"analyse"`
}

// SearchRequest is the body of POST /recherche
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	K     int    `json:"k"`
}

// SearchHit is one passage returned by POST /recherche
type SearchHit struct {
	Citation   string  `json:"citation"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	ArticleRef string  `json:"article_ref,omitempty"`
	Page       int     `json:"page"`
}

// SearchResponse is the success body of POST /recherche
type SearchResponse struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

func (s *Server) handleAssess(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if s.cfg.Assessor == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", "no language model configured")
		return
	}

	verdict, err := s.cfg.Assessor.Assess(c.Request.Context(), req.Texte)
	if err != nil {
		s.logger.Error("assessment failed", "kind", models.ErrorKind(err), "err", err)
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, AssessResponse{Analyse: verdict})
}

func (s *Server) handleForm(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if s.cfg.FormAnalyzer == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", "no language model configured")
		return
	}

	analysis, err := s.cfg.FormAnalyzer.Analyze(c.Request.Context(), req.Texte)
	if err != nil {
		s.logger.Error("form analysis failed", "kind", models.ErrorKind(err), "err", err)
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, FormResponse{Analyse: analysis})
}

func (s *Server) handleSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	switch {
	case req.K == 0:
		req.K = DefaultSearchK
	case req.K < 0 || req.K > MaxSearchK:
		writeError(c, http.StatusBadRequest, "invalid_request", "k must be between 1 and 50")
		return
	}

	results, err := s.cfg.Corpus.Query(c.Request.Context(), req.Query, req.K)
	if err != nil {
		writePipelineError(c, err)
		return
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, SearchHit{
			Citation:   r.Chunk.Citation(),
			Score:      r.Score,
			Content:    r.Chunk.Content,
			Source:     r.Chunk.Source,
			ArticleRef: r.Chunk.ArticleRef,
			Page:       r.Chunk.Page,
		})
	}
	c.JSON(http.StatusOK, SearchResponse{Query: req.Query, Results: hits})
}

func (s *Server) handleHealth(c *gin.Context) {
	count, err := s.cfg.Corpus.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"entries":    count,
		"assessment": s.cfg.Assessor != nil,
		"form":       s.cfg.FormAnalyzer != nil,
	})
}
