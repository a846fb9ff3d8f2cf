// ABOUTME: MCP tool handler implementations for the validity assessment server
// ABOUTME: Pipeline failures become tool error results, never low-confidence verdicts
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/actes-verif/internal/core"
	"github.com/harper/actes-verif/internal/models"
)

// Assessor produces a validity verdict for a document
type Assessor interface {
	Assess(ctx context.Context, text string) (*models.Verdict, error)
}

// FormAnalyzer judges the formal conformity of a document
type FormAnalyzer interface {
	Analyze(ctx context.Context, text string) (*models.FormAnalysis, error)
}

// ConceptExtractor extracts legal concepts from a document
type ConceptExtractor interface {
	Extract(ctx context.Context, text string, n int) (models.ConceptSet, error)
}

// Corpus is the read side of the corpus store
type Corpus interface {
	Query(ctx context.Context, text string, k int) ([]models.SearchResult, error)
	Count(ctx context.Context) (int, error)
	Space() (models.EmbeddingSpace, bool)
}

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	deps   Deps
	logger *log.Logger
}

// AssessValidity handles the assess_validity tool
func (h *Handlers) AssessValidity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("texte")
	if err != nil {
		return mcp.NewToolResultError("texte argument is required and must be a string"), nil
	}
	if h.deps.Assessor == nil {
		return mcp.NewToolResultError("assessment unavailable: no language model configured"), nil
	}

	verdict, err := h.deps.Assessor.Assess(ctx, text)
	if err != nil {
		h.logger.Error("assessment failed", "kind", models.ErrorKind(err), "err", err)
		return failure("could not assess", err), nil
	}
	return jsonResult(verdict)
}

// AnalyseForm handles the analyse_form tool
func (h *Handlers) AnalyseForm(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("texte")
	if err != nil {
		return mcp.NewToolResultError("texte argument is required and must be a string"), nil
	}
	if h.deps.FormAnalyzer == nil {
		return mcp.NewToolResultError("form analysis unavailable: no language model configured"), nil
	}

	analysis, err := h.deps.FormAnalyzer.Analyze(ctx, text)
	if err != nil {
		h.logger.Error("form analysis failed", "kind", models.ErrorKind(err), "err", err)
		return failure("could not analyse form", err), nil
	}
	return jsonResult(analysis)
}

// ExtractConcepts handles the extract_concepts tool
func (h *Handlers) ExtractConcepts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("texte")
	if err != nil {
		return mcp.NewToolResultError("texte argument is required and must be a string"), nil
	}
	if h.deps.Extractor == nil {
		return mcp.NewToolResultError("concept extraction unavailable: no language model configured"), nil
	}

	count := h.deps.ConceptCount
	if count <= 0 {
		count = core.DefaultConceptCount
	}
	count = request.GetInt("count", count)
	if count <= 0 {
		return mcp.NewToolResultError("count must be positive"), nil
	}

	concepts, err := h.deps.Extractor.Extract(ctx, text, count)
	if err != nil {
		return failure("could not extract concepts", err), nil
	}
	return jsonResult(concepts)
}

// SearchCorpus handles the search_corpus tool
func (h *Handlers) SearchCorpus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	k := request.GetInt("k", 5)
	if k <= 0 {
		return mcp.NewToolResultError("k must be positive"), nil
	}

	results, err := h.deps.Corpus.Query(ctx, query, k)
	if err != nil {
		return failure("corpus search failed", err), nil
	}
	if results == nil {
		results = []models.SearchResult{}
	}

	passages := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		passages = append(passages, map[string]interface{}{
			"citation": r.Chunk.Citation(),
			"score":    r.Score,
			"content":  r.Chunk.Content,
			"entry_id": r.EntryID,
		})
	}
	return jsonResult(map[string]interface{}{
		"query":    query,
		"passages": passages,
	})
}

// CorpusStats handles the corpus_stats tool
func (h *Handlers) CorpusStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count, err := h.deps.Corpus.Count(ctx)
	if err != nil {
		return failure("corpus unavailable", err), nil
	}

	response := map[string]interface{}{
		"entries": count,
	}
	if space, ok := h.deps.Corpus.Space(); ok {
		response["embedding_model"] = space.Model
		response["dimension"] = space.Dimension
	}
	if h.deps.Ledger != nil {
		sources, err := h.deps.Ledger.Sources(ctx)
		if err != nil {
			return failure("corpus unavailable", err), nil
		}
		response["sources"] = sources
	}
	return jsonResult(response)
}

func failure(prefix string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s (%s): %v", prefix, models.ErrorKind(err), err))
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
