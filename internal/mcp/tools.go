// ABOUTME: MCP tool definitions and registration for the validity assessment server
// ABOUTME: Exposes assess_validity, analyse_form, extract_concepts, search_corpus and corpus_stats
package mcp

import (
	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/actes-verif/internal/logging"
	"github.com/harper/actes-verif/internal/storage"
)

// Deps are the pipeline components the tools call.
// Assessor, FormAnalyzer and Extractor may be nil when no language model is configured.
type Deps struct {
	Assessor     Assessor
	FormAnalyzer FormAnalyzer
	Extractor    ConceptExtractor
	Corpus       Corpus
	Ledger       storage.Ledger
	ConceptCount int
	Logger       *log.Logger
}

// NewServer creates an MCP server with every tool registered
func NewServer(version string, deps Deps) (*mcpserver.MCPServer, *Handlers) {
	server := mcpserver.NewMCPServer("Actes Verif", version)
	return server, RegisterTools(server, deps)
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, deps Deps) *Handlers {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	handlers := &Handlers{deps: deps, logger: deps.Logger.With("component", "mcp")}

	server.AddTool(mcp.Tool{
		Name:        "assess_validity",
		Description: "Assess the legal validity of a French municipal administrative act (arrêté, délibération) against the reference legal corpus. Returns a confidence index from 0 to 100 with the analysis sections and the cited evidence.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"texte": map[string]interface{}{
					"type":        "string",
					"description": "Full text of the administrative act",
				},
			},
			Required: []string{"texte"},
		},
	}, handlers.AssessValidity)

	server.AddTool(mcp.Tool{
		Name:        "analyse_form",
		Description: "Check the formal conformity of a French municipal administrative act: document type, and for writing, date, signature, visas, recitals (considérants), operative part (dispositif), publication and transmission a state of conforme, non conforme or implicite with its justification. Also names the issuing authority and the signatory.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"texte": map[string]interface{}{
					"type":        "string",
					"description": "Full text of the administrative act",
				},
			},
			Required: []string{"texte"},
		},
	}, handlers.AnalyseForm)

	server.AddTool(mcp.Tool{
		Name:        "extract_concepts",
		Description: "Extract the key legal concepts of an administrative act, as used to query the legal corpus.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"texte": map[string]interface{}{
					"type":        "string",
					"description": "Text of the administrative act",
				},
				"count": map[string]interface{}{
					"type":        "number",
					"description": "Number of concepts to extract (default: 5)",
					"default":     5,
				},
			},
			Required: []string{"texte"},
		},
	}, handlers.ExtractConcepts)

	server.AddTool(mcp.Tool{
		Name:        "search_corpus",
		Description: "Semantic search over the reference legal corpus. Returns the closest law passages with their citation and similarity score.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query, e.g. 'pouvoirs de police du maire'",
				},
				"k": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of passages to return (default: 5)",
					"default":     5,
				},
			},
			Required: []string{"query"},
		},
	}, handlers.SearchCorpus)

	server.AddTool(mcp.Tool{
		Name:        "corpus_stats",
		Description: "Report the size, embedding space and loaded sources of the legal corpus.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.CorpusStats)

	return handlers
}
