// ABOUTME: MCP command starts the Model Context Protocol server
// ABOUTME: Lets LLM agents assess acts and search the legal corpus via stdio
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/actes-verif/internal/mcp"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs the assessment pipeline as an MCP (Model Context Protocol) server over
stdio, so LLM agents can assess administrative acts, extract their legal
concepts and search the legal corpus.

Logs go to stderr; stdout carries the protocol.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by an MCP client)
  actes mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "actes": {
  #       "command": "actes",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	deps := mcp.Deps{
		Corpus:       a.Corpus,
		Ledger:       a.Ledger,
		ConceptCount: a.Config.ConceptCount,
		Logger:       a.Logger,
	}
	if assessor, err := a.Assessor(); err == nil {
		deps.Assessor = assessor
		deps.Extractor = a.Extractor
	} else {
		a.Logger.Warn("assessment tools disabled", "err", err)
	}
	if form, err := a.FormAnalyzer(); err == nil {
		deps.FormAnalyzer = form
	}

	server, _ := mcp.NewServer(versionInfo.Version, deps)

	a.Logger.Info("MCP server starting on stdio")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-cmd.Context().Done():
		a.Logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}
