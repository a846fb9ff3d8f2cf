// ABOUTME: Root command and global flags for the actes CLI
// ABOUTME: Wires every subcommand and runs them under a signal-aware context
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	configPath   string
)

const banner = `
 █████╗  ██████╗████████╗███████╗███████╗
██╔══██╗██╔════╝╚══██╔══╝██╔════╝██╔════╝
███████║██║        ██║   █████╗  ███████╗
██╔══██║██║        ██║   ██╔══╝  ╚════██║
██║  ██║╚██████╗   ██║   ███████╗███████║
╚═╝  ╚═╝ ╚═════╝   ╚═╝   ╚══════╝╚══════╝`

// NewRootCmd creates the root command with all subcommands
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actes",
		Short: "Assess the legal validity of municipal administrative acts",
		Long: banner + `

Assess French municipal administrative acts (arrêtés, délibérations)
against a reference corpus of legal texts.

Load the legal corpus once with "actes ingest", then assess documents
with "actes assess", or serve the pipeline over MCP or HTTP.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log errors and suppress progress output")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, text or json")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file (default $ACTES_CONFIG)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewIngestCmd(),
		NewAssessCmd(),
		NewFormCmd(),
		NewConceptsCmd(),
		NewSearchCmd(),
		NewInspectCmd(),
		NewMCPCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command until it finishes or the process is interrupted
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
