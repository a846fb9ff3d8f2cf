// ABOUTME: Version command to display build information and the configured pipeline
// ABOUTME: Shows version, commit, build date, corpus schema version and providers without opening the corpus
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/actes-verif/internal/storage/sqlite"
)

var (
	versionInfo = VersionInfo{
		Version: "dev",
		Commit:  "none",
		Date:    "unknown",
	}
)

// VersionInfo contains build information
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// BuildReport is the version command output
type BuildReport struct {
	VersionInfo
	SchemaVersion     int    `json:"schema_version"`
	LLMProvider       string `json:"llm_provider,omitempty"`
	EmbeddingProvider string `json:"embedding_provider,omitempty"`
	EmbeddingModel    string `json:"embedding_model,omitempty"`
	Backend           string `json:"backend,omitempty"`
	Collection        string `json:"collection,omitempty"`
}

// SetVersion sets the version information (called from main)
func SetVersion(version, commit, date string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.Date = date
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version, commit hash and build date for the actes CLI, with the
SQLite corpus schema version and the configured providers. The corpus is not opened.`,
		RunE: runVersion,
	}

	return cmd
}

func runVersion(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}

	report := BuildReport{VersionInfo: versionInfo, SchemaVersion: sqlite.SchemaVersion}
	// an invalid configuration still prints the build information
	if cfg, err := loadConfig(); err == nil {
		report.LLMProvider = cfg.LLMProvider
		report.EmbeddingProvider = cfg.EmbeddingProvider
		report.EmbeddingModel = cfg.EmbeddingModel
		report.Backend = cfg.CorpusBackend
		report.Collection = cfg.Collection
	}

	out := cmd.OutOrStdout()
	if wantJSON() {
		return writeJSON(out, report)
	}

	fmt.Fprintf(out, "actes %s\n", report.Version)
	fmt.Fprintf(out, "Commit: %s\n", report.Commit)
	fmt.Fprintf(out, "Built:  %s\n", report.Date)
	fmt.Fprintf(out, "Schema: sqlite v%d\n", report.SchemaVersion)
	if report.Backend != "" {
		fmt.Fprintf(out, "Corpus: %s (%s)\n", report.Collection, report.Backend)
		fmt.Fprintf(out, "LLM:    %s\n", report.LLMProvider)
		fmt.Fprintf(out, "Embed:  %s %s\n", report.EmbeddingProvider, report.EmbeddingModel)
	}
	return nil
}
