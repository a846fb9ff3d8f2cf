// ABOUTME: CLI command to search the legal corpus
// ABOUTME: Runs a semantic query and prints the closest passages with their citations
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	searchLimit int
)

// NewSearchCmd creates search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the legal corpus",
		Long: `Search the legal corpus by meaning.

Embeds the query with the configured provider and returns the closest
law passages, best first.

Examples:
  actes search "pouvoirs de police du maire"
  actes search --limit 10 "délégation du conseil municipal"
  actes search --format json "marchés publics"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 5, "Maximum results to return")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}
	if err := validatePositiveInt(searchLimit, "limit"); err != nil {
		return err
	}

	query := args[0]

	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.Corpus.Query(cmd.Context(), query, searchLimit)
	if err != nil {
		return fmt.Errorf("searching corpus: %w", err)
	}

	out := cmd.OutOrStdout()
	if wantJSON() {
		return writeJSON(out, results)
	}
	if len(results) == 0 {
		if !quiet {
			fmt.Fprintf(out, "No passages found for query: %s\n", query)
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCORE\tCITATION\tPREVIEW\n")
	fmt.Fprintf(w, "-----\t--------\t-------\n")
	for _, r := range results {
		fmt.Fprintf(w, "%.3f\t%s\t%s\n",
			r.Score,
			truncate(r.Chunk.Citation(), 40),
			truncate(oneLine(r.Chunk.Content), 70))
	}
	w.Flush()

	if !quiet {
		fmt.Fprintf(out, "\nFound %d passage(s)\n", len(results))
	}
	return nil
}
