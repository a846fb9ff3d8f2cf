// ABOUTME: CLI command to inspect the corpus collection
// ABOUTME: Shows entry count, embedding space and the sources recorded in the ingest ledger
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/actes-verif/internal/storage"
)

// CorpusInfo is the inspect output
type CorpusInfo struct {
	Backend    string                 `json:"backend"`
	Collection string                 `json:"collection"`
	Entries    int                    `json:"entries"`
	Model      string                 `json:"embedding_model,omitempty"`
	Dimension  int                    `json:"dimension,omitempty"`
	Sources    []storage.SourceRecord `json:"sources"`
}

// NewInspectCmd creates the inspect command
func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show corpus statistics and loaded sources",
		Long: `Show the size of the corpus collection, the embedding model it was
built with, and every source recorded as completely loaded.`,
		Args: cobra.NoArgs,
		RunE: runInspect,
	}
	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}

	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	info := CorpusInfo{
		Backend:    a.Config.CorpusBackend,
		Collection: a.Config.Collection,
		Sources:    []storage.SourceRecord{},
	}
	if info.Entries, err = a.Corpus.Count(ctx); err != nil {
		return err
	}
	if space, ok := a.Corpus.Space(); ok {
		info.Model = space.Model
		info.Dimension = space.Dimension
	}
	if a.Ledger != nil {
		sources, err := a.Ledger.Sources(ctx)
		if err != nil {
			return fmt.Errorf("reading ingest ledger: %w", err)
		}
		if sources != nil {
			info.Sources = sources
		}
	}

	out := cmd.OutOrStdout()
	if wantJSON() {
		return writeJSON(out, info)
	}

	fmt.Fprintf(out, "Collection: %s (%s)\n", info.Collection, info.Backend)
	fmt.Fprintf(out, "Entries:    %d\n", info.Entries)
	if info.Model != "" {
		fmt.Fprintf(out, "Embedding:  %s, %d dimensions\n", info.Model, info.Dimension)
	} else {
		fmt.Fprintf(out, "Embedding:  (empty collection)\n")
	}
	if len(info.Sources) == 0 {
		return nil
	}

	fmt.Fprintf(out, "\n")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SOURCE\tENTRIES\tLOADED\n")
	fmt.Fprintf(w, "------\t-------\t------\n")
	for _, s := range info.Sources {
		fmt.Fprintf(w, "%s\t%d\t%s\n", truncate(s.Source, 60), s.Entries, formatTime(s.LoadedAt))
	}
	return w.Flush()
}
