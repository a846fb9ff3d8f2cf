// ABOUTME: CLI command to load reference legal texts into the corpus
// ABOUTME: Accepts files, globs, directories, s3:// and http(s):// locators, and can watch a directory
package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/actes-verif/internal/core"
)

var (
	ingestWatch    bool
	ingestDebounce int
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <locator>...",
		Short: "Load legal texts into the corpus",
		Long: `Load reference legal texts into the corpus.

Each source is split at article headings, embedded and stored. Chunks that
are near-duplicates of stored ones are skipped, and sources already loaded
with the same content are not processed again, so re-running is cheap.

Text and markdown files are read as-is; HTML pages are converted to text.
PDF and DOCX files must be converted to text beforehand.`,
		Example: `  actes ingest corpus/cgct.txt
  actes ingest 'corpus/**/*.txt'
  actes ingest s3://juridique/codes/
  actes ingest https://www.legifrance.gouv.fr/codes/article_lc/LEGIARTI000006390114
  actes ingest --watch corpus/`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().BoolVar(&ingestWatch, "watch", false, "Keep running and load files created or changed in the given directory")
	cmd.Flags().IntVar(&ingestDebounce, "debounce", 500, "Milliseconds to wait for writes to settle in --watch mode")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}
	if ingestWatch {
		if len(args) != 1 {
			return fmt.Errorf("--watch takes exactly one directory")
		}
		if info, err := os.Stat(args[0]); err != nil || !info.IsDir() {
			return fmt.Errorf("--watch needs a directory, got %q", args[0])
		}
		if err := validatePositiveInt(ingestDebounce, "debounce"); err != nil {
			return err
		}
	}

	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	report, loadErr := a.Loader.Load(cmd.Context(), args)
	if err := printLoadReport(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if loadErr != nil && !ingestWatch {
		return fmt.Errorf("ingestion incomplete: %w", loadErr)
	}

	if !ingestWatch {
		return nil
	}
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for changes (Ctrl+C to stop)...\n", args[0])
	}
	return a.Loader.Watch(cmd.Context(), args[0], core.WatchOptions{
		Debounce: msDuration(ingestDebounce),
		OnLoad: func(r core.LoadReport, err error) {
			_ = printLoadReport(cmd.OutOrStdout(), r)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}
		},
	})
}

func printLoadReport(w io.Writer, report core.LoadReport) error {
	if wantJSON() {
		return writeJSON(w, report)
	}
	if quiet {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SOURCE\tCHUNKS\tINSERTED\tDUPLICATES\tSTATUS\n")
	fmt.Fprintf(tw, "------\t------\t--------\t----------\t------\n")
	for _, s := range report.Sources {
		status := "loaded"
		switch {
		case s.Err != "":
			status = "failed: " + truncate(s.Err, 50)
		case s.Skipped:
			status = "unchanged"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n",
			truncate(s.Locator, 50), s.Chunks, s.Stats.Inserted, s.Stats.Duplicates, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d source(s): %d chunk(s) inserted, %d duplicate(s) skipped, %d unchanged, %d failed\n",
		len(report.Sources), report.Total.Inserted, report.Total.Duplicates, report.Skipped, report.Failed)
	return nil
}
