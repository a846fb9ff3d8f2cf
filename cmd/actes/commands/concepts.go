// ABOUTME: CLI command to extract the key legal concepts of an act
// ABOUTME: Shows the concepts the assessment would use to query the corpus
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	conceptsText  string
	conceptsCount int
)

// NewConceptsCmd creates the concepts command
func NewConceptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "concepts [file]",
		Short: "Extract the key legal concepts of an act",
		Long: `Extract the key legal concepts of an administrative act.

These are the terms the assessment uses to search the legal corpus.
Reads the act from a file, from --text, or from stdin.`,
		Example: `  actes concepts arrete.txt
  actes concepts --count 8 --text "Le maire de Béziers arrête..."`,
		Args: cobra.MaximumNArgs(1),
		RunE: runConcepts,
	}

	cmd.Flags().StringVar(&conceptsText, "text", "", "Text of the act")
	cmd.Flags().IntVar(&conceptsCount, "count", 0, "Number of concepts to extract (default CONCEPT_COUNT)")

	return cmd
}

func runConcepts(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}
	if conceptsCount < 0 {
		return validatePositiveInt(conceptsCount, "count")
	}
	text, err := inputText(cmd, conceptsText, args)
	if err != nil {
		return err
	}

	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Extractor == nil {
		_, err := a.Assessor()
		return fmt.Errorf("could not extract concepts: %w", err)
	}
	n := conceptsCount
	if n == 0 {
		n = a.Config.ConceptCount
	}

	set, err := a.Extractor.Extract(cmd.Context(), text, n)
	if err != nil {
		return fmt.Errorf("could not extract concepts: %w", err)
	}

	out := cmd.OutOrStdout()
	if wantJSON() {
		return writeJSON(out, set)
	}
	if !set.Parsed() {
		fmt.Fprintf(out, "%s\n%s\n", warnStyle("Réponse du modèle non structurée :"), set.Raw)
		return nil
	}
	for i, c := range set.Concepts {
		fmt.Fprintf(out, "%d. %s\n", i+1, c)
	}
	return nil
}
