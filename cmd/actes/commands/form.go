// ABOUTME: CLI command to check the formal conformity of an administrative act
// ABOUTME: Prints the document type and one coloured line per formal requirement
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/actes-verif/internal/models"
)

var formText string

var (
	compliantStyle    = color.New(color.FgGreen).SprintFunc()
	nonCompliantStyle = color.New(color.FgRed, color.Bold).SprintFunc()
)

// NewFormCmd creates the form command
func NewFormCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "form [file]",
		Short: "Check the formal conformity of an administrative act",
		Long: `Check an administrative act against the formal requirements of municipal acts:
writing, date, signature, visas, recitals (considérants), operative part
(dispositif), publication and transmission.

Each requirement is judged conforme, non conforme or implicite with a short
justification. Passages on the form of acts are retrieved from the legal
corpus when it holds any.

Reads the act from a file, from --text, or from stdin.`,
		Example: `  actes form arrete-2023-0719.txt
  actes form --format json arrete.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: runForm,
	}

	cmd.Flags().StringVar(&formText, "text", "", "Text of the act to check")

	return cmd
}

func runForm(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}
	text, err := inputText(cmd, formText, args)
	if err != nil {
		return err
	}

	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	analyzer, err := a.FormAnalyzer()
	if err != nil {
		return fmt.Errorf("could not analyse form: %w", err)
	}
	analysis, err := analyzer.Analyze(cmd.Context(), text)
	if err != nil {
		return fmt.Errorf("could not analyse form: %w", err)
	}

	if wantJSON() {
		return writeJSON(cmd.OutOrStdout(), analysis)
	}
	renderForm(cmd.OutOrStdout(), analysis)
	return nil
}

func stateStyle(state models.ConformityState) func(a ...interface{}) string {
	switch state {
	case models.StateCompliant:
		return compliantStyle
	case models.StateNonCompliant:
		return nonCompliantStyle
	default:
		return warnStyle
	}
}

// renderForm prints f for a terminal
func renderForm(w io.Writer, f *models.FormAnalysis) {
	if !f.Parsed() {
		fmt.Fprintf(w, "%s\n\n%s\n", warnStyle("Réponse du modèle non structurée."), strings.TrimSpace(f.Raw))
		return
	}

	fmt.Fprintf(w, "%s : %s\n", headingStyle("Type de document"), f.DocumentType)
	if f.Authority != "" {
		fmt.Fprintf(w, "%s : %s\n", headingStyle("Collectivité"), f.Authority)
	}
	if f.Signatory != "" {
		fmt.Fprintf(w, "%s : %s\n", headingStyle("Signataire"), f.Signatory)
	}
	fmt.Fprintf(w, "%s : %s\n", headingStyle("Niveau de confiance"), scoreStyle(*f.Confidence)(fmt.Sprintf("%.0f/100", *f.Confidence)))

	fmt.Fprintf(w, "\n%s\n", headingStyle("Exigences légales"))
	for _, r := range f.Requirements.Named() {
		fmt.Fprintf(w, "  %-13s %s  %s\n", r.Name, stateStyle(r.State)(string(r.State)), dimStyle(oneLine(r.Explanation)))
	}

	if f.Observation != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", headingStyle("Observation"), strings.TrimSpace(f.Observation))
	}
	if len(f.References) > 0 {
		fmt.Fprintf(w, "\n%s (%d)\n", headingStyle("Références consultées"), len(f.References))
		for i, p := range f.References {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, p.Chunk.Citation())
		}
	}
}
