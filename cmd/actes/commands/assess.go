// ABOUTME: CLI command to assess the validity of an administrative act
// ABOUTME: Prints the confidence index, analysis sections and cited references, coloured by confidence
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/actes-verif/internal/config"
	"github.com/harper/actes-verif/internal/core"
	"github.com/harper/actes-verif/internal/models"
)

var (
	assessText   string
	assessStrict bool
)

var (
	headingStyle = color.New(color.Bold).SprintFunc()
	highScore    = color.New(color.FgGreen, color.Bold).SprintFunc()
	midScore     = color.New(color.FgYellow, color.Bold).SprintFunc()
	lowScore     = color.New(color.FgRed, color.Bold).SprintFunc()
	warnStyle    = color.New(color.FgYellow).SprintFunc()
	dimStyle     = color.New(color.Faint).SprintFunc()
)

// NewAssessCmd creates the assess command
func NewAssessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess [file]",
		Short: "Assess the legal validity of an administrative act",
		Long: `Assess the legal validity of a municipal administrative act.

The act's key legal concepts are extracted, matching passages are retrieved
from the legal corpus, and the language model judges the act against those
passages only. The result is a confidence index from 0 to 100 with its
justification and the cited references.

Reads the act from a file, from --text, or from stdin.`,
		Example: `  actes assess arrete-2024-118.txt
  pdftotext deliberation.pdf - | actes assess
  actes assess --strict --format json arrete.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: runAssess,
	}

	cmd.Flags().StringVar(&assessText, "text", "", "Text of the act to assess")
	cmd.Flags().BoolVar(&assessStrict, "strict", false, "Ask the model to restate its verdict as schema-checked JSON")

	return cmd
}

func runAssess(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}
	text, err := inputText(cmd, assessText, args)
	if err != nil {
		return err
	}

	a, err := openApp(cmd, func(cfg *config.Config) {
		if assessStrict {
			cfg.StrictVerdict = true
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	assessor, err := a.Assessor()
	if err != nil {
		return fmt.Errorf("could not assess: %w", err)
	}
	verdict, err := assessor.Assess(cmd.Context(), text)
	if err != nil {
		return fmt.Errorf("could not assess: %w", err)
	}

	if wantJSON() {
		return writeJSON(cmd.OutOrStdout(), verdict)
	}
	renderVerdict(cmd.OutOrStdout(), verdict)
	return nil
}

func inputText(cmd *cobra.Command, flagText string, args []string) (string, error) {
	if flagText != "" {
		if len(args) > 0 {
			return "", fmt.Errorf("use either --text or a file argument, not both")
		}
		text := strings.TrimSpace(flagText)
		if text == "" {
			return "", fmt.Errorf("no text provided")
		}
		return text, nil
	}
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	return readInput(cmd, path)
}

func scoreStyle(score float64) func(a ...interface{}) string {
	switch {
	case score >= 70:
		return highScore
	case score >= 40:
		return midScore
	default:
		return lowScore
	}
}

// renderVerdict prints v for a terminal
func renderVerdict(w io.Writer, v *models.Verdict) {
	if v.Parsed() {
		score := *v.Confidence
		fmt.Fprintf(w, "%s : %s\n", headingStyle(core.HeadingConfidence), scoreStyle(score)(fmt.Sprintf("%.0f/100", score)))
	} else {
		fmt.Fprintf(w, "%s\n", warnStyle("Réponse du modèle non structurée : indice de confiance introuvable."))
	}
	if v.Strict {
		fmt.Fprintf(w, "%s\n", dimStyle("(verdict vérifié par schéma)"))
	}

	if len(v.Concepts) > 0 {
		fmt.Fprintf(w, "\n%s : %s\n", headingStyle(core.HeadingConcepts), strings.Join(v.Concepts, ", "))
	} else if v.ConceptStatus == models.ParseStatusUnparsed {
		fmt.Fprintf(w, "\n%s\n", warnStyle("Concepts non extraits : recherche effectuée sur le début du document."))
	}

	sections := []struct {
		heading string
		body    string
	}{
		{core.HeadingAnalysis, v.Sections.Analysis},
		{core.HeadingConsistent, v.Sections.Consistent},
		{core.HeadingDivergent, v.Sections.Divergent},
		{core.HeadingCitations, v.Sections.Citations},
		{core.HeadingConclusion, v.Sections.Conclusion},
	}
	if v.Sections.Empty() {
		fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(v.Raw))
	} else {
		for _, s := range sections {
			if s.body == "" {
				continue
			}
			fmt.Fprintf(w, "\n%s\n%s\n", headingStyle(s.heading), strings.TrimSpace(s.body))
		}
	}

	fmt.Fprintln(w)
	if v.EvidenceAbsent {
		fmt.Fprintf(w, "%s\n", warnStyle(core.NoEvidenceNotice))
		return
	}
	fmt.Fprintf(w, "%s (%d)\n", headingStyle("Références consultées"), len(v.Evidence))
	for i, p := range v.Evidence {
		fmt.Fprintf(w, "  [%d] %s %s\n", i+1, p.Chunk.Citation(),
			dimStyle(fmt.Sprintf("(concept : %s, similarité : %.2f)", p.Concept, p.Score)))
	}
}
