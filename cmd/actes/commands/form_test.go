// ABOUTME: Tests for form analysis rendering in the form command
// ABOUTME: Colour is disabled so the plain text layout can be checked

package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/harper/actes-verif/internal/models"
)

func TestRenderForm(t *testing.T) {
	color.NoColor = true
	confidence := 85.0

	tests := []struct {
		name     string
		analysis *models.FormAnalysis
		want     []string
		absent   []string
	}{
		{
			name: "parsed",
			analysis: &models.FormAnalysis{
				Status:       models.ParseStatusParsed,
				DocumentType: models.DocumentArrete,
				Requirements: models.FormRequirements{
					Signature: models.RequirementCheck{State: models.StateCompliant, Explanation: "Signé par la Maire."},
					Recitals:  models.RequirementCheck{State: models.StateNonCompliant, Explanation: "Aucun\nmotif."},
				},
				Confidence:  &confidence,
				Authority:   "Ville de Paris",
				Signatory:   "Anne HIDALGO",
				Observation: "Motivation absente.",
				References: []models.Passage{{
					SearchResult: models.SearchResult{Chunk: models.Chunk{Locator: "cgct.txt", ArticleRef: "L.2131-1", Page: 2}},
				}},
			},
			want: []string{
				"Type de document : arrêté",
				"Collectivité : Ville de Paris",
				"Signataire : Anne HIDALGO",
				"Niveau de confiance : 85/100",
				"signature     conforme  Signé par la Maire.",
				"considerants  non conforme  Aucun motif.",
				"Observation\nMotivation absente.",
				"[1] cgct.txt, article L.2131-1, p. 2",
			},
		},
		{
			name: "unparsed",
			analysis: &models.FormAnalysis{
				Status: models.ParseStatusUnparsed,
				Raw:    "Je ne peux pas répondre.",
			},
			want:   []string{"non structurée", "Je ne peux pas répondre."},
			absent: []string{"Type de document", "/100"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			renderForm(&out, tt.analysis)
			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("output missing %q:\n%s", w, out.String())
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(out.String(), a) {
					t.Errorf("output should not contain %q:\n%s", a, out.String())
				}
			}
		})
	}
}
