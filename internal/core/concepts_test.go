// ABOUTME: Tests for ConceptExtractor and concept parsing
// ABOUTME: Covers clean lists, short lists, messy separators, unparsed output and model failures

package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/harper/actes-verif/internal/models"
	"github.com/harper/actes-verif/internal/telemetry"
)

const threeParagraphDecree = `Le maire de la commune de Sérignan, vu le code général des collectivités territoriales et notamment ses articles L.2212-1 et L.2213-1,

considérant qu'il y a lieu de réglementer la circulation pendant les travaux de voirie de l'avenue de la Plage,

arrête : la circulation des véhicules est interdite avenue de la Plage du 3 au 14 mars. Le présent arrêté sera affiché en mairie.`

func TestParseConcepts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		n    int
		want []string
	}{
		{"clean list", "police de la circulation, arrêté municipal, travaux de voirie", 3,
			[]string{"police de la circulation", "arrêté municipal", "travaux de voirie"}},
		{"fewer items", "police de la circulation, arrêté municipal", 3,
			[]string{"police de la circulation", "arrêté municipal"}},
		{"trailing commas and whitespace", "  police de la circulation ,  arrêté municipal,, travaux de voirie ,  \n", 3,
			[]string{"police de la circulation", "arrêté municipal", "travaux de voirie"}},
		{"more than requested", "a1, b2, c3, d4, e5", 2, []string{"a1", "b2"}},
		{"numbered lines", "1. police municipale\n2) compétence du maire\n3. voirie.", 3,
			[]string{"police municipale", "compétence du maire", "voirie"}},
		{"bullets and quotes", "- « police municipale »\n* \"voirie communale\"\n• maire", 5,
			[]string{"police municipale", "voirie communale", "maire"}},
		{"lead-in line dropped", "Voici les termes :\npolice municipale, maire", 5,
			[]string{"police municipale", "maire"}},
		{"interior digits kept", "article L.2212-1, 14 juillet", 5,
			[]string{"article L.2212-1", "14 juillet"}},
		{"overlong item dropped", strings.Repeat("x", 121) + ", maire", 5, []string{"maire"}},
		{"only separators", " , ,\n ,", 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseConcepts(tt.raw, tt.n)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseConcepts(%q, %d) = %q, want %q", tt.raw, tt.n, got, tt.want)
			}
		})
	}
}

func TestExtract_CleanThreeItemList(t *testing.T) {
	llm := fixedLLM("police de la circulation, arrêté municipal, travaux de voirie")
	rec := &eventRecorder{}
	ce := NewConceptExtractor(llm, 0, rec)

	set, err := ce.Extract(context.Background(), threeParagraphDecree, 3)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !set.Parsed() || len(set.Concepts) != 3 {
		t.Fatalf("Extract() = %+v, want 3 parsed concepts", set)
	}
	for _, c := range set.Concepts {
		if c == "" || c != strings.TrimSpace(c) {
			t.Errorf("concept %q is empty or untrimmed", c)
		}
	}
	if kinds := rec.kinds(telemetry.StageConceptExtraction); !reflect.DeepEqual(kinds, []string{telemetry.KindCompleted}) {
		t.Errorf("events = %v", kinds)
	}

	prompt := llm.prompts[0]
	if !strings.Contains(prompt, "exactement 3 termes") || !strings.Contains(prompt, "avenue de la Plage") {
		t.Errorf("prompt does not request 3 terms for the document: %q", prompt)
	}
}

func TestExtract_Unparsed(t *testing.T) {
	rec := &eventRecorder{}
	ce := NewConceptExtractor(fixedLLM(" ,, \n"), 0, rec)

	set, err := ce.Extract(context.Background(), threeParagraphDecree, 3)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if set.Parsed() || set.Status != models.ParseStatusUnparsed || set.Raw != " ,, \n" {
		t.Errorf("Extract() = %+v, want unparsed with raw output", set)
	}
	if kinds := rec.kinds(telemetry.StageConceptExtraction); !reflect.DeepEqual(kinds, []string{telemetry.KindDegraded}) {
		t.Errorf("events = %v", kinds)
	}
}

func TestExtract_ModelFailure(t *testing.T) {
	llm := &scriptedLLM{respond: func(string) (string, error) { return "", errors.New("quota exceeded") }}
	ce := NewConceptExtractor(llm, 0, nil)

	_, err := ce.Extract(context.Background(), threeParagraphDecree, 3)
	var ae *models.AssessmentError
	if !errors.As(err, &ae) {
		t.Fatalf("Extract() error = %v, want AssessmentError", err)
	}
	if ae.Stage != telemetry.StageConceptExtraction || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("AssessmentError = %v", ae)
	}
}

func TestExtract_TruncatesInput(t *testing.T) {
	llm := fixedLLM("maire")
	ce := NewConceptExtractor(llm, 20, nil)

	text := strings.Repeat("é", 20) + "FIN_DU_DOCUMENT"
	if _, err := ce.Extract(context.Background(), text, 1); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if strings.Contains(llm.prompts[0], "FIN_DU_DOCUMENT") {
		t.Error("prompt contains text past the input limit")
	}
	if !strings.Contains(llm.prompts[0], strings.Repeat("é", 20)) {
		t.Error("prompt lost the document prefix")
	}
}

func TestExtract_DefaultCount(t *testing.T) {
	llm := fixedLLM("a1, b2, c3, d4, e5, f6, g7")
	ce := NewConceptExtractor(llm, 0, nil)

	set, err := ce.Extract(context.Background(), "texte", 0)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(set.Concepts) != DefaultConceptCount {
		t.Errorf("len(Concepts) = %d, want %d", len(set.Concepts), DefaultConceptCount)
	}
}
