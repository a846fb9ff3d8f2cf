// ABOUTME: Tests for the form-conformance analyzer and its schema-validated parser
// ABOUTME: Covers normalization of model spelling, the repair pass, degradation and corpus references

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

const delegationDecree = `La Maire de Paris,
Vu les articles L 2122-27 et L 2511-27 du Code général des collectivités territoriales ;
ARRÊTE :
Article premier : La signature de la Maire de Paris est déléguée au directeur général des services.
Article 2 : Le présent arrêté sera publié sur le portail des publications administratives.
Fait à Paris, le 19 juillet 2023
La Maire de Paris
Anne HIDALGO`

const sampleForm = `Voici l'analyse :
{
  "type_de_document": "Arrêté",
  "conformite_aux_exigences_legales": {
    "écriture": {"etat": "conforme", "explication": "Acte écrit."},
    "date": {"etat": "conforme", "explication": "Fait le 19 juillet 2023."},
    "signature": {"etat": "Conforme", "explication": "Signé par la Maire."},
    "visas": {"etat": "conforme", "explication": "Articles du CGCT visés."},
    "considérants": {"etat": "non-conforme", "explication": "Aucun motif exposé."},
    "dispositif": {"etat": "conforme", "explication": "Articles numérotés."},
    "publication": {"etat": "conforme", "explication": "Publication prévue à l'article 2."},
    "transmission": {"etat": "implicite", "explication": "Non mentionnée."}
  },
  "Observation": "Acte régulier en la forme, motivation absente.",
  "niveau_de_confiance": "85 %",
  "collectivité": "Ville de Paris",
  "signataire": "Anne HIDALGO"
}`

func TestParseFormAnalysis(t *testing.T) {
	f, err := ParseFormAnalysis(sampleForm)
	if err != nil {
		t.Fatalf("ParseFormAnalysis() error = %v", err)
	}

	if f.Status != models.ParseStatusParsed || f.DocumentType != models.DocumentArrete {
		t.Errorf("status %s, type %q", f.Status, f.DocumentType)
	}
	if f.Confidence == nil || *f.Confidence != 85 {
		t.Errorf("Confidence = %v, want 85", f.Confidence)
	}
	if f.Requirements.Signature.State != models.StateCompliant {
		t.Errorf("signature state = %q", f.Requirements.Signature.State)
	}
	if f.Requirements.Transmission.State != models.StateImplicit {
		t.Errorf("transmission state = %q", f.Requirements.Transmission.State)
	}
	if got := f.NonCompliant(); !reflect.DeepEqual(got, []string{"considerants"}) {
		t.Errorf("NonCompliant() = %v, want [considerants]", got)
	}
	if f.Authority != "Ville de Paris" || f.Signatory != "Anne HIDALGO" || f.Observation == "" {
		t.Errorf("analysis = %+v", f)
	}
}

func TestParseFormAnalysis_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no json", "L'acte semble conforme."},
		{"broken json", `{"type_de_document": "arrêté",`},
		{"missing requirements", `{"type_de_document": "arrêté", "niveau_de_confiance": 80}`},
		{"unknown state", strings.Replace(sampleForm, `"implicite"`, `"peut-être"`, 1)},
		{"unknown type", strings.Replace(sampleForm, `"Arrêté"`, `"circulaire"`, 1)},
		{"confidence out of range", strings.Replace(sampleForm, `"85 %"`, `140`, 1)},
		{"missing requirement", strings.Replace(sampleForm, `"date": {"etat": "conforme", "explication": "Fait le 19 juillet 2023."},`, "", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFormAnalysis(tt.raw)
			if !models.IsMalformedOutput(err) {
				t.Errorf("ParseFormAnalysis() error = %v, want MalformedOutputError", err)
			}
		})
	}
}

func TestFormAnalyzer_Analyze(t *testing.T) {
	llm := fixedLLM(sampleForm)
	rec := &eventRecorder{}
	analyzer := NewFormAnalyzer(llm, nil, FormConfig{}, rec, nil)

	f, err := analyzer.Analyze(context.Background(), delegationDecree)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !f.Parsed() || f.Model != "stub-model" || f.AnalyzedAt.IsZero() {
		t.Errorf("analysis = %+v", f)
	}
	if f.References == nil || len(f.References) != 0 {
		t.Errorf("References = %v, want empty and non-nil", f.References)
	}

	prompts := llm.promptsContaining("DOCUMENT À ANALYSER")
	if len(prompts) != 1 {
		t.Fatalf("form prompts = %d, want 1", len(prompts))
	}
	for _, marker := range []string{"Anne HIDALGO", "L. 2131-1", `"niveau_de_confiance"`} {
		if !strings.Contains(prompts[0], marker) {
			t.Errorf("form prompt missing %q", marker)
		}
	}
	if got := rec.kinds(telemetry.StageFormAnalysis); !reflect.DeepEqual(got, []string{telemetry.KindCompleted}) {
		t.Errorf("events = %v", got)
	}
}

func TestFormAnalyzer_RepairPass(t *testing.T) {
	llm := &scriptedLLM{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "ne respecte pas le format") {
			return sampleForm, nil
		}
		return "Le document est un arrêté conforme.", nil
	}}
	analyzer := NewFormAnalyzer(llm, nil, FormConfig{}, nil, nil)

	f, err := analyzer.Analyze(context.Background(), delegationDecree)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !f.Parsed() {
		t.Errorf("Status = %s, want parsed after repair", f.Status)
	}
	if f.Raw != sampleForm {
		t.Errorf("Raw = %q, want the repaired output", f.Raw)
	}
	if n := len(llm.promptsContaining("ne respecte pas le format")); n != 1 {
		t.Errorf("repair prompts = %d, want 1", n)
	}
}

func TestFormAnalyzer_DegradesToUnparsed(t *testing.T) {
	llm := fixedLLM("Je ne peux pas répondre en JSON.")
	rec := &eventRecorder{}
	analyzer := NewFormAnalyzer(llm, nil, FormConfig{}, rec, nil)

	f, err := analyzer.Analyze(context.Background(), delegationDecree)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if f.Parsed() || f.Confidence != nil || f.Raw != "Je ne peux pas répondre en JSON." {
		t.Errorf("analysis = %+v", f)
	}
	if got := rec.kinds(telemetry.StageFormAnalysis); !reflect.DeepEqual(got, []string{telemetry.KindDegraded}) {
		t.Errorf("events = %v", got)
	}
}

func TestFormAnalyzer_Failures(t *testing.T) {
	analyzer := NewFormAnalyzer(fixedLLM(sampleForm), nil, FormConfig{}, nil, nil)
	if _, err := analyzer.Analyze(context.Background(), "  \n"); !errors.Is(err, models.ErrEmptyDocument) {
		t.Errorf("Analyze(empty) error = %v, want ErrEmptyDocument", err)
	}

	down := &scriptedLLM{respond: func(string) (string, error) { return "", errors.New("model down") }}
	analyzer = NewFormAnalyzer(down, nil, FormConfig{}, nil, nil)
	if _, err := analyzer.Analyze(context.Background(), delegationDecree); !models.IsAssessment(err) {
		t.Errorf("Analyze() error = %v, want AssessmentError", err)
	}
}

func TestFormAnalyzer_UsesCorpusReferences(t *testing.T) {
	corpus, _ := newTestCorpus(t)
	seedCorpus(t, corpus,
		"Article L.2131-1: Les actes pris par les autorités communales sont exécutoires de plein droit dès qu'il a été procédé à leur publication et à leur transmission au représentant de l'État.",
		"Article L.2212-1: Le maire est chargé de la police municipale.",
	)

	llm := fixedLLM(sampleForm)
	analyzer := NewFormAnalyzer(llm, NewEvidenceRetriever(corpus, 2, nil), FormConfig{ReferenceK: 1}, nil, nil)

	f, err := analyzer.Analyze(context.Background(), delegationDecree)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(f.References) == 0 {
		t.Fatal("References is empty, want corpus passages")
	}
	prompts := llm.promptsContaining("RÉFÉRENCES JURIDIQUES")
	if len(prompts) != 1 || !strings.Contains(prompts[0], f.References[0].Chunk.Content) {
		t.Error("form prompt should carry the retrieved references")
	}

	disabled := NewFormAnalyzer(fixedLLM(sampleForm), NewEvidenceRetriever(corpus, 2, nil), FormConfig{ReferenceK: -1}, nil, nil)
	f, err = disabled.Analyze(context.Background(), delegationDecree)
	if err != nil || len(f.References) != 0 {
		t.Errorf("Analyze() with retrieval disabled = %d references, %v", len(f.References), err)
	}
}
