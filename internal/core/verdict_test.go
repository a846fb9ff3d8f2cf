// ABOUTME: Tests for free-text verdict parsing and the strict JSON verdict schema
// ABOUTME: Verifies confidence extraction, section splitting and schema rejection

package core

import (
	"testing"

	"github.com/harper/actes-verif/internal/models"
)

const sampleVerdict = `**Indice de confiance** : 72 %

**Analyse du contenu** : L'arrêté réglemente la circulation pendant des travaux.

**Concepts identifiés** : police de la circulation, voirie communale

**Éléments cohérents avec les références** :
- Le maire exerce la police de la circulation [1].

**Éléments divergents** : aucune mention des voies de recours.

**Citations** : [1] « Le maire exerce la police de la circulation »

**Conclusion** : Acte vraisemblablement valide.`

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   float64
		wantOK bool
	}{
		{"markdown", sampleVerdict, 72, true},
		{"plain colon", "Indice de confiance: 85%", 85, true},
		{"brackets", "Indice de confiance : [40%]", 40, true},
		{"decimal comma", "indice de confiance : 66,5 %", 66.5, true},
		{"no percent sign", "Indice de confiance - 90", 90, true},
		{"out of range", "Indice de confiance : 150 %", 0, false},
		{"missing", "Conclusion : valide", 0, false},
		{"word instead of number", "Indice de confiance : élevé", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseConfidence(tt.raw)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseConfidence() = %v, %v, want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseSections(t *testing.T) {
	s := ParseSections(sampleVerdict)

	if s.Analysis != "L'arrêté réglemente la circulation pendant des travaux." {
		t.Errorf("Analysis = %q", s.Analysis)
	}
	if s.Concepts != "police de la circulation, voirie communale" {
		t.Errorf("Concepts = %q", s.Concepts)
	}
	if s.Consistent != "- Le maire exerce la police de la circulation [1]." {
		t.Errorf("Consistent = %q", s.Consistent)
	}
	if s.Divergent != "aucune mention des voies de recours." {
		t.Errorf("Divergent = %q", s.Divergent)
	}
	if s.Conclusion != "Acte vraisemblablement valide." {
		t.Errorf("Conclusion = %q", s.Conclusion)
	}
	if s.Citations == "" {
		t.Error("Citations is empty")
	}
}

func TestParseSections_UnaccentedHeadings(t *testing.T) {
	raw := "Indice de confiance : 50\nElements divergents : signature absente\nConclusion : incertain"
	s := ParseSections(raw)
	if s.Divergent != "signature absente" || s.Conclusion != "incertain" {
		t.Errorf("ParseSections() = %+v", s)
	}
}

func TestParseVerdict_Unparsed(t *testing.T) {
	v := &models.Verdict{}
	ParseVerdict(v, "Je ne peux pas évaluer ce document.")

	if v.Status != models.ParseStatusUnparsed || v.Confidence != nil || v.Parsed() {
		t.Errorf("ParseVerdict() = %+v, want unparsed", v)
	}
	if v.Raw != "Je ne peux pas évaluer ce document." {
		t.Errorf("Raw = %q", v.Raw)
	}
	if !v.Sections.Empty() {
		t.Errorf("Sections = %+v, want empty", v.Sections)
	}
}

func TestParseStrictVerdict(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantConf float64
		wantErr  bool
	}{
		{"valid", `{"indice_de_confiance": 64, "conclusion": "valide", "citations": "[1]"}`, 64, false},
		{"fenced", "```json\n{\"indice_de_confiance\": 12.5, \"conclusion\": \"douteux\"}\n```", 12.5, false},
		{"missing conclusion", `{"indice_de_confiance": 64}`, 0, true},
		{"out of range", `{"indice_de_confiance": 140, "conclusion": "x"}`, 0, true},
		{"string confidence", `{"indice_de_confiance": "64%", "conclusion": "x"}`, 0, true},
		{"no json", "Indice de confiance : 64 %", 0, true},
		{"broken json", `{"indice_de_confiance": 64,`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, sections, err := ParseStrictVerdict(tt.raw)
			if tt.wantErr {
				if !models.IsMalformedOutput(err) {
					t.Errorf("ParseStrictVerdict() error = %v, want MalformedOutputError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStrictVerdict() error = %v", err)
			}
			if conf != tt.wantConf || sections.Conclusion == "" {
				t.Errorf("ParseStrictVerdict() = %v, %+v", conf, sections)
			}
		})
	}
}
