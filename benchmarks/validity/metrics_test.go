// ABOUTME: Tests for benchmark metrics
// ABOUTME: Verifies confidence agreement, context recall, faithfulness and overall status

package validity

import (
	"testing"

	"github.com/harper/actes-verif/internal/models"
)

func score(v float64) *float64 { return &v }

func TestCalculateConfidenceAgreement(t *testing.T) {
	m := NewMetricsCalculator()

	tests := []struct {
		name       string
		confidence *float64
		want       float64
	}{
		{"inside band", score(75), 1.0},
		{"on lower bound", score(60), 1.0},
		{"ten points below", score(50), 0.8},
		{"far above", score(100), 0.0},
		{"unparsed", nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, detail := m.CalculateConfidenceAgreement(tt.confidence, 60, 80)
			if got != tt.want {
				t.Errorf("CalculateConfidenceAgreement() = %v, want %v (%s)", got, tt.want, detail)
			}
		})
	}
}

func TestCalculateContextRecall(t *testing.T) {
	m := NewMetricsCalculator()
	evidence := []models.Passage{
		{SearchResult: models.SearchResult{Chunk: models.Chunk{ArticleRef: "L.2212-1", Content: "Article L.2212-1\n...\n\nArticle L.2212-2\n..."}}},
	}

	if got, _ := m.CalculateContextRecall(evidence, []string{"l.2212-2"}); got != 1.0 {
		t.Errorf("recall for an article inside a merged chunk = %v, want 1", got)
	}
	if got, _ := m.CalculateContextRecall(evidence, []string{"L.2212-1", "L.2121-17"}); got != 0.5 {
		t.Errorf("recall with one missing article = %v, want 0.5", got)
	}
	if got, _ := m.CalculateContextRecall(nil, nil); got != 1.0 {
		t.Errorf("recall without expectations = %v, want 1", got)
	}
}

func TestCalculateFaithfulness(t *testing.T) {
	m := NewMetricsCalculator()
	verdict := "Le quorum n'était pas atteint lors de la séance."

	tests := []struct {
		name      string
		expected  []string
		forbidden []string
		want      float64
	}{
		{"all expected", []string{"QUORUM"}, nil, 1.0},
		{"missing expected", []string{"quorum", "convocation"}, nil, 0.5},
		{"forbidden present", []string{"quorum"}, []string{"séance"}, 0.5},
		{"both failures", []string{"convocation"}, []string{"séance"}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := m.CalculateFaithfulness(verdict, tt.expected, tt.forbidden); got != tt.want {
				t.Errorf("CalculateFaithfulness() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateScenario(t *testing.T) {
	m := NewMetricsCalculator()
	scenario := GetTest1B()

	pass := &models.Verdict{
		Status:     models.ParseStatusParsed,
		Confidence: score(15),
		Raw:        "Le quorum prévu à l'article L.2121-17 n'était pas atteint.",
		Evidence: []models.Passage{
			{SearchResult: models.SearchResult{Chunk: models.Chunk{ArticleRef: "L.2121-17"}}},
		},
	}
	if r := m.EvaluateScenario(scenario, pass); r.Status != "PASS" || r.OverallScore != 1.0 {
		t.Errorf("EvaluateScenario() = %+v, want PASS with overall 1", r)
	}

	fail := *pass
	fail.Confidence = score(90)
	if r := m.EvaluateScenario(scenario, &fail); r.Status != "FAIL" {
		t.Errorf("EvaluateScenario() status = %s, want FAIL for a confident verdict", r.Status)
	}
}

func TestScenarioByID(t *testing.T) {
	for _, s := range AllScenarios() {
		got, ok := ScenarioByID(s.ID)
		if !ok || got.Name != s.Name {
			t.Errorf("ScenarioByID(%q) = %v, %v", s.ID, got.Name, ok)
		}
		if s.Expected.MinConfidence > s.Expected.MaxConfidence {
			t.Errorf("scenario %s has an empty confidence band", s.ID)
		}
	}
	if _, ok := ScenarioByID("9z"); ok {
		t.Error("ScenarioByID() found an unknown ID")
	}
}
