// ABOUTME: Metrics for validity benchmarks: confidence agreement, context recall and faithfulness
// ABOUTME: Deterministic scoring against the labelled expectations of each scenario

package validity

import (
	"fmt"
	"math"
	"strings"

	"github.com/harper/actes-verif/internal/models"
)

// MetricsCalculator computes benchmark scores
type MetricsCalculator struct{}

// NewMetricsCalculator creates a new metrics calculator
func NewMetricsCalculator() *MetricsCalculator {
	return &MetricsCalculator{}
}

// CalculateConfidenceAgreement scores how well the confidence index matches the expected band (0.0-1.0).
// A score inside the band is perfect; outside it decays linearly with the distance in points.
func (m *MetricsCalculator) CalculateConfidenceAgreement(confidence *float64, minScore, maxScore float64) (float64, string) {
	if confidence == nil {
		return 0.0, "No confidence index could be parsed from the verdict"
	}

	c := *confidence
	if c >= minScore && c <= maxScore {
		return 1.0, fmt.Sprintf("Confidence %.0f within expected band [%.0f, %.0f]", c, minScore, maxScore)
	}

	distance := minScore - c
	if c > maxScore {
		distance = c - maxScore
	}
	score := math.Max(0, 1-distance/50)
	return score, fmt.Sprintf("Confidence %.0f outside expected band [%.0f, %.0f] by %.0f points",
		c, minScore, maxScore, distance)
}

// CalculateContextRecall computes the share of expected articles present in the evidence (0.0-1.0)
func (m *MetricsCalculator) CalculateContextRecall(evidence []models.Passage, expectedArticles []string) (float64, string) {
	if len(expectedArticles) == 0 {
		return 1.0, "No context retrieval required"
	}

	var retrieved []string
	for _, p := range evidence {
		retrieved = append(retrieved, p.Chunk.ArticleRef, p.Chunk.Content)
	}
	allContext := strings.ToUpper(strings.Join(retrieved, " "))

	foundCount := 0
	missingItems := []string{}
	for _, article := range expectedArticles {
		if strings.Contains(allContext, strings.ToUpper(article)) {
			foundCount++
		} else {
			missingItems = append(missingItems, article)
		}
	}

	recall := float64(foundCount) / float64(len(expectedArticles))
	if recall == 1.0 {
		return 1.0, "Perfect context recall - all expected articles retrieved"
	}
	return recall, fmt.Sprintf("Partial context recall (%.2f) - missing articles: %v", recall, missingItems)
}

// CalculateFaithfulness checks the verdict text against expected and forbidden strings (0.0-1.0)
func (m *MetricsCalculator) CalculateFaithfulness(verdict string, expected, forbidden []string) (float64, string) {
	verdictUpper := strings.ToUpper(verdict)

	missingItems := []string{}
	for _, item := range expected {
		if !strings.Contains(verdictUpper, strings.ToUpper(item)) {
			missingItems = append(missingItems, item)
		}
	}

	forbiddenFound := []string{}
	for _, item := range forbidden {
		if strings.Contains(verdictUpper, strings.ToUpper(item)) {
			forbiddenFound = append(forbiddenFound, item)
		}
	}

	switch {
	case len(missingItems) == 0 && len(forbiddenFound) == 0:
		return 1.0, "Perfect faithfulness - verdict matches expected ground truth"
	case len(missingItems) > 0 && len(forbiddenFound) > 0:
		return 0.0, fmt.Sprintf("Faithfulness failure - missing expected items: %v, forbidden items found: %v",
			missingItems, forbiddenFound)
	case len(missingItems) > 0:
		return 0.5, fmt.Sprintf("Partial faithfulness - missing expected items: %v", missingItems)
	default:
		return 0.5, fmt.Sprintf("Partial faithfulness - forbidden items found: %v", forbiddenFound)
	}
}

// EvaluateScenario scores a verdict against the scenario's expectations
func (m *MetricsCalculator) EvaluateScenario(scenario Scenario, verdict *models.Verdict) Result {
	exp := scenario.Expected

	confidence, confidenceDetail := m.CalculateConfidenceAgreement(verdict.Confidence, exp.MinConfidence, exp.MaxConfidence)
	recall, recallDetail := m.CalculateContextRecall(verdict.Evidence, exp.ExpectedArticles)
	faithfulness, faithfulnessDetail := m.CalculateFaithfulness(verdict.Raw, exp.ExpectedInVerdict, exp.ForbiddenInVerdict)

	overall := (confidence + recall + faithfulness) / 3.0

	// Every metric must reach 0.9
	status := "FAIL"
	if confidence >= 0.9 && recall >= 0.9 && faithfulness >= 0.9 {
		status = "PASS"
	}

	return Result{
		ScenarioID:         scenario.ID,
		ScenarioName:       scenario.Name,
		Confidence:         verdict.Confidence,
		ConfidenceScore:    confidence,
		ContextRecallScore: recall,
		FaithfulnessScore:  faithfulness,
		OverallScore:       overall,
		Status:             status,
		Details: map[string]interface{}{
			"confidence_detail":   confidenceDetail,
			"recall_detail":       recallDetail,
			"faithfulness_detail": faithfulnessDetail,
			"verdict_preview":     preview(verdict.Raw, 200),
			"evidence_items":      len(verdict.Evidence),
			"evidence_absent":     verdict.EvidenceAbsent,
		},
	}
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
