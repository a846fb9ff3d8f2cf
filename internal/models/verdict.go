// ABOUTME: Concept sets, evidence passages, and validity verdicts
// ABOUTME: Parse status tags distinguish well-formed model output from raw fallbacks
package models

import "time"

// ParseStatus tags whether language model output matched its expected shape
type ParseStatus string

const (
	ParseStatusParsed   ParseStatus = "parsed"
	ParseStatusUnparsed ParseStatus = "unparsed"
)

// ConceptSet is the result of concept extraction
type ConceptSet struct {
	Status   ParseStatus `json:"status"`
	Concepts []string    `json:"concepts"`
	Raw      string      `json:"raw,omitempty"`
}

// ParsedConcepts builds a ConceptSet holding well-formed concepts
func ParsedConcepts(concepts []string, raw string) ConceptSet {
	return ConceptSet{Status: ParseStatusParsed, Concepts: concepts, Raw: raw}
}

// UnparsedConcepts builds a ConceptSet carrying only the raw model output
func UnparsedConcepts(raw string) ConceptSet {
	return ConceptSet{Status: ParseStatusUnparsed, Raw: raw}
}

// Parsed reports whether the model output yielded usable concepts
func (c ConceptSet) Parsed() bool {
	return c.Status == ParseStatusParsed && len(c.Concepts) > 0
}

// Passage is a retrieved corpus chunk tagged with the concept that found it
type Passage struct {
	SearchResult
	Concept string `json:"concept"`
}

// VerdictSections holds the named sections of a validity verdict
type VerdictSections struct {
	Analysis   string `json:"analyse_du_contenu,omitempty"`
	Concepts   string `json:"concepts_identifies,omitempty"`
	Consistent string `json:"elements_coherents,omitempty"`
	Divergent  string `json:"elements_divergents,omitempty"`
	Citations  string `json:"citations,omitempty"`
	Conclusion string `json:"conclusion,omitempty"`
}

// Empty reports whether no section was recovered
func (s VerdictSections) Empty() bool {
	return s == VerdictSections{}
}

// Verdict is the structured confidence judgment for one input document
type Verdict struct {
	Status         ParseStatus     `json:"status"`
	Confidence     *float64        `json:"confidence,omitempty"`
	Sections       VerdictSections `json:"sections"`
	Raw            string          `json:"raw"`
	Concepts       []string        `json:"concepts"`
	ConceptStatus  ParseStatus     `json:"concept_status"`
	Evidence       []Passage       `json:"evidence"`
	EvidenceAbsent bool            `json:"evidence_absent"`
	Model          string          `json:"model,omitempty"`
	Strict         bool            `json:"strict"`
	AssessedAt     time.Time       `json:"assessed_at"`
}

// Parsed reports whether a confidence score was recovered from the model output
func (v *Verdict) Parsed() bool {
	return v.Status == ParseStatusParsed && v.Confidence != nil
}
