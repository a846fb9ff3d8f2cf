// ABOUTME: Best-effort parsing of free-text verdicts and the schema-validated strict JSON pass
// ABOUTME: Missing confidence yields an unparsed verdict rather than an error
package core

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/harper/actes-verif/internal/models"
)

var confidencePattern = regexp.MustCompile(`(?i)indice\s+de\s+confiance[\s*_]*[:：=-]?[\s*_\[]*(\d{1,3}(?:[.,]\d+)?)\s*%?`)

type heading struct {
	field   string
	pattern *regexp.Regexp
}

// headingPattern matches a heading at line start, tolerating markdown emphasis, numbering and a colon
func headingPattern(alternatives ...string) *regexp.Regexp {
	quoted := make([]string, len(alternatives))
	for i, a := range alternatives {
		quoted[i] = regexp.QuoteMeta(a)
	}
	return regexp.MustCompile(`(?im)^[ \t#*_>\-\d.)]*(?:` + strings.Join(quoted, "|") + `)[ \t*_]*[:：]?[ \t*_]*`)
}

var headings = []heading{
	{"confidence", headingPattern(HeadingConfidence)},
	{"analysis", headingPattern(HeadingAnalysis)},
	{"concepts", headingPattern(HeadingConcepts, "Concepts identifies")},
	{"consistent", headingPattern(HeadingConsistent, "Elements coherents avec les references", "Éléments cohérents")},
	{"divergent", headingPattern(HeadingDivergent, "Elements divergents")},
	{"citations", headingPattern(HeadingCitations)},
	{"conclusion", headingPattern(HeadingConclusion)},
}

// ParseConfidence extracts the confidence percentage; ok is false when absent or outside 0-100
func ParseConfidence(raw string) (float64, bool) {
	m := confidencePattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

// ParseSections splits raw into the requested sections
func ParseSections(raw string) models.VerdictSections {
	type found struct {
		field      string
		start, end int
	}

	var marks []found
	for _, h := range headings {
		if loc := h.pattern.FindStringIndex(raw); loc != nil {
			marks = append(marks, found{h.field, loc[0], loc[1]})
		}
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].start < marks[j].start })

	var s models.VerdictSections
	for i, m := range marks {
		end := len(raw)
		if i+1 < len(marks) {
			end = marks[i+1].start
		}
		body := strings.TrimSpace(raw[m.end:end])
		switch m.field {
		case "analysis":
			s.Analysis = body
		case "concepts":
			s.Concepts = body
		case "consistent":
			s.Consistent = body
		case "divergent":
			s.Divergent = body
		case "citations":
			s.Citations = body
		case "conclusion":
			s.Conclusion = body
		}
	}
	return s
}

// ParseVerdict fills the confidence, sections and status of v from raw model output
func ParseVerdict(v *models.Verdict, raw string) {
	v.Raw = raw
	v.Sections = ParseSections(raw)
	if c, ok := ParseConfidence(raw); ok {
		v.Confidence = &c
		v.Status = models.ParseStatusParsed
		return
	}
	v.Confidence = nil
	v.Status = models.ParseStatusUnparsed
}

// verdictSchema is the JSON schema the strict pass output must satisfy
var verdictSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"indice_de_confiance": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 100},
		"analyse_du_contenu":  map[string]interface{}{"type": "string"},
		"concepts_identifies": map[string]interface{}{"type": "string"},
		"elements_coherents":  map[string]interface{}{"type": "string"},
		"elements_divergents": map[string]interface{}{"type": "string"},
		"citations":           map[string]interface{}{"type": "string"},
		"conclusion":          map[string]interface{}{"type": "string"},
	},
	"required": []interface{}{"indice_de_confiance", "conclusion"},
}

type strictVerdict struct {
	Confidence float64 `json:"indice_de_confiance"`
	models.VerdictSections
}

// ParseStrictVerdict validates the JSON restatement of a verdict against verdictSchema
func ParseStrictVerdict(raw string) (float64, models.VerdictSections, error) {
	doc := extractJSONObject(raw)
	if doc == "" {
		return 0, models.VerdictSections{}, &models.MalformedOutputError{Stage: "strict_parse", Reason: "no JSON object", Raw: raw}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(verdictSchema), gojsonschema.NewStringLoader(doc))
	if err != nil {
		return 0, models.VerdictSections{}, &models.MalformedOutputError{Stage: "strict_parse", Reason: err.Error(), Raw: raw}
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return 0, models.VerdictSections{}, &models.MalformedOutputError{
			Stage:  "strict_parse",
			Reason: fmt.Sprintf("schema validation failed: %s", strings.Join(errs, ", ")),
			Raw:    raw,
		}
	}

	var sv strictVerdict
	if err := json.Unmarshal([]byte(doc), &sv); err != nil {
		return 0, models.VerdictSections{}, &models.MalformedOutputError{Stage: "strict_parse", Reason: err.Error(), Raw: raw}
	}
	return sv.Confidence, sv.VerdictSections, nil
}

// extractJSONObject returns the outermost {...} of s, tolerating code fences and prose around it
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
