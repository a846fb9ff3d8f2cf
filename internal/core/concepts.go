// ABOUTME: ConceptExtractor asks the language model for the salient legal notions of a document
// ABOUTME: Model output is parsed into a tagged ConceptSet; unusable output is kept raw as Unparsed
package core

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/harper/actes-verif/internal/llm"
	"github.com/harper/actes-verif/internal/models"
	"github.com/harper/actes-verif/internal/telemetry"
)

const (
	// DefaultConceptCount is the number of concepts requested per document
	DefaultConceptCount = 5
	// DefaultConceptMaxInput bounds the document prefix sent for extraction, in runes
	DefaultConceptMaxInput = 6000
	maxConceptRunes        = 120
)

// ConceptExtractor extracts legal concepts with a language model
type ConceptExtractor struct {
	llm      llm.Invoker
	maxInput int
	sink     telemetry.Sink
}

// NewConceptExtractor creates an extractor; maxInput <= 0 selects the default
func NewConceptExtractor(invoker llm.Invoker, maxInput int, sink telemetry.Sink) *ConceptExtractor {
	if maxInput <= 0 {
		maxInput = DefaultConceptMaxInput
	}
	if sink == nil {
		sink = telemetry.Nop
	}
	return &ConceptExtractor{llm: invoker, maxInput: maxInput, sink: sink}
}

// Extract returns up to n concepts for text
func (ce *ConceptExtractor) Extract(ctx context.Context, text string, n int) (models.ConceptSet, error) {
	if n <= 0 {
		n = DefaultConceptCount
	}
	start := time.Now()

	raw, err := ce.llm.Invoke(ctx, conceptPrompt(truncateRunes(text, ce.maxInput), n))
	if err != nil {
		err = models.NewAssessmentError(telemetry.StageConceptExtraction, err)
		ce.sink.Emit(telemetry.Failed(telemetry.StageConceptExtraction, start, err, nil))
		return models.ConceptSet{}, err
	}

	concepts := ParseConcepts(raw, n)
	if len(concepts) == 0 {
		ce.sink.Emit(telemetry.Degraded(telemetry.StageConceptExtraction, start, "no usable concept in model output", nil))
		return models.UnparsedConcepts(raw), nil
	}

	ce.sink.Emit(telemetry.Completed(telemetry.StageConceptExtraction, start, map[string]any{"concepts": len(concepts)}))
	return models.ParsedConcepts(concepts, raw), nil
}

// ParseConcepts splits model output on commas and newlines and keeps the first n clean items
func ParseConcepts(raw string, n int) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	var out []string
	for _, p := range parts {
		c := cleanConcept(p)
		if c == "" || strings.HasSuffix(c, ":") || len([]rune(c)) > maxConceptRunes {
			continue
		}
		out = append(out, c)
		if len(out) == n {
			break
		}
	}
	return out
}

// cleanConcept strips list markers, numbering, quotes and trailing punctuation
func cleanConcept(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-*•·–— \t")

	// "1." or "2)" numbering
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		s = s[i+1:]
	}

	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("\"'«»“”‘’`*.;", r)
	})
	return s
}
