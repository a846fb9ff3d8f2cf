// ABOUTME: FormAnalyzer checks an act against the formal requirements of municipal acts
// ABOUTME: Model output is normalized, validated against a JSON schema, and degrades to unparsed when malformed
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/harper/actes-verif/internal/llm"
	"github.com/harper/actes-verif/internal/logging"
	"github.com/harper/actes-verif/internal/models"
	"github.com/harper/actes-verif/internal/telemetry"
)

const (
	// DefaultFormMaxInput bounds the document sent for form analysis, in runes
	DefaultFormMaxInput = 12000
	// DefaultFormReferenceK is the number of passages retrieved per reference query
	DefaultFormReferenceK = 2
	maxFormReferences     = 6
)

// formReferenceQueries retrieve the corpus passages on the form, publicity and transmission of acts
var formReferenceQueries = []string{
	"forme des arrêtés du maire visas considérants dispositif",
	"publicité et entrée en vigueur des actes des autorités communales",
	"transmission des actes au représentant de l'État caractère exécutoire",
}

// FormConfig tunes the form analyzer
type FormConfig struct {
	MaxInput int
	// ReferenceK is the passages per reference query; 0 selects the default, negative disables retrieval
	ReferenceK int
}

// FormAnalyzer judges the formal conformity of administrative acts
type FormAnalyzer struct {
	llm       llm.Invoker
	retriever *EvidenceRetriever
	cfg       FormConfig
	sink      telemetry.Sink
	logger    *log.Logger
}

// NewFormAnalyzer creates an analyzer; a nil retriever uses the built-in guidance only
func NewFormAnalyzer(invoker llm.Invoker, retriever *EvidenceRetriever, cfg FormConfig, sink telemetry.Sink, logger *log.Logger) *FormAnalyzer {
	if cfg.MaxInput <= 0 {
		cfg.MaxInput = DefaultFormMaxInput
	}
	if cfg.ReferenceK == 0 {
		cfg.ReferenceK = DefaultFormReferenceK
	}
	if sink == nil {
		sink = telemetry.Nop
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &FormAnalyzer{
		llm:       invoker,
		retriever: retriever,
		cfg:       cfg,
		sink:      sink,
		logger:    logger.With("component", "form"),
	}
}

// Analyze checks text against the formal requirements. A model failure fails the call;
// output that still misses the schema after one repair pass yields an unparsed analysis.
func (f *FormAnalyzer) Analyze(ctx context.Context, text string) (*models.FormAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyDocument
	}

	references := f.references(ctx)

	start := time.Now()
	raw, err := f.llm.Invoke(ctx, formPrompt(truncateRunes(text, f.cfg.MaxInput), references))
	if err != nil {
		err = models.NewAssessmentError(telemetry.StageFormAnalysis, err)
		f.sink.Emit(telemetry.Failed(telemetry.StageFormAnalysis, start, err, nil))
		return nil, err
	}

	analysis, perr := ParseFormAnalysis(raw)
	if perr != nil {
		f.logger.Warn("form analysis off schema, asking for a repair", "err", perr)
		repaired, err := f.llm.Invoke(ctx, formRepairPrompt(raw, perr))
		if err == nil {
			analysis, perr = ParseFormAnalysis(repaired)
		} else {
			perr = err
		}
	}
	if perr != nil {
		analysis = models.FormAnalysis{Status: models.ParseStatusUnparsed, Raw: raw}
	}

	analysis.References = references
	analysis.Model = llm.ModelName(f.llm)
	analysis.AnalyzedAt = time.Now().UTC()

	fields := map[string]any{"references": len(references)}
	if analysis.Parsed() {
		fields["confidence"] = *analysis.Confidence
		fields["non_compliant"] = len(analysis.NonCompliant())
		f.sink.Emit(telemetry.Completed(telemetry.StageFormAnalysis, start, fields))
	} else {
		f.sink.Emit(telemetry.Degraded(telemetry.StageFormAnalysis, start, perr.Error(), fields))
	}
	return &analysis, nil
}

// references retrieves corpus passages on form rules; failures fall back to the built-in guidance
func (f *FormAnalyzer) references(ctx context.Context) []models.Passage {
	if f.retriever == nil || f.cfg.ReferenceK < 0 {
		return []models.Passage{}
	}
	passages, err := f.retriever.Retrieve(ctx, formReferenceQueries, f.cfg.ReferenceK)
	if err != nil {
		f.logger.Warn("form references unavailable, using built-in guidance", "err", err)
		return []models.Passage{}
	}
	return LimitPassages(DedupePassages(passages), maxFormReferences)
}

func requirementSchema() map[string]interface{} {
	states := make([]interface{}, len(models.ConformityStates))
	for i, s := range models.ConformityStates {
		states[i] = string(s)
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"etat":        map[string]interface{}{"type": "string", "enum": states},
			"explication": map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"etat"},
	}
}

var requirementNames = []string{"ecriture", "date", "signature", "visas", "considerants", "dispositif", "publication", "transmission"}

// formSchema is the JSON schema the normalized form analysis must satisfy
var formSchema = func() map[string]interface{} {
	types := make([]interface{}, len(models.DocumentTypes))
	for i, t := range models.DocumentTypes {
		types[i] = string(t)
	}
	requirements := make(map[string]interface{}, len(requirementNames))
	required := make([]interface{}, len(requirementNames))
	for i, name := range requirementNames {
		requirements[name] = requirementSchema()
		required[i] = name
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"type_de_document": map[string]interface{}{"type": "string", "enum": types},
			"conformite_aux_exigences_legales": map[string]interface{}{
				"type":       "object",
				"properties": requirements,
				"required":   required,
			},
			"observation":         map[string]interface{}{"type": "string"},
			"niveau_de_confiance": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 100},
			"collectivite":        map[string]interface{}{"type": "string"},
			"signataire":          map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"type_de_document", "conformite_aux_exigences_legales", "niveau_de_confiance"},
	}
}()

type strictForm struct {
	DocumentType models.DocumentType     `json:"type_de_document"`
	Requirements models.FormRequirements `json:"conformite_aux_exigences_legales"`
	Observation  string                  `json:"observation"`
	Confidence   float64                 `json:"niveau_de_confiance"`
	Authority    string                  `json:"collectivite"`
	Signatory    string                  `json:"signataire"`
}

// ParseFormAnalysis normalizes model output (accents in keys, state spelling, "85 %" confidences)
// and validates it against formSchema
func ParseFormAnalysis(raw string) (models.FormAnalysis, error) {
	malformed := func(reason string) (models.FormAnalysis, error) {
		return models.FormAnalysis{}, &models.MalformedOutputError{Stage: telemetry.StageFormAnalysis, Reason: reason, Raw: raw}
	}

	doc := extractJSONObject(raw)
	if doc == "" {
		return malformed("no JSON object")
	}
	var generic map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &generic); err != nil {
		return malformed(err.Error())
	}
	normalized := normalizeForm(generic)

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(formSchema), gojsonschema.NewGoLoader(normalized))
	if err != nil {
		return malformed(err.Error())
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return malformed("schema validation failed: " + strings.Join(errs, ", "))
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return malformed(err.Error())
	}
	var sf strictForm
	if err := json.Unmarshal(data, &sf); err != nil {
		return malformed(err.Error())
	}

	confidence := sf.Confidence
	return models.FormAnalysis{
		Status:       models.ParseStatusParsed,
		DocumentType: sf.DocumentType,
		Requirements: sf.Requirements,
		Observation:  sf.Observation,
		Confidence:   &confidence,
		Authority:    sf.Authority,
		Signatory:    sf.Signatory,
		Raw:          raw,
	}, nil
}

func normalizeForm(in map[string]interface{}) map[string]interface{} {
	out := foldKeys(in)

	if t, ok := out["type_de_document"].(string); ok {
		out["type_de_document"] = normalizeDocumentType(t)
	}
	if c, ok := out["niveau_de_confiance"].(string); ok {
		if v, err := parsePercent(c); err == nil {
			out["niveau_de_confiance"] = v
		}
	}
	if reqs, ok := out["conformite_aux_exigences_legales"].(map[string]interface{}); ok {
		reqs = foldKeys(reqs)
		for name, v := range reqs {
			check, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			check = foldKeys(check)
			if s, ok := check["etat"].(string); ok {
				check["etat"] = normalizeState(s)
			}
			reqs[name] = check
		}
		out["conformite_aux_exigences_legales"] = reqs
	}
	return out
}

// foldKeys lowercases keys and strips their accents
func foldKeys(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[fold(k)] = v
	}
	return out
}

func normalizeDocumentType(s string) string {
	folded := fold(s)
	for _, t := range models.DocumentTypes {
		if strings.HasPrefix(folded, fold(string(t))) {
			return string(t)
		}
	}
	return s
}

func normalizeState(s string) string {
	folded := strings.Join(strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(fold(s))), " ")
	for _, st := range models.ConformityStates {
		if folded == string(st) {
			return string(st)
		}
	}
	return s
}

func parsePercent(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

// fold lowercases s and removes combining marks, so "Considérants" becomes "considerants"
func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func formRepairPrompt(raw string, cause error) string {
	return fmt.Sprintf(`La réponse suivante ne respecte pas le format attendu (%s).
Reformule-la en un unique objet JSON, sans texte autour, au format :
%s

Réponse :
%s`, cause, formJSONShape, raw)
}
