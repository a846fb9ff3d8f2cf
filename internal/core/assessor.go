// ABOUTME: Assessor runs the validity pipeline: concepts, evidence, grounded prompt, verdict
// ABOUTME: Model failures fail the call whole; malformed output degrades to an unparsed verdict
package core

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/actes-verif/internal/llm"
	"github.com/harper/actes-verif/internal/logging"
	"github.com/harper/actes-verif/internal/models"
	"github.com/harper/actes-verif/internal/telemetry"
)

// fallbackQueryRunes is the document prefix used as the only query when no concept was parsed
const fallbackQueryRunes = 500

// AssessorConfig tunes the pipeline
type AssessorConfig struct {
	ConceptCount int
	KPerConcept  int
	MaxEvidence  int
	// Strict adds a schema-validated JSON restatement pass
	Strict bool
}

// DefaultAssessorConfig returns the default pipeline settings
func DefaultAssessorConfig() AssessorConfig {
	return AssessorConfig{
		ConceptCount: DefaultConceptCount,
		KPerConcept:  DefaultKPerConcept,
		MaxEvidence:  DefaultMaxEvidence,
	}
}

// Assessor produces validity verdicts for administrative acts
type Assessor struct {
	llm       llm.Invoker
	extractor *ConceptExtractor
	retriever *EvidenceRetriever
	cfg       AssessorConfig
	sink      telemetry.Sink
	logger    *log.Logger
}

// NewAssessor wires the pipeline stages together
func NewAssessor(invoker llm.Invoker, extractor *ConceptExtractor, retriever *EvidenceRetriever, cfg AssessorConfig, sink telemetry.Sink, logger *log.Logger) *Assessor {
	def := DefaultAssessorConfig()
	if cfg.ConceptCount <= 0 {
		cfg.ConceptCount = def.ConceptCount
	}
	if cfg.KPerConcept <= 0 {
		cfg.KPerConcept = def.KPerConcept
	}
	if cfg.MaxEvidence <= 0 {
		cfg.MaxEvidence = def.MaxEvidence
	}
	if sink == nil {
		sink = telemetry.Nop
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Assessor{
		llm:       invoker,
		extractor: extractor,
		retriever: retriever,
		cfg:       cfg,
		sink:      sink,
		logger:    logger.With("component", "assessor"),
	}
}

// Assess evaluates text against the corpus and returns a verdict
func (a *Assessor) Assess(ctx context.Context, text string) (*models.Verdict, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyDocument
	}

	concepts, err := a.extractor.Extract(ctx, text, a.cfg.ConceptCount)
	if err != nil {
		return nil, err
	}

	queries := concepts.Concepts
	if !concepts.Parsed() {
		a.logger.Warn("concept output unparsed, querying with the document prefix")
		queries = []string{fallbackQuery(text)}
	}

	passages, err := a.retriever.Retrieve(ctx, queries, a.cfg.KPerConcept)
	if err != nil {
		return nil, err
	}
	passages = LimitPassages(passages, a.cfg.MaxEvidence)
	if passages == nil {
		passages = []models.Passage{}
	}

	start := time.Now()
	raw, err := a.llm.Invoke(ctx, assessmentPrompt(text, concepts.Concepts, passages))
	if err != nil {
		err = models.NewAssessmentError(telemetry.StageAssessment, err)
		a.sink.Emit(telemetry.Failed(telemetry.StageAssessment, start, err, nil))
		return nil, err
	}

	v := &models.Verdict{
		Concepts:       concepts.Concepts,
		ConceptStatus:  concepts.Status,
		Evidence:       passages,
		EvidenceAbsent: len(passages) == 0,
		Model:          llm.ModelName(a.llm),
		AssessedAt:     time.Now().UTC(),
	}
	if v.Concepts == nil {
		v.Concepts = []string{}
	}
	ParseVerdict(v, raw)

	fields := map[string]any{"passages": len(passages), "evidence_absent": v.EvidenceAbsent}
	if v.Parsed() {
		fields["confidence"] = *v.Confidence
		a.sink.Emit(telemetry.Completed(telemetry.StageAssessment, start, fields))
	} else {
		a.sink.Emit(telemetry.Degraded(telemetry.StageAssessment, start, "confidence not found in model output", fields))
	}

	if a.cfg.Strict {
		a.strictPass(ctx, v)
	}
	return v, nil
}

// strictPass restates the verdict as schema-checked JSON; on any failure the first verdict stands
func (a *Assessor) strictPass(ctx context.Context, v *models.Verdict) {
	start := time.Now()

	raw, err := a.llm.Invoke(ctx, strictPrompt(v.Raw))
	if err != nil {
		a.logger.Warn("strict verdict pass failed, keeping free-text verdict", "err", err)
		a.sink.Emit(telemetry.Degraded(telemetry.StageStrictParse, start, err.Error(), nil))
		return
	}

	confidence, sections, err := ParseStrictVerdict(raw)
	if err != nil {
		a.logger.Warn("strict verdict rejected, keeping free-text verdict", "err", err)
		a.sink.Emit(telemetry.Degraded(telemetry.StageStrictParse, start, err.Error(), nil))
		return
	}

	v.Confidence = &confidence
	v.Sections = sections
	v.Status = models.ParseStatusParsed
	v.Strict = true
	a.sink.Emit(telemetry.Completed(telemetry.StageStrictParse, start, map[string]any{"confidence": confidence}))
}

func fallbackQuery(text string) string {
	return strings.Join(strings.Fields(truncateRunes(text, fallbackQueryRunes)), " ")
}
