// ABOUTME: Tests for the Assessor pipeline end to end with a scripted language model
// ABOUTME: Covers grounding, empty evidence, unparsed output, strict mode and failure propagation

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

const policeDecree = `Le maire de Béziers,

Vu l'article L.9999-9 du code imaginaire qui lui confère tous pouvoirs,

Arrête : la police municipale assure la sécurité du marché hebdomadaire.`

func newTestAssessor(t *testing.T, llm *scriptedLLM, searcher Searcher, cfg AssessorConfig, rec *eventRecorder) *Assessor {
	t.Helper()
	var sink telemetry.Sink = telemetry.Nop
	if rec != nil {
		sink = rec
	}
	return NewAssessor(llm,
		NewConceptExtractor(llm, 0, sink),
		NewEvidenceRetriever(searcher, 2, sink),
		cfg, sink, nil)
}

func TestAssess_GroundedPipeline(t *testing.T) {
	corpus, _ := newTestCorpus(t)
	seedCorpus(t, corpus,
		"Article L.2212-1: Le maire est chargé de la police municipale.",
		"Article L.2213-1: Le maire exerce la police de la circulation sur les routes nationales.",
	)

	llm := pipelineLLM("pouvoirs de police du maire, marché hebdomadaire", sampleVerdict, "", nil)
	rec := &eventRecorder{}
	a := newTestAssessor(t, llm, corpus, AssessorConfig{}, rec)

	v, err := a.Assess(context.Background(), policeDecree)
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}

	if !v.Parsed() || *v.Confidence != 72 {
		t.Errorf("verdict confidence = %v, status %s", v.Confidence, v.Status)
	}
	if !reflect.DeepEqual(v.Concepts, []string{"pouvoirs de police du maire", "marché hebdomadaire"}) {
		t.Errorf("Concepts = %v", v.Concepts)
	}
	if v.ConceptStatus != models.ParseStatusParsed || v.EvidenceAbsent || len(v.Evidence) == 0 {
		t.Errorf("verdict = %+v", v)
	}
	if v.Evidence[0].Concept != "pouvoirs de police du maire" || v.Evidence[0].Chunk.ArticleRef != "L.2212-1" {
		t.Errorf("first evidence = %+v", v.Evidence[0])
	}
	if v.Model != "stub-model" || v.Strict || v.AssessedAt.IsZero() {
		t.Errorf("verdict metadata = model %q strict %v at %v", v.Model, v.Strict, v.AssessedAt)
	}

	prompts := llm.promptsContaining("DOCUMENT À ANALYSER")
	if len(prompts) != 1 {
		t.Fatalf("assessment prompts = %d, want 1", len(prompts))
	}
	prompt := prompts[0]
	for _, want := range []string{
		"exclusivement",
		"Ignore toute référence juridique que le document lui-même affirme",
		"Le maire est chargé de la police municipale.",
		"cgct.txt, article L.2212-1",
		HeadingConfidence, HeadingAnalysis, HeadingConcepts, HeadingConsistent,
		HeadingDivergent, HeadingCitations, HeadingConclusion,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("assessment prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, NoEvidenceNotice) {
		t.Error("prompt claims no evidence although passages were found")
	}

	for _, stage := range []string{telemetry.StageConceptExtraction, telemetry.StageRetrieval, telemetry.StageAssessment} {
		if kinds := rec.kinds(stage); !reflect.DeepEqual(kinds, []string{telemetry.KindCompleted}) {
			t.Errorf("%s events = %v", stage, kinds)
		}
	}
}

func TestAssess_EmptyCorpusStillReturnsVerdict(t *testing.T) {
	corpus, _ := newTestCorpus(t)
	llm := pipelineLLM("police municipale, marché", "Indice de confiance : 20 %\nConclusion : aucune référence.", "", nil)
	a := newTestAssessor(t, llm, corpus, AssessorConfig{}, nil)

	v, err := a.Assess(context.Background(), policeDecree)
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
	if !v.EvidenceAbsent || len(v.Evidence) != 0 || v.Evidence == nil {
		t.Errorf("Evidence = %v, absent %v, want empty non-nil and absent", v.Evidence, v.EvidenceAbsent)
	}
	prompt := llm.promptsContaining("DOCUMENT À ANALYSER")[0]
	if !strings.Contains(prompt, NoEvidenceNotice) {
		t.Error("prompt does not state that no reference was found")
	}
}

func TestAssess_EvidenceCapped(t *testing.T) {
	s := newStubSearcher()
	concepts := []string{"c0", "c1", "c2", "c3", "c4", "c5"}
	for _, c := range concepts {
		s.results[c] = results(c, 0.9, 0.8)
	}
	llm := pipelineLLM(strings.Join(concepts, ", "), sampleVerdict, "", nil)
	a := newTestAssessor(t, llm, s, AssessorConfig{ConceptCount: 6, MaxEvidence: 10}, nil)

	v, err := a.Assess(context.Background(), policeDecree)
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
	if len(v.Evidence) != 10 {
		t.Errorf("len(Evidence) = %d, want 10", len(v.Evidence))
	}
	if v.Evidence[9].Concept != "c4" {
		t.Errorf("last kept passage concept = %s, want c4", v.Evidence[9].Concept)
	}
}

func TestAssess_UnparsedConceptsFallBackToDocumentQuery(t *testing.T) {
	s := newStubSearcher()
	llm := pipelineLLM(" , ,", sampleVerdict, "", nil)
	a := newTestAssessor(t, llm, s, AssessorConfig{}, nil)

	v, err := a.Assess(context.Background(), policeDecree)
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
	if v.ConceptStatus != models.ParseStatusUnparsed || len(v.Concepts) != 0 || v.Concepts == nil {
		t.Errorf("ConceptStatus = %s, Concepts = %v", v.ConceptStatus, v.Concepts)
	}
	if len(s.calls) != 1 {
		t.Fatalf("queries = %v, want the single fallback query", s.calls)
	}
	for q := range s.calls {
		if !strings.HasPrefix(q, "Le maire de Béziers, Vu") {
			t.Errorf("fallback query = %q", q)
		}
	}
}

func TestAssess_MissingConfidenceIsUnparsedNotError(t *testing.T) {
	s := newStubSearcher()
	rec := &eventRecorder{}
	llm := pipelineLLM("police", "Le document semble correct.", "", nil)
	a := newTestAssessor(t, llm, s, AssessorConfig{}, rec)

	v, err := a.Assess(context.Background(), policeDecree)
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
	if v.Status != models.ParseStatusUnparsed || v.Confidence != nil || v.Raw != "Le document semble correct." {
		t.Errorf("verdict = %+v", v)
	}
	if kinds := rec.kinds(telemetry.StageAssessment); !reflect.DeepEqual(kinds, []string{telemetry.KindDegraded}) {
		t.Errorf("assessment events = %v", kinds)
	}
}

func TestAssess_ModelFailureReturnsNoVerdict(t *testing.T) {
	s := newStubSearcher()
	llm := pipelineLLM("police", "", "", errors.New("context deadline exceeded"))
	a := newTestAssessor(t, llm, s, AssessorConfig{}, nil)

	v, err := a.Assess(context.Background(), policeDecree)
	if v != nil {
		t.Errorf("Assess() returned a verdict on failure: %+v", v)
	}
	var ae *models.AssessmentError
	if !errors.As(err, &ae) || ae.Stage != telemetry.StageAssessment {
		t.Errorf("Assess() error = %v, want AssessmentError at assessment", err)
	}
}

func TestAssess_RetrievalFailurePropagates(t *testing.T) {
	s := newStubSearcher()
	s.fail["police"] = models.NewEmbeddingError("query", errors.New("connection refused"))
	llm := pipelineLLM("police", sampleVerdict, "", nil)
	a := newTestAssessor(t, llm, s, AssessorConfig{}, nil)

	v, err := a.Assess(context.Background(), policeDecree)
	if v != nil || !models.IsEmbedding(err) {
		t.Errorf("Assess() = %v, %v, want EmbeddingError and no verdict", v, err)
	}
	if len(llm.promptsContaining("DOCUMENT À ANALYSER")) != 0 {
		t.Error("assessment model was invoked after retrieval failed")
	}
}

func TestAssess_EmptyDocument(t *testing.T) {
	a := newTestAssessor(t, fixedLLM(""), newStubSearcher(), AssessorConfig{}, nil)
	if _, err := a.Assess(context.Background(), "  \n"); !errors.Is(err, models.ErrEmptyDocument) {
		t.Errorf("Assess() error = %v, want ErrEmptyDocument", err)
	}
}

func TestAssess_StrictPass(t *testing.T) {
	tests := []struct {
		name       string
		verdict    string
		strict     string
		wantConf   *float64
		wantStrict bool
		wantKind   string
	}{
		{
			name:       "valid json overrides",
			verdict:    sampleVerdict,
			strict:     `{"indice_de_confiance": 55, "conclusion": "validité probable", "citations": "[1]"}`,
			wantConf:   ptr(55),
			wantStrict: true,
			wantKind:   telemetry.KindCompleted,
		},
		{
			name:       "valid json rescues unparsed text",
			verdict:    "Analyse libre sans score.",
			strict:     `{"indice_de_confiance": 30, "conclusion": "douteux"}`,
			wantConf:   ptr(30),
			wantStrict: true,
			wantKind:   telemetry.KindCompleted,
		},
		{
			name:     "invalid json keeps first verdict",
			verdict:  sampleVerdict,
			strict:   `{"indice_de_confiance": "élevé"}`,
			wantConf: ptr(72),
			wantKind: telemetry.KindDegraded,
		},
		{
			name:     "invalid json on unparsed text stays unparsed",
			verdict:  "Analyse libre sans score.",
			strict:   "pas de JSON",
			wantConf: nil,
			wantKind: telemetry.KindDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &eventRecorder{}
			llm := pipelineLLM("police", tt.verdict, tt.strict, nil)
			a := newTestAssessor(t, llm, newStubSearcher(), AssessorConfig{Strict: true}, rec)

			v, err := a.Assess(context.Background(), policeDecree)
			if err != nil {
				t.Fatalf("Assess() error = %v", err)
			}
			if v.Strict != tt.wantStrict {
				t.Errorf("Strict = %v, want %v", v.Strict, tt.wantStrict)
			}
			switch {
			case tt.wantConf == nil && v.Confidence != nil:
				t.Errorf("Confidence = %v, want nil", *v.Confidence)
			case tt.wantConf != nil && (v.Confidence == nil || *v.Confidence != *tt.wantConf):
				t.Errorf("Confidence = %v, want %v", v.Confidence, *tt.wantConf)
			}
			if v.Raw != tt.verdict {
				t.Errorf("Raw = %q, want the free-text answer", v.Raw)
			}
			if kinds := rec.kinds(telemetry.StageStrictParse); !reflect.DeepEqual(kinds, []string{tt.wantKind}) {
				t.Errorf("strict events = %v, want [%s]", kinds, tt.wantKind)
			}
		})
	}
}

func ptr(f float64) *float64 { return &f }
