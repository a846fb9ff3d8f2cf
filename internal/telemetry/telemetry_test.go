// ABOUTME: Tests for pipeline event construction and the log, metrics and NATS sinks
// ABOUTME: NATS publishing is verified against an in-memory publisher
package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harper/actes-verif/internal/logging"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return p.err
}

func TestEventConstructors(t *testing.T) {
	start := time.Now().Add(-10 * time.Millisecond)

	done := Completed(StageRetrieval, start, map[string]any{"passages": 4})
	if done.Kind != KindCompleted || done.Duration < 10*time.Millisecond || done.Err != "" {
		t.Errorf("Completed() = %+v", done)
	}

	failed := Failed(StageAssessment, start, errors.New("boom"), nil)
	if failed.Kind != KindFailed || failed.Err != "boom" {
		t.Errorf("Failed() = %+v", failed)
	}

	degraded := Degraded(StageStrictParse, start, "invalid json", nil)
	if degraded.Kind != KindDegraded || degraded.Err != "invalid json" {
		t.Errorf("Degraded() = %+v", degraded)
	}
}

func TestMulti_ForwardsToAllSinks(t *testing.T) {
	var got []string
	a := SinkFunc(func(e Event) { got = append(got, "a:"+e.Stage) })
	b := SinkFunc(func(e Event) { got = append(got, "b:"+e.Stage) })

	Multi{a, nil, b}.Emit(Event{Stage: StageRetrieval})

	if strings.Join(got, ",") != "a:retrieval,b:retrieval" {
		t.Errorf("Multi.Emit() reached %v", got)
	}
}

func TestLogSink_WarnsOnFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.Options{Level: "info"})
	sink := NewLogSink(logger)

	sink.Emit(Event{Stage: StageRetrieval, Kind: KindCompleted})
	if buf.Len() != 0 {
		t.Errorf("completed event logged at info level: %q", buf.String())
	}

	sink.Emit(Event{Stage: StageAssessment, Kind: KindFailed, Err: "timeout"})
	out := buf.String()
	if !strings.Contains(out, "assessment") || !strings.Contains(out, "timeout") {
		t.Errorf("failure log = %q", out)
	}
}

func TestMetrics_CountsEvents(t *testing.T) {
	m := NewMetrics()

	m.Emit(Event{Stage: StageRetrieval, Kind: KindCompleted, Duration: time.Millisecond})
	m.Emit(Event{Stage: StageRetrieval, Kind: KindCompleted, Duration: time.Millisecond})
	m.Emit(Event{Stage: StageIngestBatch, Kind: KindCompleted, Fields: map[string]any{"inserted": 7, "duplicates": 3}})

	if got := testutil.ToFloat64(m.events.WithLabelValues(StageRetrieval, KindCompleted)); got != 2 {
		t.Errorf("retrieval completed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.inserted); got != 7 {
		t.Errorf("inserted = %v, want 7", got)
	}
	if got := testutil.ToFloat64(m.dupes); got != 3 {
		t.Errorf("duplicates = %v, want 3", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "actes_pipeline_events_total") {
		t.Error("metrics handler does not expose actes_pipeline_events_total")
	}
}

func TestNATSSink_PublishesPerStage(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewNATSSink(pub, "actes.pipeline", logging.Discard())

	sink.Emit(Event{Stage: StageConceptExtraction, Kind: KindCompleted, Fields: map[string]any{"concepts": 5}})

	if len(pub.subjects) != 1 || pub.subjects[0] != "actes.pipeline.concept_extraction" {
		t.Fatalf("subjects = %v", pub.subjects)
	}
	var e Event
	if err := json.Unmarshal(pub.payloads[0], &e); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if e.Kind != KindCompleted || e.Fields["concepts"] != float64(5) {
		t.Errorf("decoded event = %+v", e)
	}
}

func TestNATSSink_PublishErrorIsSwallowed(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("disconnected")}
	sink := NewNATSSink(pub, "actes", logging.Discard())

	sink.Emit(Event{Stage: StageRetrieval})
	if err := sink.Close(); err != nil {
		t.Errorf("Close() without connection error = %v", err)
	}
}
