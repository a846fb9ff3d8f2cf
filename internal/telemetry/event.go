// ABOUTME: Structured pipeline events emitted at each stage of ingestion and assessment
// ABOUTME: Sinks consume events for logs, metrics and the event bus without affecting control flow
package telemetry

import (
	"time"
)

// Pipeline stages
const (
	StageConceptExtraction = "concept_extraction"
	StageRetrieval         = "retrieval"
	StageAssessment        = "assessment"
	StageStrictParse       = "strict_parse"
	StageFormAnalysis      = "form_analysis"
	StageIngestBatch       = "ingest_batch"
	StageIngestSource      = "ingest_source"
)

// Event kinds
const (
	KindCompleted = "completed"
	KindDegraded  = "degraded"
	KindFailed    = "failed"
	KindSkipped   = "skipped"
)

// Event describes the outcome of one pipeline stage
type Event struct {
	Stage    string         `json:"stage"`
	Kind     string         `json:"kind"`
	Fields   map[string]any `json:"fields,omitempty"`
	Duration time.Duration  `json:"duration_ns"`
	Err      string         `json:"error,omitempty"`
	At       time.Time      `json:"at"`
}

// Sink receives pipeline events. Emit must not block for long and never fails the caller.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(Event)

// Emit calls f
func (f SinkFunc) Emit(e Event) { f(e) }

// Nop discards every event
var Nop Sink = SinkFunc(func(Event) {})

// Multi fans an event out to several sinks
type Multi []Sink

// Emit forwards e to every sink
func (m Multi) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// Completed builds a successful event for stage that began at start
func Completed(stage string, start time.Time, fields map[string]any) Event {
	return Event{Stage: stage, Kind: KindCompleted, Fields: fields, Duration: time.Since(start), At: time.Now().UTC()}
}

// Failed builds a failure event for stage that began at start
func Failed(stage string, start time.Time, err error, fields map[string]any) Event {
	e := Event{Stage: stage, Kind: KindFailed, Fields: fields, Duration: time.Since(start), At: time.Now().UTC()}
	if err != nil {
		e.Err = err.Error()
	}
	return e
}

// Degraded builds an event for a stage that fell back to a weaker result
func Degraded(stage string, start time.Time, reason string, fields map[string]any) Event {
	return Event{Stage: stage, Kind: KindDegraded, Fields: fields, Duration: time.Since(start), Err: reason, At: time.Now().UTC()}
}
