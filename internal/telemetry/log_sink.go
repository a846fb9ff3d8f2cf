// ABOUTME: Sink that writes pipeline events to the structured logger
// ABOUTME: Failures log at warn level and everything else at debug
package telemetry

import (
	"github.com/charmbracelet/log"
)

// LogSink logs events through a charm logger
type LogSink struct {
	logger *log.Logger
}

// NewLogSink creates a LogSink
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "pipeline")}
}

// Emit logs e
func (s *LogSink) Emit(e Event) {
	kv := []interface{}{"stage", e.Stage, "kind", e.Kind, "duration", e.Duration}
	for k, v := range e.Fields {
		kv = append(kv, k, v)
	}
	if e.Err != "" {
		kv = append(kv, "err", e.Err)
	}

	switch e.Kind {
	case KindFailed, KindDegraded:
		s.logger.Warn("stage "+e.Kind, kv...)
	default:
		s.logger.Debug("stage "+e.Kind, kv...)
	}
}
