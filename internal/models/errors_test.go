// ABOUTME: Tests for pipeline error kinds
// ABOUTME: Verifies wrapping, unwrapping and kind classification through fmt.Errorf chains
package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds_SurviveWrapping(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		is   func(error) bool
		kind string
	}{
		{"extraction", NewExtractionError("a.pdf", cause), IsExtraction, "extraction"},
		{"embedding", NewEmbeddingError("query", cause), IsEmbedding, "embedding"},
		{"retrieval", NewRetrievalError("nearest", cause), IsRetrieval, "retrieval"},
		{"assessment", NewAssessmentError("assessment", cause), IsAssessment, "assessment"},
		{"malformed", &MalformedOutputError{Stage: "verdict", Reason: "no confidence"}, IsMalformedOutput, "malformed_output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("retrieve concept %q: %w", "police", tt.err)
			if !tt.is(wrapped) {
				t.Errorf("kind lost after wrapping: %v", wrapped)
			}
			if got := ErrorKind(wrapped); got != tt.kind {
				t.Errorf("ErrorKind() = %q, want %q", got, tt.kind)
			}
		})
	}
}

func TestErrorKinds_Unwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := NewAssessmentError("concept_extraction", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the wrapped cause")
	}
	if err.Error() != "concept_extraction: timeout" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestErrorKind_Other(t *testing.T) {
	if got := ErrorKind(nil); got != "" {
		t.Errorf("ErrorKind(nil) = %q, want empty", got)
	}
	if got := ErrorKind(fmt.Errorf("open: %w", ErrEmbeddingSpaceMismatch)); got != "embedding_space_mismatch" {
		t.Errorf("ErrorKind() = %q", got)
	}
	if got := ErrorKind(errors.New("boom")); got != "internal" {
		t.Errorf("ErrorKind() = %q, want internal", got)
	}
}
