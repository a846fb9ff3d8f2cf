// ABOUTME: Typed pipeline errors for extraction, embedding, retrieval and assessment
// ABOUTME: Each kind wraps its cause and is matched with errors.As through the Is* helpers
package models

import (
	"errors"
	"fmt"
)

var (
	// ErrEmbeddingSpaceMismatch is returned when a collection was built with a different embedding model or dimension
	ErrEmbeddingSpaceMismatch = errors.New("embedding space mismatch")
	// ErrEmptyDocument is returned when a document has no usable text
	ErrEmptyDocument = errors.New("document is empty")
)

// ExtractionError reports that a source could not be turned into text
type ExtractionError struct {
	Locator string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Locator, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError wraps err as an extraction failure for locator
func NewExtractionError(locator string, err error) error {
	return &ExtractionError{Locator: locator, Err: err}
}

// EmbeddingError reports that the embedding provider failed or rejected its input
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding %s: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// NewEmbeddingError wraps err as an embedding failure
func NewEmbeddingError(op string, err error) error {
	return &EmbeddingError{Op: op, Err: err}
}

// RetrievalError reports that the corpus store could not be read or written
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("corpus %s: %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// NewRetrievalError wraps err as a corpus store failure
func NewRetrievalError(op string, err error) error {
	return &RetrievalError{Op: op, Err: err}
}

// AssessmentError reports that a language model call failed during a pipeline stage
type AssessmentError struct {
	Stage string
	Err   error
}

func (e *AssessmentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *AssessmentError) Unwrap() error {
	return e.Err
}

// NewAssessmentError wraps err as a language model failure in stage
func NewAssessmentError(stage string, err error) error {
	return &AssessmentError{Stage: stage, Err: err}
}

// MalformedOutputError reports model output that does not match its expected shape.
// The pipeline degrades to an unparsed result instead of returning it to callers.
type MalformedOutputError struct {
	Stage  string
	Reason string
	Raw    string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("%s: malformed model output: %s", e.Stage, e.Reason)
}

// IsExtraction reports whether err is an ExtractionError
func IsExtraction(err error) bool {
	var target *ExtractionError
	return errors.As(err, &target)
}

// IsEmbedding reports whether err is an EmbeddingError
func IsEmbedding(err error) bool {
	var target *EmbeddingError
	return errors.As(err, &target)
}

// IsRetrieval reports whether err is a RetrievalError
func IsRetrieval(err error) bool {
	var target *RetrievalError
	return errors.As(err, &target)
}

// IsAssessment reports whether err is an AssessmentError
func IsAssessment(err error) bool {
	var target *AssessmentError
	return errors.As(err, &target)
}

// IsMalformedOutput reports whether err is a MalformedOutputError
func IsMalformedOutput(err error) bool {
	var target *MalformedOutputError
	return errors.As(err, &target)
}

// ErrorKind names the pipeline error kind of err for logs and API responses
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsEmbedding(err):
		return "embedding"
	case IsRetrieval(err):
		return "retrieval"
	case IsAssessment(err):
		return "assessment"
	case IsExtraction(err):
		return "extraction"
	case IsMalformedOutput(err):
		return "malformed_output"
	case errors.Is(err, ErrEmbeddingSpaceMismatch):
		return "embedding_space_mismatch"
	default:
		return "internal"
	}
}
