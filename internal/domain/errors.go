package domain

import "fmt"

// SourceError marks a fact-source failure: a fetch that errored or timed
// out. The assembler recovers it by substituting the source's documented
// default, so it never reaches the caller as a request failure.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError wraps err as a recoverable failure of the named source.
func NewSourceError(source string, err error) *SourceError {
	return &SourceError{Source: source, Err: err}
}

// InvalidInputError is a caller-facing validation failure. The assembler
// fails fast on it before issuing any fetch.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DefectError marks an assertion violation inside the pure calculation
// layer, such as a negative balance surviving normalization. It is not
// recoverable and must stay distinguishable from SourceError so callers can
// alert instead of silently degrading.
type DefectError struct {
	Op  string
	Err error
}

func (e *DefectError) Error() string {
	return fmt.Sprintf("internal defect in %s: %v", e.Op, e.Err)
}

func (e *DefectError) Unwrap() error { return e.Err }
