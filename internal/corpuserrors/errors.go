// Package corpuserrors implements the stable error taxonomy surfaced across
// the catalog store, ingest coordinator, pipeline orchestrator, and control
// API, mapped to HTTP status codes by the API layer's error mapper.
package corpuserrors

import "fmt"

// Kind identifies one of the taxonomy's stable error kinds.
type Kind string

const (
	KindInputInvalid          Kind = "InputInvalid"
	KindNotFound               Kind = "NotFound"
	KindConflict               Kind = "Conflict"
	KindQuotaExceeded          Kind = "QuotaExceeded"
	KindDependencyUnavailable  Kind = "DependencyUnavailable"
	KindIntegrityMismatch      Kind = "IntegrityMismatch"
	KindStageFailed            Kind = "StageFailed"
	KindCancelled              Kind = "Cancelled"
	KindTimeout                Kind = "Timeout"
)

// httpStatus maps each Kind to the status code the Control API returns.
var httpStatus = map[Kind]int{
	KindInputInvalid:         400,
	KindNotFound:              404,
	KindConflict:              409,
	KindQuotaExceeded:         429,
	KindDependencyUnavailable: 503,
	KindIntegrityMismatch:     422,
	KindStageFailed:           500,
	KindCancelled:             409,
	KindTimeout:               504,
}

// TaxonomyError is the common shape every typed error in this package
// implements: a stable Code, a human Detail, and actionable Context hints
// (e.g. {"requested_version":5,"latest_ingested_version":4}).
type TaxonomyError struct {
	kind    Kind
	detail  string
	context map[string]any
	cause   error
}

func (e *TaxonomyError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.detail)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As chains.
func (e *TaxonomyError) Unwrap() error { return e.cause }

// Code returns the stable taxonomy kind as a string, e.g. "Conflict".
func (e *TaxonomyError) Code() string { return string(e.kind) }

// Detail returns the human-readable detail message alone, without the
// kind prefix Error() adds — this is what the API layer's error envelope
// surfaces as "detail".
func (e *TaxonomyError) Detail() string { return e.detail }

// Context returns actionable hints for the caller (nil if none).
func (e *TaxonomyError) Context() map[string]any { return e.context }

// HTTPStatus returns the status code the Control API should return.
func (e *TaxonomyError) HTTPStatus() int {
	if status, ok := httpStatus[e.kind]; ok {
		return status
	}
	return 500
}

func newError(kind Kind, detail string, cause error, context map[string]any) *TaxonomyError {
	return &TaxonomyError{kind: kind, detail: detail, cause: cause, context: context}
}

// InputInvalidError — malformed request or schema violation. Surfaced to
// the caller directly; never retried server-side.
func InputInvalidError(detail string, context map[string]any) *TaxonomyError {
	return newError(KindInputInvalid, detail, nil, context)
}

// NotFoundError — a referenced entity does not exist.
func NotFoundError(detail string, context map[string]any) *TaxonomyError {
	return newError(KindNotFound, detail, nil, context)
}

// ConflictError — uniqueness or state-machine violation (RunAlreadyActive,
// AlreadySucceeded, DuplicateKey).
func ConflictError(detail string, cause error, context map[string]any) *TaxonomyError {
	return newError(KindConflict, detail, cause, context)
}

// QuotaExceededError — the billing collaborator denied the operation.
func QuotaExceededError(detail string, context map[string]any) *TaxonomyError {
	return newError(KindQuotaExceeded, detail, nil, context)
}

// DependencyUnavailableError — catalog/blob/vector store transient
// failure. Retried at the infrastructure boundary with bounded exponential
// backoff; surfaced as 503 after the retry budget is exhausted.
func DependencyUnavailableError(detail string, cause error) *TaxonomyError {
	return newError(KindDependencyUnavailable, detail, cause, nil)
}

// IntegrityMismatchError — a RawFile's ETag/checksum differs from the
// registered value. Marks the file FAILED; never aborts the run.
func IntegrityMismatchError(detail string, context map[string]any) *TaxonomyError {
	return newError(KindIntegrityMismatch, detail, nil, context)
}

// StageFailedError — a stage reported FAILED. Recorded on the
// StageExecution; the run transitions to FAILED unless the per-stage
// partial-failure policy tolerates it.
func StageFailedError(stageName string, cause error) *TaxonomyError {
	return newError(KindStageFailed, fmt.Sprintf("stage %s failed", stageName), cause,
		map[string]any{"stage_name": stageName})
}

// CancelledError — cancellation observed at a stage boundary.
func CancelledError(detail string) *TaxonomyError {
	return newError(KindCancelled, detail, nil, nil)
}

// TimeoutError — the per-stage deadline was exceeded.
func TimeoutError(stageName string) *TaxonomyError {
	return newError(KindTimeout, fmt.Sprintf("stage %s exceeded its deadline", stageName), nil,
		map[string]any{"stage_name": stageName})
}
