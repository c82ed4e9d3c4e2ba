package mintpipe

import "fmt"

// ErrorKind classifies a pipeline failure. Every error crossing a
// component boundary carries exactly one kind.
type ErrorKind string

const (
	KindAssetUnreadable       ErrorKind = "asset_unreadable"
	KindDuplicateRejected     ErrorKind = "duplicate_rejected"
	KindScoringUnavailable    ErrorKind = "scoring_unavailable"
	KindOriginalityRejected   ErrorKind = "originality_rejected"
	KindInvalidShares         ErrorKind = "invalid_shares"
	KindStorageUnavailable    ErrorKind = "storage_unavailable"
	KindChainSubmissionFailed ErrorKind = "chain_submission_failed"
	KindConfirmationTimeout   ErrorKind = "confirmation_timeout"
	KindCanceled              ErrorKind = "canceled"
)

// PipelineError is the tagged failure type of the mint pipeline.
// The coordinator stamps Stage when the error surfaces; leaf components
// only set Kind and Reason.
type PipelineError struct {
	Stage  Stage     `json:"stage,omitempty"`
	Kind   ErrorKind `json:"kind"`
	Reason string    `json:"reason"`
	Score  int       `json:"score,omitempty"` // measured similarity, originality rejections only
	cause  error
}

func (e *PipelineError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *PipelineError) Unwrap() error {
	return e.cause
}

// Is matches any PipelineError of the same kind.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// WithStage stamps the stage at which the error surfaced.
func (e *PipelineError) WithStage(s Stage) *PipelineError {
	e.Stage = s
	return e
}

// Retryable reports whether the kind is worth automatic retries.
// Chain submission is deliberately excluded: it is not idempotent.
func (e *PipelineError) Retryable() bool {
	return e.Kind == KindScoringUnavailable || e.Kind == KindStorageUnavailable
}

// Errf builds a PipelineError with a formatted reason.
func Errf(kind ErrorKind, format string, args ...any) *PipelineError {
	return &PipelineError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// WrapErr builds a PipelineError around an underlying cause.
func WrapErr(kind ErrorKind, cause error, reason string) *PipelineError {
	return &PipelineError{Kind: kind, Reason: reason, cause: cause}
}

// AsPipelineError coerces any error into a PipelineError, tagging
// unclassified errors with the given fallback kind so no untyped error
// escapes a component boundary.
func AsPipelineError(err error, fallback ErrorKind) *PipelineError {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*PipelineError); ok {
		return pe
	}
	return &PipelineError{Kind: fallback, Reason: err.Error(), cause: err}
}
