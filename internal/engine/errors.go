package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures. All kinds are recoverable by the
// caller; only KindAnnotationCall causes a state transition (to StepFailed).
type ErrorKind string

const (
	KindInvalidState     ErrorKind = "invalid_state"
	KindEmptyReply       ErrorKind = "empty_reply"
	KindDuplicateSession ErrorKind = "duplicate_session"
	KindNotFound         ErrorKind = "not_found"
	KindEmptyBatch       ErrorKind = "empty_batch"
	KindTooManyArtifacts ErrorKind = "too_many_artifacts"
	KindBatchBusy        ErrorKind = "batch_busy"
	KindAnnotationCall   ErrorKind = "annotation_call"
)

// Error carries enough context (artifact, step, kind) for the caller to
// render a specific message. Callers should prefer the predicate functions
// over asserting on this type directly.
type Error struct {
	kind       ErrorKind
	artifactID string
	step       Step
	message    string
	cause      error
}

func newError(kind ErrorKind, artifactID string, step Step, message string) *Error {
	return &Error{kind: kind, artifactID: artifactID, step: step, message: message}
}

func wrapError(kind ErrorKind, artifactID string, step Step, message string, cause error) *Error {
	return &Error{kind: kind, artifactID: artifactID, step: step, message: message, cause: cause}
}

func (e *Error) Error() string {
	msg := e.message
	if msg == "" {
		msg = string(e.kind)
	}
	switch {
	case e.artifactID != "" && e.cause != nil:
		return fmt.Sprintf("%s: artifact %s (%s): %v", msg, e.artifactID, e.step, e.cause)
	case e.artifactID != "":
		return fmt.Sprintf("%s: artifact %s (%s)", msg, e.artifactID, e.step)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", msg, e.cause)
	default:
		return msg
	}
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error classification.
func (e *Error) Kind() ErrorKind { return e.kind }

// ArtifactID returns the artifact the error relates to, if any.
func (e *Error) ArtifactID() string { return e.artifactID }

// Step returns the session step at the time of the error, if any.
func (e *Error) Step() Step { return e.step }

// HasKind reports whether err is an engine error of the given kind.
func HasKind(err error, kind ErrorKind) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.kind == kind
}

func IsInvalidState(err error) bool     { return HasKind(err, KindInvalidState) }
func IsEmptyReply(err error) bool       { return HasKind(err, KindEmptyReply) }
func IsDuplicateSession(err error) bool { return HasKind(err, KindDuplicateSession) }
func IsNotFound(err error) bool         { return HasKind(err, KindNotFound) }
func IsEmptyBatch(err error) bool       { return HasKind(err, KindEmptyBatch) }
func IsTooManyArtifacts(err error) bool { return HasKind(err, KindTooManyArtifacts) }
func IsBatchBusy(err error) bool        { return HasKind(err, KindBatchBusy) }
func IsAnnotationCall(err error) bool   { return HasKind(err, KindAnnotationCall) }
