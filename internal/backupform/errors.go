package backupform

import (
	"errors"
	"fmt"
)

// ErrSubmissionInProgress is returned when a submission is attempted while
// another one from the same form is still waiting on the server.
var ErrSubmissionInProgress = errors.New("backup submission already in progress")

// ErrMissingHandle is returned by NewController when a required handle is nil.
var ErrMissingHandle = errors.New("required form element missing")

// ValidationReason identifies why the form was rejected before any network call.
type ValidationReason string

const (
	ReasonMissingSources ValidationReason = "missing sources"
	ReasonNoEntries      ValidationReason = "no valid entries after parsing"
)

// ValidationError is a problem with the operator's input. Nothing was sent.
type ValidationError struct {
	Field  string
	Reason ValidationReason
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// SubmissionKind separates calls that failed from calls the server refused.
type SubmissionKind string

const (
	// KindTransport covers network failures, non-2xx statuses and unreadable responses.
	KindTransport SubmissionKind = "transport"
	// KindRejected means the server answered but reported that the backup did not start.
	KindRejected SubmissionKind = "rejected"
)

// SubmissionError is a problem that happened after the request was dispatched.
type SubmissionError struct {
	Kind SubmissionKind
	Err  error
}

func (e *SubmissionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("submission error (%s)", e.Kind)
	}
	return fmt.Sprintf("submission error (%s): %v", e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
