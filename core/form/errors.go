package form

import (
	"fmt"
	"time"
)

// OptionsUnavailableError reports a failed option fetch. The field keeps an
// empty list and the caller may simply retry.
type OptionsUnavailableError struct {
	Field string
	Err   error
}

func (e *OptionsUnavailableError) Error() string {
	return fmt.Sprintf("options for %q are unavailable right now", e.Field)
}

func (e *OptionsUnavailableError) Unwrap() error { return e.Err }

// CooldownError reports a verification request made before the resend window
// elapsed.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	secs := int((e.Remaining + time.Second - 1) / time.Second)
	return fmt.Sprintf("a verification code was just sent, retry in %ds", secs)
}

// UpstreamError carries a rejection message returned by the academia API on
// a verification call.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string { return e.Message }

// SubmissionError carries the academia API's rejection of a submitted form.
// The session keeps all its values so the caller can correct and resubmit.
type SubmissionError struct {
	Message string
}

func (e *SubmissionError) Error() string { return e.Message }
