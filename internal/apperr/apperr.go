package apperr

import (
	"errors"
	"fmt"
)

// Sentinels for the error taxonomy shared by repos, services and the retry
// orchestrator. NotFound is terminal and non-retryable; a transient fetch
// error during polling is neither.
var (
	ErrNotFound         = errors.New("not found")
	ErrTriggerFailed    = errors.New("regeneration trigger failed")
	ErrGenerationFailed = errors.New("generation failed")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Error carries an HTTP status and machine code alongside the wrapped cause,
// for handlers that map service errors onto the response envelope.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}
