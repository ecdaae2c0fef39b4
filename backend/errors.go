package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned when the backend or the storage endpoint answers with a non-2xx status
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: server returned status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: server returned status %d", e.Op, e.StatusCode)
}

// IsRecoverable reports whether retrying the same request may succeed
func (e *StatusError) IsRecoverable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

func NewStatusError(op string, statusCode int, body string) *StatusError {
	return &StatusError{Op: op, StatusCode: statusCode, Body: body}
}

// DecodeError is returned when a 2xx response body cannot be used
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: failed to decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func NewDecodeError(op string, err error) *DecodeError {
	return &DecodeError{Op: op, Err: err}
}

func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsRecoverableError returns true for transport failures and recoverable status codes.
// Malformed responses and client errors are not worth repeating.
func IsRecoverableError(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.IsRecoverable()
	}
	return !IsDecodeError(err)
}
