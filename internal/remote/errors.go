package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNetwork  = errors.New("network error")
	ErrRejected = errors.New("rejected by server")
)

// NetworkError is a transport failure: no response was received. Retryable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

func (e *NetworkError) Retryable() bool { return true }

// RejectedError is an application-level failure: the server answered with a
// non-success status. Message is the server-provided text.
type RejectedError struct {
	Op      string
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, msg, e.Status)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

func (e *RejectedError) Retryable() bool { return false }

// IsRetryable reports whether err (or anything it wraps) is a transport failure.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}

// IsNotFound reports whether err is a 404 rejection.
func IsNotFound(err error) bool {
	var rej *RejectedError
	return errors.As(err, &rej) && rej.Status == http.StatusNotFound
}
