package syncengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoIdentity is returned when there is no signed-in caller. Nothing is
// synced in that state; local edits still succeed.
var ErrNoIdentity = errors.New("no active identity")

// ErrorKind drives what the engine does with a failed call.
type ErrorKind int

const (
	// KindTransient failures are requeued and retried on the next cycle.
	KindTransient ErrorKind = iota
	// KindAuth failures are skipped and not retried automatically.
	KindAuth
	// KindMalformed payloads are dropped with an error log.
	KindMalformed
	// KindNotFound means the hub has no such record.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	case KindMalformed:
		return "malformed"
	case KindNotFound:
		return "not_found"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// RequestError is a failed hub call. Status is 0 when no response arrived.
type RequestError struct {
	Method string
	Path   string
	Status int
	Msg    string
	Err    error
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Msg)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Kind classifies the failure by status code.
func (e *RequestError) Kind() ErrorKind {
	switch {
	case e.Status == 0:
		return KindTransient
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return KindAuth
	case e.Status == http.StatusNotFound:
		return KindNotFound
	case e.Status == http.StatusRequestTimeout || e.Status == http.StatusTooManyRequests:
		return KindTransient
	case e.Status >= 500:
		return KindTransient
	}
	return KindMalformed
}

// KindOf classifies any error returned by a Transport. Unknown errors are
// treated as transient so that nothing is lost.
func KindOf(err error) ErrorKind {
	if errors.Is(err, ErrNoIdentity) {
		return KindAuth
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind()
	}
	return KindTransient
}
