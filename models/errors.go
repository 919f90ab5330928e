package models

import "errors"

// Sentinel errors returned unwrapped by the store so handlers can map them
// to status codes with errors.Is.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// MalformedPayloadError rejects a request whose shape cannot be stored.
// It is never retried.
type MalformedPayloadError struct {
	Msg string
}

func (e *MalformedPayloadError) Error() string {
	return "malformed payload: " + e.Msg
}

// IsMalformed reports whether err is a MalformedPayloadError.
func IsMalformed(err error) bool {
	var m *MalformedPayloadError
	return errors.As(err, &m)
}
