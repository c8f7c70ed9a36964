package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized marks a 401: the credential is missing, expired or
	// revoked. Callers use it to force a logout.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrForbidden marks a 403.
	ErrForbidden = errors.New("api: forbidden")
	// ErrNotFound marks a 404.
	ErrNotFound = errors.New("api: not found")
	// ErrUnavailable covers every other failed call: transport errors,
	// validation rejections and server errors are indistinguishable here.
	ErrUnavailable = errors.New("api: request failed")
)

// Error carries the HTTP status and server message of a failed call.
// errors.Is matching against the sentinels above works through Unwrap.
type Error struct {
	Status    int
	Message   string
	RequestID string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrUnavailable
	}
}
