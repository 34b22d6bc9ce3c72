package api

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrUnauthorized is returned when the backend rejects the token.
	ErrUnauthorized = errors.New("backend rejected token")

	// ErrNotReady is returned when the backend is not serving yet.
	ErrNotReady = errors.New("backend not ready")
)

// StatusError is a non-200 answer from /health. Reason holds the "error"
// field of the body when the backend sent one.
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("health returned %d: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("health returned %d %s", e.Code, http.StatusText(e.Code))
}

// Unwrap maps status codes onto the package sentinels.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden:
		return ErrUnauthorized
	case e.Code == http.StatusServiceUnavailable || e.Code == http.StatusBadGateway:
		return ErrNotReady
	}
	return nil
}

// transient reports whether WaitReady should ask again after err.
// A refused or reset connection means the listener is not up yet.
func transient(err error) bool {
	if errors.Is(err, ErrNotReady) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
