package cafeteria

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies why a request failed.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork covers transport failures: refused connections, DNS, timeouts.
	KindNetwork
	// KindNotFound is a 404. For the current-meal endpoint it means no meal is active.
	KindNotFound
	// KindUnauthorized is a 401 that survived a credential refresh.
	KindUnauthorized
	// KindStatus is any other non-2xx response.
	KindStatus
	// KindDecode means the body was not the JSON we expected.
	KindDecode
	// KindCancelled means the caller's context ended first.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is returned by every Client method that fails.
type Error struct {
	Op      string // "GET /auth/meals/current"
	Kind    Kind
	Status  int    // HTTP status, zero when no response arrived
	Message string // backend "message" field, when present
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("api %s returned status %d: %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("api %s returned status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("api %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("api %s failed (%s)", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind from err, or KindUnknown when err did not come
// from this package.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindUnknown
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsCancelled reports whether err came from a cancelled context.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

// UserMessage returns the backend's message when it sent one, or fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func kindForStatus(status int) Kind {
	switch status {
	case 404:
		return KindNotFound
	case 401:
		return KindUnauthorized
	default:
		return KindStatus
	}
}
