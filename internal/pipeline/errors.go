package pipeline

import (
	"errors"
	"net/http"
)

// Kind classifies a request failure.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindResourceExhausted Kind = "resource_exhausted"
	KindBackend           Kind = "backend"
	KindPluginNotFound    Kind = "plugin_not_found"
	KindStorage           Kind = "storage"
	KindNotFound          Kind = "not_found"
	KindSwitchDisabled    Kind = "switch_disabled"
	KindUnknownBackend    Kind = "unknown_backend"
	KindSwitchFailed      Kind = "switch_failed"
)

// Error is the caller-facing failure of a request. Msg is safe to return to
// clients; Err keeps the full cause for logs.
type Error struct {
	Kind  Kind
	Msg   string
	Stage Stage
	Err   error
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Err }

// StatusCode maps the failure kind to an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation, KindSwitchDisabled:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

var errEmptyOutput = errors.New("backend returned no image")
