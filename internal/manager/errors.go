package manager

import "errors"

// ErrNoActiveBackend is returned by Infer before any backend was activated.
var ErrNoActiveBackend = errors.New("no active backend")

// resourceExhaustedError signals that the compute device ran out of memory.
type resourceExhaustedError struct {
	backend string
	detail  string
}

func (e resourceExhaustedError) Error() string {
	if e.detail == "" {
		return "resource exhausted: " + e.backend
	}
	return "resource exhausted: " + e.detail
}

// Backend returns the name of the backend that ran out of memory.
func (e resourceExhaustedError) Backend() string { return e.backend }

// ErrResourceExhausted constructs the distinguished out-of-memory condition.
// Backends return it instead of a generic error when allocation fails.
func ErrResourceExhausted(backend, detail string) error {
	return resourceExhaustedError{backend: backend, detail: detail}
}

// IsResourceExhausted reports whether err is (or wraps) resource exhaustion.
func IsResourceExhausted(err error) bool {
	var e resourceExhaustedError
	return errors.As(err, &e)
}

// backendError wraps any other backend failure with the backend name. The
// message is the short description of the cause.
type backendError struct {
	backend string
	err     error
}

func (e *backendError) Error() string { return e.err.Error() }
func (e *backendError) Unwrap() error { return e.err }

// Backend returns the name of the failing backend.
func (e *backendError) Backend() string { return e.backend }

// IsBackendError reports whether err is a wrapped backend failure.
func IsBackendError(err error) bool {
	var e *backendError
	return errors.As(err, &e)
}

// BackendOf returns the name of the backend that raised err, or "" when err
// carries none.
func BackendOf(err error) string {
	var b interface{ Backend() string }
	if errors.As(err, &b) {
		return b.Backend()
	}
	return ""
}

// unknownBackendError is returned when a name is not in the catalog.
type unknownBackendError struct{ name string }

func (e unknownBackendError) Error() string { return "unknown backend: " + e.name }

func ErrUnknownBackend(name string) error { return unknownBackendError{name: name} }

// IsUnknownBackend reports whether err indicates an unregistered name.
func IsUnknownBackend(err error) bool {
	var e unknownBackendError
	return errors.As(err, &e)
}

// switchDisabledError is returned when the manager was configured immutable.
type switchDisabledError struct{}

func (switchDisabledError) Error() string { return "switch model is disabled" }

func ErrSwitchDisabled() error { return switchDisabledError{} }

// IsSwitchDisabled reports whether err indicates switching is disabled.
func IsSwitchDisabled(err error) bool {
	var e switchDisabledError
	return errors.As(err, &e)
}

// switchFailedError wraps a construction failure of the replacement backend.
// The previously active backend is still active when it is returned.
type switchFailedError struct {
	name string
	err  error
}

func (e *switchFailedError) Error() string { return e.name + ": " + e.err.Error() }
func (e *switchFailedError) Unwrap() error { return e.err }

// IsSwitchFailed reports whether err is a failed backend construction.
func IsSwitchFailed(err error) bool {
	var e *switchFailedError
	return errors.As(err, &e)
}
