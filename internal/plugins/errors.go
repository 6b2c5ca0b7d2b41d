package plugins

import (
	"errors"
	"fmt"
)

// InputError reports a malformed plugin-specific field.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid plugin field %q: %s", e.Field, e.Reason)
}

// IsInputError reports whether err is (or wraps) an InputError.
func IsInputError(err error) bool {
	var e *InputError
	return errors.As(err, &e)
}
