package client

import (
	"errors"
	"fmt"
)

// ErrNetwork marks request/response transport failures. The underlying cause
// is wrapped; callers present a generic "network error" message and never
// retry automatically.
var ErrNetwork = errors.New("network error")

// ValidationError reports a locally rejected input. No network call is made
// for inputs that fail validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("client: invalid %s: %s", e.Field, e.Reason)
}

// ServerError reports a non-success response carrying a structured reason.
// The Reason is the server's literal message and is surfaced to the user
// verbatim.
type ServerError struct {
	Status int
	Reason string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("client: server rejected request (%d): %s", e.Status, e.Reason)
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsServerRejection reports whether err is a structured server rejection.
func IsServerRejection(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}
