package assistant

import (
	"errors"
	"fmt"
)

// TransportError is the single failure type returned by the client. Status is
// zero when no HTTP response was received.
type TransportError struct {
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AsTransportError extracts a *TransportError from err.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

func networkError(err error) *TransportError {
	return &TransportError{Message: err.Error(), Err: err}
}

func statusError(status int, message string) *TransportError {
	if message == "" {
		message = fmt.Sprintf("HTTP %d", status)
	}
	return &TransportError{Status: status, Message: message}
}
