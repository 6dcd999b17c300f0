package lookup

import (
	"errors"
	"fmt"
)

// UserFacing is implemented by errors that carry a message meant for the
// person at the keyboard
type UserFacing interface {
	UserMessage() string
}

// userError is a sentinel whose text is shown as-is
type userError string

func (e userError) Error() string       { return string(e) }
func (e userError) UserMessage() string { return string(e) }

const (
	// ErrEmptyInput is returned for blank or whitespace-only input
	ErrEmptyInput = userError("Please enter a valid IP address or domain.")

	// ErrMissingGeoData is returned when a successful response has no usable coordinates
	ErrMissingGeoData = userError("Location data unavailable for this address.")
)

// NetworkError is a transport failure talking to the lookup backend
type NetworkError struct {
	Err     error
	Timeout bool
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("lookup request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UserMessage hides transport details behind a generic message
func (e *NetworkError) UserMessage() string {
	if e.Timeout {
		return "Request timed out."
	}
	return "Network error: could not reach the lookup service."
}

// BackendError is a failure reported by the lookup backend itself
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("lookup backend error (status %d): %s", e.Status, e.Message)
}

// UserMessage is the backend's message, verbatim
func (e *BackendError) UserMessage() string { return e.Message }

// Message returns the text to show for err
func Message(err error) string {
	if err == nil {
		return ""
	}
	var uf UserFacing
	if errors.As(err, &uf) {
		return uf.UserMessage()
	}
	return "Something went wrong"
}
