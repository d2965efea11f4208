package sseclient

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedStatus is returned when the endpoint answers with anything
	// but 200.
	ErrUnexpectedStatus = errors.New("sseclient: unexpected status")
	// ErrUnexpectedContentType is returned when a 200 response is not an
	// event stream.
	ErrUnexpectedContentType = errors.New("sseclient: unexpected content type")
	// ErrClosed is returned by Open on a subscription that was closed.
	ErrClosed = errors.New("sseclient: subscription closed")
	// ErrAlreadyOpened is returned by a second call to Open.
	ErrAlreadyOpened = errors.New("sseclient: subscription already opened")
	// ErrStreamEnded is the terminal error when the server ends the stream.
	ErrStreamEnded = errors.New("sseclient: stream ended by server")
	// ErrNotPing is returned by ParsePing for payloads of another shape.
	ErrNotPing = errors.New("sseclient: not a ping payload")
)

// StatusError carries the status and body snippet of a rejected request.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %d", ErrUnexpectedStatus, e.StatusCode)
	}
	return fmt.Sprintf("%s %d: %s", ErrUnexpectedStatus, e.StatusCode, e.Body)
}

// Unwrap makes errors.Is(err, ErrUnexpectedStatus) hold.
func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }
