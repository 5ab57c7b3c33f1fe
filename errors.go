package clientconn

import (
	"fmt"
	"strings"
)

const (
	// ErrMissingAddress is returned by NewConn when no address is provided
	ErrMissingAddress = sentinel("expected an address")

	// ErrMissingMessageHandler is returned by NewConn when no MessageHandler
	// was configured
	ErrMissingMessageHandler = sentinel("expected a message handler")

	// ErrNotConnected is returned when writing to a transport that is not
	// connected
	ErrNotConnected = sentinel("transport not connected")

	// ErrNoTransport is wrapped by NoTransportError when every candidate
	// transport failed to initialize
	ErrNoTransport = sentinel("failed to initialize any kind of transport")

	// ErrTransportClosed is returned when using a transport after Close and
	// by a Connect that Close interrupted
	ErrTransportClosed = sentinel("transport closed")
)

type sentinel string

func (s sentinel) Error() string {
	return string(s)
}

// TransportInitError is recorded for each candidate transport that could not
// be constructed during Connect
type TransportInitError struct {
	Kind Kind
	Err  error
}

func (e TransportInitError) Error() string {
	return fmt.Sprintf("%s transport init failed (%s)", e.Kind, e.Err)
}

func (e TransportInitError) Unwrap() error {
	return e.Err
}

// NoTransportError is returned by Connect when no candidate transport could
// be established. Failures holds one entry per candidate that was tried, in
// the order they were tried.
type NoTransportError struct {
	Failures []*TransportInitError
}

func (e NoTransportError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("%s (no transports enabled)", ErrNoTransport)
	}

	reasons := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		reasons = append(reasons, f.Error())
	}
	return fmt.Sprintf("%s: %s", ErrNoTransport, strings.Join(reasons, "; "))
}

func (e NoTransportError) Unwrap() error {
	return ErrNoTransport
}

// UnsupportedSchemeError is returned when a transport is asked to use a URL
// scheme it cannot speak
type UnsupportedSchemeError struct {
	Kind   Kind
	Scheme string
}

func (e UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("%q is not a valid scheme for the %s transport", e.Scheme, e.Kind)
}

// BadResponseError is returned when we get an unexpected HTTP response from
// the polling endpoint
type BadResponseError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e BadResponseError) Error() string {
	return fmt.Sprintf(
		"expected 200 response from poll endpoint, got %d with status '%s' and body '%s'",
		e.StatusCode,
		e.Status,
		e.Body,
	)
}

// ResponseUnparsableError is returned when a poll response body is not a
// JSON array of strings
type ResponseUnparsableError struct {
	Err error
}

func (e ResponseUnparsableError) Error() string {
	return fmt.Sprintf("poll response not parseable (%s)", e.Err)
}

func (e ResponseUnparsableError) Unwrap() error {
	return e.Err
}

// SendFailedError is returned by Conn.Send when the active transport refused
// a message. The message and everything queued behind it remain queued.
type SendFailedError struct {
	Kind Kind
	Err  error
}

func (e SendFailedError) Error() string {
	return fmt.Sprintf("send over %s transport failed (%s)", e.Kind, e.Err)
}

func (e SendFailedError) Unwrap() error {
	return e.Err
}

// BadStateError is returned when the state machine transition is not valid
type BadStateError struct {
	CurrentState int32
	FromState    int32
	ToState      int32
	Message      string
}

func (e BadStateError) Error() string {
	return fmt.Sprintf("%s, (current: %s, from: %s, to: %s)", e.Message, stateName(e.CurrentState), stateName(e.FromState), stateName(e.ToState))
}

// BadDialError is returned when trying to dial but not disconnected
type BadDialError struct {
	*BadStateError
}

func newBadDial(current, from, to int32) *BadDialError {
	return &BadDialError{
		&BadStateError{
			Message:      "attempting to dial but not in disconnected state",
			CurrentState: current,
			FromState:    from,
			ToState:      to,
		},
	}
}

// BadOpenError is returned when a socket reports open but no dial was in
// progress
type BadOpenError struct {
	*BadStateError
}

func newBadOpen(current, from, to int32) *BadOpenError {
	return &BadOpenError{
		&BadStateError{
			Message:      "invalid state for socket opened event",
			CurrentState: current,
			FromState:    from,
			ToState:      to,
		},
	}
}

// UnknownEventTypeError is returned when the next state is unknown
type UnknownEventTypeError struct {
	Event
}

func (e UnknownEventTypeError) Error() string {
	return fmt.Sprintf("unknown event type (%q)", e.Event)
}
