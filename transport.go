package clientconn

import (
	"context"
)

// Kind names a transport implementation
type Kind int

const (
	// KindNone means no transport is active
	KindNone Kind = iota
	// KindSocket is the persistent WebSocket transport
	KindSocket
	// KindPoll is the HTTP polling transport
	KindPoll
)

func (k Kind) String() string {
	switch k {
	case KindSocket:
		return "socket"
	case KindPoll:
		return "poll"
	default:
		return "none"
	}
}

// Transport is the capability every transport kind provides to a Conn
type Transport interface {
	// Kind reports which implementation this is
	Kind() Kind

	// Send hands one message to the transport
	Send(msg string) error

	// IsConnected reports whether Send will be accepted
	IsConnected() bool

	// Reconnect re-establishes the connection if it was lost. It is a no-op
	// when already connected.
	Reconnect(ctx context.Context) error

	// Close releases the transport. It is not usable afterwards.
	Close() error
}

// CloseInfo describes why a transport stopped
type CloseInfo struct {
	Transport Kind
	// Code and Text are the close frame contents when the peer sent one
	Code int
	Text string
	// Err is set when the transport failed rather than closed cleanly
	Err error
}

type transportBuilder func(ctx context.Context, kind Kind) (Transport, error)

// selectTransport tries each kind in order and returns the first transport
// that builds without error. Candidates after the first success are never
// built.
func selectTransport(ctx context.Context, kinds []Kind, build transportBuilder, logger Logger) (Transport, error) {
	failures := make([]*TransportInitError, 0, len(kinds))
	for _, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t, err := build(ctx, kind)
		if err != nil {
			logger.WithField("transport", kind.String()).WithError(err).Warn("transport init failed")
			failures = append(failures, &TransportInitError{Kind: kind, Err: err})
			continue
		}

		logger.WithField("transport", kind.String()).Debug("transport selected")
		return t, nil
	}
	return nil, NoTransportError{Failures: failures}
}
