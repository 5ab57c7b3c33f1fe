package clientconn

import (
	"strings"
)

// Literal prefixes of the polling wire protocol
const (
	SessionPrefix    = "sessionID "
	PartialPrefix    = "(partial) "
	PartialEndPrefix = "(partialEnd) "
)

// FrameKind classifies a single string frame of a poll response
type FrameKind int

const (
	// PlainFrame is a complete message
	PlainFrame FrameKind = iota
	// SessionFrame assigns the session id for subsequent polls
	SessionFrame
	// PartialFrame carries a fragment of a message that is not finished
	PartialFrame
	// PartialEndFrame carries the last fragment of a message
	PartialEndFrame
)

func (k FrameKind) String() string {
	switch k {
	case PlainFrame:
		return "plain"
	case SessionFrame:
		return "session"
	case PartialFrame:
		return "partial"
	case PartialEndFrame:
		return "partialEnd"
	default:
		return "unknown"
	}
}

// ClassifyFrame reports the kind of frame and the payload following its
// prefix. Plain frames are returned unchanged.
func ClassifyFrame(frame string) (FrameKind, string) {
	switch {
	case strings.HasPrefix(frame, SessionPrefix):
		return SessionFrame, frame[len(SessionPrefix):]
	case strings.HasPrefix(frame, PartialPrefix):
		return PartialFrame, frame[len(PartialPrefix):]
	case strings.HasPrefix(frame, PartialEndPrefix):
		return PartialEndFrame, frame[len(PartialEndPrefix):]
	default:
		return PlainFrame, frame
	}
}

// SessionControl builds the control message that primes a poll request with
// the session id
func SessionControl(id string) string {
	return SessionPrefix + id
}

// Reassembler collapses partial fragments into whole messages. It is owned by
// a single poll loop and is not safe for concurrent use.
type Reassembler struct {
	buf strings.Builder
}

// Push feeds one classified frame into the reassembler. It returns the
// complete message and true when the frame finishes one.
func (r *Reassembler) Push(kind FrameKind, payload string) (string, bool) {
	switch kind {
	case PlainFrame:
		return payload, true
	case PartialFrame:
		r.buf.WriteString(payload)
	case PartialEndFrame:
		r.buf.WriteString(payload)
		msg := r.buf.String()
		r.buf.Reset()
		return msg, true
	}
	return "", false
}

// Buffered reports how many bytes are waiting for a terminating fragment
func (r *Reassembler) Buffered() int {
	return r.buf.Len()
}
