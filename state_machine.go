package clientconn

import (
	"sync/atomic"
)

// StateRepresentation represents the current state of a connection as a
// string
type StateRepresentation string

const (
	disconnected int32 = iota
	connecting
	connected
)

const (
	disconnectedRepr StateRepresentation = "DISCONNECTED"
	connectingRepr   StateRepresentation = "CONNECTING"
	connectedRepr    StateRepresentation = "CONNECTED"
)

var stateNames = []StateRepresentation{disconnectedRepr, connectingRepr, connectedRepr}

func stateName(state int32) string {
	s := int(state)
	if s < 0 || s >= len(stateNames) {
		return "unknown"
	}

	return string(stateNames[s])
}

// Event represents an event that can change the state of a state machine
type Event string

const (
	dialStarted Event = "dial started"
	dialFailed  Event = "dial failed"
	opened      Event = "socket opened"
	dropped     Event = "socket closed"
)

// ConnectionStateMachine tracks the lifecycle of a socket transport:
// disconnected -> connecting -> connected -> disconnected.
type ConnectionStateMachine struct {
	currentState *int32
}

// NewConnectionStateMachine creates a new ConnectionStateMachine in the
// disconnected state
func NewConnectionStateMachine() *ConnectionStateMachine {
	defaultState := disconnected
	return &ConnectionStateMachine{&defaultState}
}

// IsConnected reflects whether the socket is open
func (csm *ConnectionStateMachine) IsConnected() bool {
	return atomic.LoadInt32(csm.currentState) == connected
}

// CurrentState provides a string representation of the current state of the
// state machine
func (csm *ConnectionStateMachine) CurrentState() StateRepresentation {
	currentState := atomic.LoadInt32(csm.currentState)
	switch currentState {
	case connecting:
		return connectingRepr
	case connected:
		return connectedRepr
	default:
		return disconnectedRepr
	}
}

// ProcessEvent handles an event
func (csm *ConnectionStateMachine) ProcessEvent(e Event) error {
	switch e {
	case dialStarted:
		if !atomic.CompareAndSwapInt32(csm.currentState, disconnected, connecting) {
			return newBadDial(atomic.LoadInt32(csm.currentState), disconnected, connecting)
		}
	case dialFailed:
		atomic.CompareAndSwapInt32(csm.currentState, connecting, disconnected)
	case opened:
		if !atomic.CompareAndSwapInt32(csm.currentState, connecting, connected) {
			return newBadOpen(atomic.LoadInt32(csm.currentState), connecting, connected)
		}
	case dropped:
		atomic.StoreInt32(csm.currentState, disconnected)
	default:
		return UnknownEventTypeError{e}
	}
	return nil
}
