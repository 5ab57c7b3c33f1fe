package clientconn

import "testing"

func TestNewConnectionStateMachineDefaults(t *testing.T) {
	csm := NewConnectionStateMachine()
	if csm.IsConnected() == true {
		t.Error("expected IsConnected() to be false, got true")
	}
	if csm.CurrentState() != disconnectedRepr {
		t.Errorf("expected CurrentState() to be %q, got %q", disconnectedRepr, csm.CurrentState())
	}
	*csm.currentState = connected
	if csm.IsConnected() != true {
		t.Error("expected IsConnected() to be true, got false")
	}
}

func TestProcessEvent(t *testing.T) {
	testCases := []struct {
		name          string
		startingState int32
		event         Event
		shouldErr     bool
		endingState   int32
	}{
		{
			"disconnected state machine gets dial started event",
			disconnected,
			dialStarted,
			false,
			connecting,
		},
		{
			"disconnected state machine gets socket opened event",
			disconnected,
			opened,
			true,
			disconnected,
		},
		{
			"disconnected state machine gets unknown event",
			disconnected,
			"random",
			true,
			disconnected,
		},
		{
			"disconnected state machine gets socket closed",
			disconnected,
			dropped,
			false,
			disconnected,
		},
		{
			"connecting state machine gets socket opened event",
			connecting,
			opened,
			false,
			connected,
		},
		{
			"connecting state machine gets dial failed",
			connecting,
			dialFailed,
			false,
			disconnected,
		},
		{
			"connecting state machine gets dial started",
			connecting,
			dialStarted,
			true,
			connecting,
		},
		{
			"connected state machine gets dial started",
			connected,
			dialStarted,
			true,
			connected,
		},
		{
			"connected state machine gets dial failed",
			connected,
			dialFailed,
			false,
			connected,
		},
		{
			"connected state machine gets socket closed",
			connected,
			dropped,
			false,
			disconnected,
		},
		{
			"connected state machine gets unknown event",
			connected,
			"random",
			true,
			connected,
		},
	}

	for _, testCase := range testCases {
		tc := testCase
		t.Run(tc.name, func(t *testing.T) {
			startingState := tc.startingState
			csm := &ConnectionStateMachine{&startingState}
			err := csm.ProcessEvent(tc.event)
			if tc.shouldErr && err == nil {
				t.Error("expected ProcessEvent to error but it didn't")
			}
			if !tc.shouldErr && err != nil {
				t.Errorf("didn't expect ProcessEvent to error but it did: %q", err)
			}
			if tc.endingState != *csm.currentState {
				t.Errorf("unexpected ending state: want %s, got %s", stateName(tc.endingState), stateName(*csm.currentState))
			}
		})
	}
}
