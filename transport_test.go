package clientconn

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeTransport struct {
	kind      Kind
	connected bool
	sent      []string
	failAfter int
	closed    bool
}

func (f *fakeTransport) Kind() Kind {
	return f.kind
}

func (f *fakeTransport) Send(msg string) error {
	if f.failAfter >= 0 && len(f.sent) >= f.failAfter {
		return errors.New("write failed")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	return f.connected
}

func (f *fakeTransport) Reconnect(context.Context) error {
	f.connected = true
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	f.connected = false
	return nil
}

func newFakeTransport(kind Kind) *fakeTransport {
	return &fakeTransport{kind: kind, connected: true, failAfter: -1}
}

func TestSelectTransport(t *testing.T) {
	testCases := []struct {
		name      string
		kinds     []Kind
		failing   map[Kind]bool
		wantKind  Kind
		wantTried []Kind
		shouldErr bool
	}{
		{
			"socket preferred when it works",
			[]Kind{KindSocket, KindPoll},
			nil,
			KindSocket,
			[]Kind{KindSocket},
			false,
		},
		{
			"falls back to polling",
			[]Kind{KindSocket, KindPoll},
			map[Kind]bool{KindSocket: true},
			KindPoll,
			[]Kind{KindSocket, KindPoll},
			false,
		},
		{
			"socket disabled",
			[]Kind{KindPoll},
			nil,
			KindPoll,
			[]Kind{KindPoll},
			false,
		},
		{
			"all candidates fail",
			[]Kind{KindSocket, KindPoll},
			map[Kind]bool{KindSocket: true, KindPoll: true},
			KindNone,
			[]Kind{KindSocket, KindPoll},
			true,
		},
		{
			"no candidates",
			[]Kind{},
			nil,
			KindNone,
			[]Kind{},
			true,
		},
	}

	for _, testCase := range testCases {
		tc := testCase
		t.Run(tc.name, func(t *testing.T) {
			tried := make([]Kind, 0)
			build := func(ctx context.Context, kind Kind) (Transport, error) {
				tried = append(tried, kind)
				if tc.failing[kind] {
					return nil, errors.New("unsupported")
				}
				return newFakeTransport(kind), nil
			}

			tr, err := selectTransport(context.Background(), tc.kinds, build, newNullLogger())
			if !reflect.DeepEqual(tried, tc.wantTried) {
				t.Errorf("expected to try %v, tried %v", tc.wantTried, tried)
			}
			if tc.shouldErr {
				if err == nil {
					t.Fatal("expected selectTransport to fail but it didn't")
				}
				if !errors.Is(err, ErrNoTransport) {
					t.Errorf("expected error to wrap ErrNoTransport, got %v", err)
				}
				var noTransport NoTransportError
				if !errors.As(err, &noTransport) {
					t.Fatalf("expected a NoTransportError, got %T", err)
				}
				if len(noTransport.Failures) != len(tc.wantTried) {
					t.Errorf("expected %d recorded failures, got %d", len(tc.wantTried), len(noTransport.Failures))
				}
				for i, f := range noTransport.Failures {
					if f.Kind != tc.wantTried[i] {
						t.Errorf("failure %d: expected kind %s, got %s", i, tc.wantTried[i], f.Kind)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("didn't expect selectTransport to fail but it did: %v", err)
			}
			if tr.Kind() != tc.wantKind {
				t.Errorf("expected %s transport, got %s", tc.wantKind, tr.Kind())
			}
		})
	}
}

func TestSelectTransportCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	built := false
	build := func(ctx context.Context, kind Kind) (Transport, error) {
		built = true
		return newFakeTransport(kind), nil
	}
	if _, err := selectTransport(ctx, []Kind{KindSocket, KindPoll}, build, newNullLogger()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if built {
		t.Error("no transport should be built with a canceled context")
	}
}

func TestKindString(t *testing.T) {
	for kind, want := range map[Kind]string{KindNone: "none", KindSocket: "socket", KindPoll: "poll", Kind(42): "none"} {
		if kind.String() != want {
			t.Errorf("expected %q, got %q", want, kind.String())
		}
	}
}

func TestSendKeepsQueueWhenFlushFails(t *testing.T) {
	conn, err := NewConn("example.com", WithMessageHandler(func(string) {}))
	if err != nil {
		t.Fatalf("failed to create conn (%v)", err)
	}

	for _, msg := range []string{"one", "two"} {
		if err := conn.Send(msg); err != nil {
			t.Fatalf("queueing %q failed (%v)", msg, err)
		}
	}

	fake := newFakeTransport(KindSocket)
	fake.failAfter = 1
	conn.active = fake

	err = conn.Send("three")
	var sendErr SendFailedError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected a SendFailedError, got %v", err)
	}
	if sendErr.Kind != KindSocket {
		t.Errorf("expected failure on socket transport, got %s", sendErr.Kind)
	}
	if !reflect.DeepEqual(fake.sent, []string{"one"}) {
		t.Errorf("unexpected messages written %q", fake.sent)
	}
	if conn.Pending() != 2 {
		t.Errorf("expected two messages to stay queued, got %d", conn.Pending())
	}

	fake.failAfter = -1
	if err := conn.Send("four"); err != nil {
		t.Fatalf("expected send to succeed (%v)", err)
	}
	if !reflect.DeepEqual(fake.sent, []string{"one", "two", "three", "four"}) {
		t.Errorf("unexpected messages written %q", fake.sent)
	}
	if conn.Pending() != 0 {
		t.Errorf("expected empty queue, got %d", conn.Pending())
	}
}

func TestSendQueuesWhileDisconnected(t *testing.T) {
	conn, err := NewConn("example.com", WithMessageHandler(func(string) {}))
	if err != nil {
		t.Fatalf("failed to create conn (%v)", err)
	}

	fake := newFakeTransport(KindSocket)
	fake.connected = false
	conn.active = fake

	_ = conn.Send("a")
	_ = conn.Send("b")
	if len(fake.sent) != 0 {
		t.Errorf("nothing should be written while disconnected, got %q", fake.sent)
	}
	if conn.Pending() != 2 {
		t.Errorf("expected 2 queued messages, got %d", conn.Pending())
	}

	done := false
	if err := conn.Reconnect(context.Background(), func() { done = true }); err != nil {
		t.Fatalf("reconnect failed (%v)", err)
	}
	if !done {
		t.Error("expected done to be called after reconnect")
	}
	if !reflect.DeepEqual(fake.sent, []string{"a", "b"}) {
		t.Errorf("expected queue to flush in order, got %q", fake.sent)
	}

	_ = conn.Send("c")
	if !reflect.DeepEqual(fake.sent, []string{"a", "b", "c"}) {
		t.Errorf("expected direct send after flush, got %q", fake.sent)
	}
}
