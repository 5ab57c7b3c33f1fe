// Package conntest provides an in-process endpoint that speaks both the
// socket and the polling side of the clientconn wire protocol.
package conntest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sessionPrefix    = "sessionID "
	partialPrefix    = "(partial) "
	partialEndPrefix = "(partialEnd) "
)

type Logger interface {
	Log(args ...any)
	Logf(format string, args ...any)
}

type discardLogger struct{}

func (discardLogger) Log(...any)          {}
func (discardLogger) Logf(string, ...any) {}

type socket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (sc *socket) write(messageType int, data []byte) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.conn.WriteMessage(messageType, data)
}

type Server struct {
	log      Logger
	upgrader websocket.Upgrader
	http     *httptest.Server

	mu               sync.Mutex
	refuseUpgrade    bool
	sessionID        string
	sessionAssigned  bool
	pollFailures     int
	echo             bool
	fragmentSize     int
	pending          []string
	polls            [][]string
	received         []string
	sockets          []*socket
	upgrades         int
	refusedUpgrades  int
	receivedNotifier chan struct{}
}

// NewServer builds a stopped Server. A nil logger discards the server's logs.
func NewServer(logger Logger, opts ...ServerOpts) *Server {
	if logger == nil {
		logger = discardLogger{}
	}
	server := &Server{
		log:              logger,
		pending:          make([]string, 0),
		receivedNotifier: make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt.apply(server)
	}

	return server
}

func (s *Server) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.http != nil {
		return errors.New("server already running")
	}
	s.http = httptest.NewServer(s)

	return nil
}

func (s *Server) Stop(context.Context) error {
	s.mu.Lock()
	srv := s.http
	sockets := s.sockets
	s.http = nil
	s.sockets = nil
	s.mu.Unlock()

	if srv == nil {
		return errors.New("server not running")
	}
	for _, sc := range sockets {
		_ = sc.conn.Close()
	}
	srv.Close()

	return nil
}

// Address returns host:port of the running server, without a scheme
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http == nil {
		return ""
	}
	return strings.TrimPrefix(s.http.URL, "http://")
}

// Push queues raw frames for the next poll response
func (s *Server) Push(frames ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, frames...)
}

// Broadcast writes msg to every open socket as a text frame
func (s *Server) Broadcast(msg string) {
	s.broadcast(websocket.TextMessage, []byte(msg))
}

// BroadcastBinary writes data to every open socket as a binary frame
func (s *Server) BroadcastBinary(data []byte) {
	s.broadcast(websocket.BinaryMessage, data)
}

func (s *Server) broadcast(messageType int, data []byte) {
	s.mu.Lock()
	sockets := append([]*socket(nil), s.sockets...)
	s.mu.Unlock()

	for _, sc := range sockets {
		if err := sc.write(messageType, data); err != nil {
			s.log.Logf("broadcast failed: %v", err)
		}
	}
}

// DropSockets closes every open socket with a going away close frame
func (s *Server) DropSockets() {
	s.mu.Lock()
	sockets := s.sockets
	s.sockets = nil
	s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server going away")
	for _, sc := range sockets {
		sc.mu.Lock()
		_ = sc.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		sc.mu.Unlock()
		_ = sc.conn.Close()
	}
}

// Polls returns the decoded body of every poll request received so far
func (s *Server) Polls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	polls := make([][]string, len(s.polls))
	copy(polls, s.polls)
	return polls
}

// Received returns every client message, from either transport, in arrival
// order. Session control messages are not included.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

// Upgrades reports how many socket upgrades were accepted and refused
func (s *Server) Upgrades() (accepted, refused int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upgrades, s.refusedUpgrades
}

// WaitForReceived blocks until at least n client messages arrived or the
// timeout elapses
func (s *Server) WaitForReceived(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if len(s.Received()) >= n {
			return true
		}
		select {
		case <-s.receivedNotifier:
		case <-deadline:
			return false
		}
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.serveSocket(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.servePoll(w, r)
}

func (s *Server) serveSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	refuse := s.refuseUpgrade
	if refuse {
		s.refusedUpgrades++
	}
	s.mu.Unlock()
	if refuse {
		http.Error(w, "websocket not supported", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Logf("upgrade failed: %v", err)
		return
	}
	sc := &socket{conn: conn}

	s.mu.Lock()
	s.upgrades++
	s.sockets = append(s.sockets, sc)
	s.mu.Unlock()

	go s.readSocket(sc)
}

func (s *Server) readSocket(sc *socket) {
	for {
		_, data, err := sc.conn.ReadMessage()
		if err != nil {
			return
		}
		msg := string(data)
		s.record(msg)

		s.mu.Lock()
		echo := s.echo
		s.mu.Unlock()
		if echo {
			if err := sc.write(websocket.TextMessage, data); err != nil {
				s.log.Logf("echo failed: %v", err)
				return
			}
		}
	}
}

func (s *Server) servePoll(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := r.Body.Close(); err != nil {
			s.log.Logf("could not close test server request body: %+v", err)
		}
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	var msgs []string
	if err := json.Unmarshal(body, &msgs); err != nil {
		http.Error(w, "expected a JSON array of strings", http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	s.polls = append(s.polls, msgs)
	if s.pollFailures > 0 {
		s.pollFailures--
		s.mu.Unlock()
		http.Error(w, "try again later", http.StatusServiceUnavailable)
		return
	}
	replies := make([]string, 0)
	if s.sessionID != "" && !s.sessionAssigned {
		s.sessionAssigned = true
		replies = append(replies, sessionPrefix+s.sessionID)
	}
	replies = append(replies, s.pending...)
	s.pending = make([]string, 0)
	echo := s.echo
	fragmentSize := s.fragmentSize
	s.mu.Unlock()

	for _, msg := range msgs {
		if strings.HasPrefix(msg, sessionPrefix) {
			continue
		}
		s.record(msg)
		if echo {
			replies = append(replies, fragment(msg, fragmentSize)...)
		}
	}

	reply, err := json.Marshal(replies)
	if err != nil {
		http.Error(w, "issue marshaling body", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(reply)
}

func (s *Server) record(msg string) {
	s.mu.Lock()
	s.received = append(s.received, msg)
	s.mu.Unlock()

	select {
	case s.receivedNotifier <- struct{}{}:
	default:
	}
}

// fragment splits msg into partial frames of at most size bytes. Messages
// that fit go out as a single plain frame.
func fragment(msg string, size int) []string {
	if size <= 0 || len(msg) <= size {
		return []string{msg}
	}

	frames := make([]string, 0, len(msg)/size+1)
	for len(msg) > size {
		frames = append(frames, partialPrefix+msg[:size])
		msg = msg[size:]
	}
	return append(frames, partialEndPrefix+msg)
}
