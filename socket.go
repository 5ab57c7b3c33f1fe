package clientconn

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// socketTransport carries one message per WebSocket frame. It never
// reconnects on its own; a dropped socket is reported through onClose and
// stays down until Reconnect is called.
type socketTransport struct {
	endpoint  *url.URL
	dialer    *websocket.Dialer
	header    http.Header
	state     *ConnectionStateMachine
	onMessage MessageHandler
	onClose   CloseHandler
	logger    Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newSocketTransport(ctx context.Context, endpoint *url.URL, dialer *websocket.Dialer, opts *Options, onMessage MessageHandler, onClose CloseHandler, logger Logger) (*socketTransport, error) {
	switch endpoint.Scheme {
	case "ws", "wss":
	default:
		return nil, UnsupportedSchemeError{Kind: KindSocket, Scheme: endpoint.Scheme}
	}

	s := &socketTransport{
		endpoint:  endpoint,
		dialer:    dialer,
		header:    opts.Header,
		state:     NewConnectionStateMachine(),
		onMessage: onMessage,
		onClose:   onClose,
		logger:    logger.WithField("transport", KindSocket.String()),
	}
	if err := s.Reconnect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *socketTransport) Kind() Kind {
	return KindSocket
}

func (s *socketTransport) IsConnected() bool {
	return s.state.IsConnected()
}

// Reconnect dials the endpoint unless the socket is already open
func (s *socketTransport) Reconnect(ctx context.Context) error {
	if s.state.IsConnected() {
		return nil
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}

	logger := s.logger.WithField("at", "reconnect")
	start := time.Now()
	logger.Debug("starting")
	if err := s.state.ProcessEvent(dialStarted); err != nil {
		logger.WithError(err).Debug("invalid action for current state")
		return err
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.endpoint.String(), s.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		_ = s.state.ProcessEvent(dialFailed)
		logger.WithError(err).Debug("dial failed")
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	if err := s.state.ProcessEvent(opened); err != nil {
		_ = conn.Close()
		return err
	}

	go s.readLoop(conn)
	logger.WithField("duration", time.Since(start)).Debug("finishing")
	return nil
}

// Send writes msg as a single text frame
func (s *socketTransport) Send(msg string) error {
	if !s.state.IsConnected() {
		return ErrNotConnected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	return s.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// Close sends a normal closure frame and closes the socket. The read loop
// then reports the close through onClose.
func (s *socketTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	return s.conn.Close()
}

func (s *socketTransport) readLoop(conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			s.drop(conn, err)
			return
		}

		switch messageType {
		case websocket.TextMessage:
			s.onMessage(string(data))
		case websocket.BinaryMessage:
			s.onMessage(decodeBinary(data))
		}
	}
}

func (s *socketTransport) drop(conn *websocket.Conn, err error) {
	_ = s.state.ProcessEvent(dropped)
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	closedLocally := s.closed
	s.mu.Unlock()
	_ = conn.Close()

	info := CloseInfo{Transport: KindSocket}
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr):
		info.Code = closeErr.Code
		info.Text = closeErr.Text
		s.logger.WithField("code", closeErr.Code).Info("socket closed")
	case closedLocally:
		info.Code = websocket.CloseNormalClosure
		s.logger.Debug("socket closed locally")
	default:
		// Anything but a close frame is fatal for this socket.
		info.Err = err
		s.logger.WithError(err).Error("socket failed")
	}

	if s.onClose != nil {
		s.onClose(info)
	}
}

// decodeBinary turns a binary frame into text, replacing invalid UTF-8
// sequences with U+FFFD.
func decodeBinary(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "\uFFFD")
}
