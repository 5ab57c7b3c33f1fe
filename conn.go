package clientconn

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is an ordered message channel to a single endpoint. It picks the first
// transport that can be established, queues outbound messages while no
// transport is connected, and hands every complete inbound message to the
// configured MessageHandler.
type Conn struct {
	id         string
	socketURL  *url.URL
	pollURL    *url.URL
	kinds      []Kind
	opts       *Options
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     Logger

	mu     sync.Mutex
	queue  []string
	active Transport
	// generation changes on every Connect and Close. A Connect whose
	// generation is stale once selection finishes must not install its
	// transport.
	generation uint64
}

// NewConn creates a Conn for address, which is a host with an optional port
// and path, e.g. "example.com:8080/chat". The socket transport dials
// SocketScheme://address and the polling transport posts to
// PollScheme://address.
func NewConn(address string, opts ...Option) (*Conn, error) {
	if address == "" {
		return nil, ErrMissingAddress
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.OnMessage == nil {
		return nil, ErrMissingMessageHandler
	}

	socketURL, err := url.Parse(options.SocketScheme + "://" + address)
	if err != nil {
		return nil, err
	}
	pollURL, err := url.Parse(options.PollScheme + "://" + address)
	if err != nil {
		return nil, err
	}

	jar, err := newCookieJar()
	if err != nil {
		return nil, err
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(options.HTTPTransport, jar)
	}
	dialer := options.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		d.Jar = jar
		dialer = &d
	}

	id := uuid.NewString()
	return &Conn{
		id:         id,
		socketURL:  socketURL,
		pollURL:    pollURL,
		kinds:      options.candidates(),
		opts:       options,
		httpClient: httpClient,
		dialer:     dialer,
		logger:     options.Logger.WithField("conn", id),
		queue:      make([]string, 0),
	}, nil
}

// Connect establishes the first transport that can be built, trying the
// socket transport before the polling transport. Messages queued by Send are
// flushed before done is called. If no transport can be built the returned
// error is a NoTransportError. Calling Connect again closes the transport
// that was active. If Close or another Connect runs before selection
// finishes, the transport just built is closed and ErrTransportClosed is
// returned.
func (c *Conn) Connect(ctx context.Context, done func()) error {
	logger := c.logger.WithField("at", "connect")
	start := time.Now()
	logger.Debug("starting")

	c.mu.Lock()
	c.generation++
	generation := c.generation
	previous := c.active
	c.active = nil
	c.mu.Unlock()
	if previous != nil {
		_ = previous.Close()
	}

	t, err := selectTransport(ctx, c.kinds, c.build, logger)
	if err != nil {
		logger.WithError(err).Error("no transport available")
		return err
	}

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		logger.WithField("transport", t.Kind().String()).Debug("superseded while connecting")
		_ = t.Close()
		return ErrTransportClosed
	}
	c.active = t
	if err := c.flushLocked(); err != nil {
		logger.WithError(err).Warn("flush after connect failed")
	}
	c.mu.Unlock()

	logger.WithField("transport", t.Kind().String()).WithField("duration", time.Since(start)).Info("connected")
	if done != nil {
		done()
	}
	return nil
}

// Reconnect asks the active transport to restore its connection. Dropped
// sockets are never restored automatically; this is how an application does
// it. done is called once the transport is connected and the queue flushed.
func (c *Conn) Reconnect(ctx context.Context, done func()) error {
	logger := c.logger.WithField("at", "reconnect")
	c.mu.Lock()
	t := c.active
	c.mu.Unlock()
	if t == nil {
		return ErrNotConnected
	}

	if err := t.Reconnect(ctx); err != nil {
		logger.WithError(err).Debug("reconnect failed")
		return err
	}

	c.mu.Lock()
	if err := c.flushLocked(); err != nil {
		logger.WithError(err).Warn("flush after reconnect failed")
	}
	c.mu.Unlock()

	if done != nil {
		done()
	}
	return nil
}

// Send transmits msg over the active transport. While no transport is
// connected msg is queued; queued messages always go out first, in the order
// they were sent.
func (c *Conn) Send(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, msg)
	return c.flushLocked()
}

func (c *Conn) flushLocked() error {
	if c.active == nil || !c.active.IsConnected() {
		return nil
	}
	for len(c.queue) > 0 {
		if err := c.active.Send(c.queue[0]); err != nil {
			return SendFailedError{Kind: c.active.Kind(), Err: err}
		}
		c.queue = c.queue[1:]
	}
	return nil
}

// Close shuts down the active transport and abandons any Connect still in
// progress. Queued messages are kept and go out after the next Connect.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.generation++
	t := c.active
	c.active = nil
	c.mu.Unlock()
	if t == nil {
		return nil
	}
	c.logger.WithField("transport", t.Kind().String()).Debug("closing")
	return t.Close()
}

// Connected reports whether a transport is active and connected
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && c.active.IsConnected()
}

// Transport reports the kind of the active transport
func (c *Conn) Transport() Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return KindNone
	}
	return c.active.Kind()
}

// Pending reports how many messages wait for a connected transport
func (c *Conn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// ID identifies this Conn in log output
func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) build(ctx context.Context, kind Kind) (Transport, error) {
	switch kind {
	case KindSocket:
		t, err := newSocketTransport(ctx, c.socketURL, c.dialer, c.opts, c.deliver, c.handleClose, c.logger)
		if err != nil {
			return nil, err
		}
		return t, nil
	case KindPoll:
		t, err := newPollTransport(c.pollURL, c.httpClient, c.opts, c.deliver, c.logger)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown transport kind %d", kind)
	}
}

func (c *Conn) deliver(msg string) {
	c.opts.OnMessage(msg)
}

func (c *Conn) handleClose(info CloseInfo) {
	logger := c.logger.WithField("transport", info.Transport.String()).WithField("code", info.Code)
	if info.Err != nil {
		logger = logger.WithError(info.Err)
	}
	logger.Info("transport closed")
	if c.opts.OnClose != nil {
		c.opts.OnClose(info)
	}
}
