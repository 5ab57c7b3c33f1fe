package clientconn

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// pollTransport delivers messages over repeated HTTP POST requests. It is
// connected from construction until Close; a single goroutine runs the poll
// cycles one after another.
type pollTransport struct {
	client    *http.Client
	endpoint  *url.URL
	header    http.Header
	interval  time.Duration
	timeout   time.Duration
	onMessage MessageHandler
	logger    Logger

	mu     sync.Mutex
	queue  []string
	closed bool

	session *sessionState
	frames  Reassembler

	cancel context.CancelFunc
	done   chan struct{}
}

func newPollTransport(endpoint *url.URL, client *http.Client, opts *Options, onMessage MessageHandler, logger Logger) (*pollTransport, error) {
	switch endpoint.Scheme {
	case "http", "https":
	default:
		return nil, UnsupportedSchemeError{Kind: KindPoll, Scheme: endpoint.Scheme}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &pollTransport{
		client:    client,
		endpoint:  endpoint,
		header:    opts.Header,
		interval:  opts.PollInterval,
		timeout:   opts.PollTimeout,
		onMessage: onMessage,
		logger:    logger.WithField("transport", KindPoll.String()),
		queue:     make([]string, 0),
		session:   &sessionState{},
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go p.run(ctx)
	return p, nil
}

func newHTTPClient(transport http.RoundTripper, jar http.CookieJar) *http.Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{Transport: transport, Jar: jar}
}

func newCookieJar() (http.CookieJar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

func (p *pollTransport) Kind() Kind {
	return KindPoll
}

// Send queues msg for the next poll cycle
func (p *pollTransport) Send(msg string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrTransportClosed
	}
	p.queue = append(p.queue, msg)
	return nil
}

func (p *pollTransport) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

// Reconnect does nothing; there is no persistent connection to restore.
func (p *pollTransport) Reconnect(context.Context) error {
	if !p.IsConnected() {
		return ErrTransportClosed
	}
	return nil
}

// Close stops the poll loop and aborts any request in flight. It does not
// wait for the loop to exit.
func (p *pollTransport) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	return nil
}

// SessionID returns the session assigned by the endpoint, if any
func (p *pollTransport) SessionID() (string, bool) {
	return p.session.GetSessionID()
}

func (p *pollTransport) run(ctx context.Context) {
	defer close(p.done)
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			p.poll(ctx)
			timer.Reset(p.interval)
		}
	}
}

// poll runs one cycle: drain the queue, exchange it for the endpoint's
// frames and dispatch them. On failure the drained messages go back to the
// front of the queue so the next cycle retries them.
func (p *pollTransport) poll(ctx context.Context) {
	logger := p.logger.WithField("at", "poll")
	start := time.Now()

	batch := p.drain()
	frames, err := p.exchange(ctx, batch)
	if err != nil {
		p.requeue(batch)
		if ctx.Err() != nil {
			return
		}
		logger.WithError(err).WithField("queued", len(batch)).Warn("poll request failed")
		return
	}
	if ctx.Err() != nil {
		// Closed while the request was in flight.
		logger.WithField("frames", len(frames)).Debug("discarding response")
		return
	}

	for _, frame := range frames {
		p.handleFrame(frame)
	}
	logger.WithField("duration", time.Since(start)).WithField("frames", len(frames)).Debug("finishing")
}

func (p *pollTransport) drain() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	batch := p.queue
	p.queue = make([]string, 0)
	return batch
}

func (p *pollTransport) requeue(batch []string) {
	if len(batch) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(batch, p.queue...)
}

func (p *pollTransport) handleFrame(frame string) {
	kind, payload := ClassifyFrame(frame)
	if kind == SessionFrame {
		p.logger.WithField("session", payload).Debug("session assigned")
		p.session.SetSessionID(payload)
		return
	}
	if msg, ok := p.frames.Push(kind, payload); ok {
		p.onMessage(msg)
	}
}

func (p *pollTransport) exchange(ctx context.Context, batch []string) ([]string, error) {
	outbound := make([]string, 0, len(batch)+1)
	if id, ok := p.session.GetSessionID(); ok {
		outbound = append(outbound, SessionControl(id))
	}
	outbound = append(outbound, batch...)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.request(ctx, outbound)
	if err != nil {
		return nil, err
	}
	return p.parseResponse(resp)
}

func (p *pollTransport) request(ctx context.Context, ms []string) (*http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(ms); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint.String(), &buf)
	if err != nil {
		return nil, err
	}
	for key, values := range p.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return p.client.Do(req)
}

func (p *pollTransport) parseResponse(resp *http.Response) ([]string, error) {
	frames := make([]string, 0)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, BadResponseError{resp.StatusCode, resp.Status, body}
	}

	if err := json.NewDecoder(resp.Body).Decode(&frames); err != nil {
		return nil, ResponseUnparsableError{err}
	}
	return frames, nil
}

type sessionState struct {
	sessionID string
	assigned  bool
	lock      sync.RWMutex
}

func (ss *sessionState) GetSessionID() (string, bool) {
	ss.lock.RLock()
	defer ss.lock.RUnlock()
	return ss.sessionID, ss.assigned
}

func (ss *sessionState) SetSessionID(sessionID string) {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	ss.sessionID = sessionID
	ss.assigned = true
}
