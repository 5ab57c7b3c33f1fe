package clientconn

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultSocketScheme is used to dial the socket transport
	DefaultSocketScheme = "wss"
	// DefaultPollScheme is used for poll requests
	DefaultPollScheme = "https"
	// DefaultPollInterval is the delay between the end of one poll cycle and
	// the start of the next
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultPollTimeout bounds a single poll request
	DefaultPollTimeout = 30 * time.Second
)

// MessageHandler receives every complete inbound message in arrival order
type MessageHandler func(msg string)

// CloseHandler is told when the active transport stops
type CloseHandler func(info CloseInfo)

// Options holds everything that can be configured on a Conn
type Options struct {
	SocketScheme           string
	PollScheme             string
	DisableSocketTransport bool
	DisablePollTransport   bool

	OnMessage MessageHandler
	OnClose   CloseHandler

	// HTTPClient is used by the polling transport. When nil a client with a
	// public suffix aware cookie jar is built around HTTPTransport.
	HTTPClient    *http.Client
	HTTPTransport http.RoundTripper
	// Dialer is used by the socket transport. When nil a copy of
	// websocket.DefaultDialer sharing the polling cookie jar is used.
	Dialer *websocket.Dialer
	// Header is sent with the socket handshake and every poll request
	Header http.Header

	PollInterval time.Duration
	PollTimeout  time.Duration

	Logger Logger
}

// Option configures a Conn
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		SocketScheme: DefaultSocketScheme,
		PollScheme:   DefaultPollScheme,
		PollInterval: DefaultPollInterval,
		PollTimeout:  DefaultPollTimeout,
		Logger:       newNullLogger(),
	}
}

// WithSocketScheme sets the scheme used to dial the socket transport, e.g. "ws"
func WithSocketScheme(scheme string) Option {
	return func(options *Options) {
		options.SocketScheme = scheme
	}
}

// WithPollScheme sets the scheme used by the polling transport, e.g. "http"
func WithPollScheme(scheme string) Option {
	return func(options *Options) {
		options.PollScheme = scheme
	}
}

// WithoutSocketTransport removes the socket transport from the candidates
func WithoutSocketTransport() Option {
	return func(options *Options) {
		options.DisableSocketTransport = true
	}
}

// WithoutPollTransport removes the polling transport from the candidates
func WithoutPollTransport() Option {
	return func(options *Options) {
		options.DisablePollTransport = true
	}
}

// WithMessageHandler sets the callback for inbound messages. It is required.
func WithMessageHandler(handler MessageHandler) Option {
	return func(options *Options) {
		options.OnMessage = handler
	}
}

// WithCloseHandler sets the callback invoked when a transport stops
func WithCloseHandler(handler CloseHandler) Option {
	return func(options *Options) {
		options.OnClose = handler
	}
}

// WithHTTPClient sets the client the polling transport issues requests with
func WithHTTPClient(client *http.Client) Option {
	return func(options *Options) {
		options.HTTPClient = client
	}
}

// WithHTTPTransport sets the RoundTripper of the default polling client
func WithHTTPTransport(transport http.RoundTripper) Option {
	return func(options *Options) {
		options.HTTPTransport = transport
	}
}

// WithDialer sets the dialer used by the socket transport
func WithDialer(dialer *websocket.Dialer) Option {
	return func(options *Options) {
		options.Dialer = dialer
	}
}

// WithHeader adds headers to the socket handshake and to poll requests
func WithHeader(header http.Header) Option {
	return func(options *Options) {
		options.Header = header
	}
}

// WithPollInterval changes the delay between poll cycles
func WithPollInterval(interval time.Duration) Option {
	return func(options *Options) {
		if interval > 0 {
			options.PollInterval = interval
		}
	}
}

// WithPollTimeout changes the per-request timeout of the polling transport
func WithPollTimeout(timeout time.Duration) Option {
	return func(options *Options) {
		if timeout > 0 {
			options.PollTimeout = timeout
		}
	}
}

func (o *Options) candidates() []Kind {
	kinds := make([]Kind, 0, 2)
	if !o.DisableSocketTransport {
		kinds = append(kinds, KindSocket)
	}
	if !o.DisablePollTransport {
		kinds = append(kinds, KindPoll)
	}
	return kinds
}
