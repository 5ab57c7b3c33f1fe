package conntest

type ServerOpts interface {
	apply(s *Server)
}

type serverOptFn func(s *Server)

func (opt serverOptFn) apply(s *Server) {
	opt(s)
}

// WithoutWebSocket makes the server refuse WebSocket upgrades so clients have
// to fall back to polling
func WithoutWebSocket() ServerOpts {
	return serverOptFn(func(s *Server) {
		s.refuseUpgrade = true
	})
}

// WithSessionID sets the id handed out on the first poll of a new session
func WithSessionID(id string) ServerOpts {
	return serverOptFn(func(s *Server) {
		s.sessionID = id
	})
}

// WithPollFailures makes the first n poll requests fail with a 503
func WithPollFailures(n int) ServerOpts {
	return serverOptFn(func(s *Server) {
		s.pollFailures = n
	})
}

// WithEcho sends every received message back to the client
func WithEcho() ServerOpts {
	return serverOptFn(func(s *Server) {
		s.echo = true
	})
}

// WithFragmentSize splits echoed polling replies into fragments of at most n
// bytes
func WithFragmentSize(n int) ServerOpts {
	return serverOptFn(func(s *Server) {
		s.fragmentSize = n
	})
}
