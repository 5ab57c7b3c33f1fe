package clientconn

import "log/slog"

type wrappedSlog struct {
	*slog.Logger
}

func (w *wrappedSlog) WithError(err error) Logger {
	return w.WithField("error", err)
}

func (w *wrappedSlog) WithField(key string, value any) Logger {
	return &wrappedSlog{w.With(slog.Any(key, value))}
}

// WithSlogLogger routes the Conn's logs to a log/slog logger
func WithSlogLogger(logger *slog.Logger) Option {
	return func(options *Options) {
		options.Logger = &wrappedSlog{logger}
	}
}
