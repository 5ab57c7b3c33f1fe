package clientconn

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestWrappedFieldLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	opts := defaultOptions()
	WithLogger(logger)(opts)

	boom := errors.New("boom")
	opts.Logger.WithField("at", "poll").WithError(boom).Warn("poll request failed")

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if entry.Message != "poll request failed" {
		t.Errorf("unexpected message %q", entry.Message)
	}
	if entry.Level != logrus.WarnLevel {
		t.Errorf("unexpected level %s", entry.Level)
	}
	if entry.Data["at"] != "poll" {
		t.Errorf("expected at=poll, got %v", entry.Data["at"])
	}
	if entry.Data[logrus.ErrorKey] != boom {
		t.Errorf("expected error field, got %v", entry.Data[logrus.ErrorKey])
	}
}

func TestWithNilLogger(t *testing.T) {
	opts := defaultOptions()
	WithLogger(nil)(opts)
	if _, ok := opts.Logger.(*nullLogger); !ok {
		t.Errorf("expected a null logger, got %T", opts.Logger)
	}
	// must not panic
	opts.Logger.WithField("k", "v").WithError(errors.New("x")).Error("ignored")
}
