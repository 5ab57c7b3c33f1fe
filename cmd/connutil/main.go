package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sigmavirus24/clientconn"
)

type config struct {
	SocketScheme string
	PollScheme   string
	NoSocket     bool
	NoPoll       bool
	PollInterval time.Duration
	LogLevel     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config
	cmd := &cobra.Command{
		Use:           "connutil [flags] ADDRESS",
		Short:         "Send stdin lines to an endpoint and print what comes back",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.SocketScheme, "socket-scheme", clientconn.DefaultSocketScheme, "the scheme used for the socket transport (ws or wss)")
	flags.StringVar(&cfg.PollScheme, "poll-scheme", clientconn.DefaultPollScheme, "the scheme used for the polling transport (http or https)")
	flags.BoolVar(&cfg.NoSocket, "no-socket", false, "never try the socket transport")
	flags.BoolVar(&cfg.NoPoll, "no-poll", false, "never fall back to the polling transport")
	flags.DurationVar(&cfg.PollInterval, "poll-interval", clientconn.DefaultPollInterval, "delay between poll requests")
	flags.StringVar(&cfg.LogLevel, "loglevel", "error", "the level to log at")
	return cmd
}

func run(ctx context.Context, address string, cfg config) error {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		// Let's just skip panic as an option here
		level = logrus.PanicLevel
	}
	logger.SetLevel(level)

	received := logrus.New()
	received.SetLevel(logrus.InfoLevel)

	opts := []clientconn.Option{
		clientconn.WithLogger(logger),
		clientconn.WithSocketScheme(cfg.SocketScheme),
		clientconn.WithPollScheme(cfg.PollScheme),
		clientconn.WithPollInterval(cfg.PollInterval),
		clientconn.WithMessageHandler(func(msg string) {
			received.WithField("message", msg).Info("received")
		}),
		clientconn.WithCloseHandler(func(info clientconn.CloseInfo) {
			entry := received.WithFields(logrus.Fields{
				"transport": info.Transport.String(),
				"code":      info.Code,
				"reason":    info.Text,
			})
			if info.Err != nil {
				entry = entry.WithError(info.Err)
			}
			entry.Warn("closed")
		}),
	}
	if cfg.NoSocket {
		opts = append(opts, clientconn.WithoutSocketTransport())
	}
	if cfg.NoPoll {
		opts = append(opts, clientconn.WithoutPollTransport())
	}

	conn, err := clientconn.NewConn(address, opts...)
	if err != nil {
		return fmt.Errorf("initializing connection: %w", err)
	}
	logger.WithField("conn", conn.ID()).Debug("got connection")

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	if err := conn.Connect(ctx, nil); err != nil {
		return err
	}
	defer conn.Close()
	received.WithField("transport", conn.Transport().String()).Info("connected")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// Give the polling transport a cycle to flush what was sent.
				time.Sleep(2 * cfg.PollInterval)
				return nil
			}
			if err := conn.Send(line); err != nil {
				logger.WithError(err).Error("send failed")
			}
		}
	}
}
