package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// forceExit is replaced in tests.
var forceExit = func() { os.Exit(1) }

// shutdownContext returns a context that is canceled on the first SIGINT or
// SIGTERM. Canceling closes the FTP connection, which is the only way to
// abort a running mirror. A second signal exits immediately.
func shutdownContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("signal received, closing connection", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("second signal received, exiting", slog.String("signal", sig.String()))
			forceExit()
		case <-parent.Done():
		}
	}()

	return ctx, cancel
}
