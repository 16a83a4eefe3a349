package process

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charleschow/kite-terminal/internal/config"
	"github.com/charleschow/kite-terminal/internal/telemetry"
)

// Boot loads configuration and initialises logging for an entry point.
func Boot(name string) *config.Config {
	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))
	telemetry.Infof("Starting %s", name)
	return cfg
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			telemetry.Infof("Received %s, shutting down...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Fatalf logs and exits with status 1.
func Fatalf(format string, args ...any) {
	telemetry.Errorf(format, args...)
	os.Exit(1)
}
