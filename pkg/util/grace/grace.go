package grace

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// NewGracefulContext returns context derived from parent that is cancelled
// by SIGINT, SIGTERM or SIGHUP.
func NewGracefulContext(parent context.Context, l *zap.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(ch)

		select {
		case sig := <-ch:
			if l != nil {
				l.Info("received signal",
					zap.String("signal", sig.String()))
			} else {
				fmt.Printf("received signal %s\n", sig)
			}
		case <-ctx.Done():
		}
		cancel()
	}()

	return ctx
}
