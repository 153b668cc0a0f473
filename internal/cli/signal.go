package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// notifyShutdown returns a context cancelled on SIGINT/SIGTERM, shared by
// the serve and worker run loops.
func notifyShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
