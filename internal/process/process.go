package process

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/kelsos/genjobs/internal/logger"
)

// Runner is a long-lived unit of the service. Run must return once ctx is
// done; returning earlier with nil is allowed.
type Runner struct {
	Name string
	Run  func(ctx context.Context) error
}

// Run starts every runner and blocks until all of them returned. A signal
// (SIGINT, SIGTERM), cancellation of ctx or the first runner error stops the
// rest. The first runner error is returned.
func Run(ctx context.Context, runners ...Runner) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	g, gctx := errgroup.WithContext(ctx)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received signal %v, shutting down...", sig)
			cancel()
		case <-gctx.Done():
		}
	}()

	for _, r := range runners {
		g.Go(func() error {
			logger.Debug("Starting %s", r.Name)
			if err := r.Run(gctx); err != nil {
				logger.Error("%s exited with error: %v", r.Name, err)
				return fmt.Errorf("%s: %w", r.Name, err)
			}
			logger.Debug("%s stopped", r.Name)
			return nil
		})
	}

	return g.Wait()
}
