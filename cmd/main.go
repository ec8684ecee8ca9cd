package main

import (
	"os"
	"os/signal"
	"syscall"

	"argus/internal/bootstrap"
)

func main() {
	c := bootstrap.NewContainer()
	c.MustInit()

	if err := c.Start(); err != nil {
		c.Log.Fatalf("Failed to start: %v", err)
	}

	waitForShutdown(c)
}

// waitForShutdown blocks until a termination signal arrives or a fatal
// component failure cancels the root context, then shuts down cleanly.
func waitForShutdown(c *bootstrap.Container) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		c.Log.Infow("Received shutdown signal", "signal", sig.String())
	case <-c.Context.Done():
		c.Log.Warn("Root context cancelled, shutting down")
	}

	c.Shutdown()
}
