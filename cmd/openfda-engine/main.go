package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/openfda-engine/internal/core"
	"github.com/mikey/openfda-engine/internal/di"
	"github.com/mikey/openfda-engine/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	frontend ports.Frontend,
	cacheStore *core.CacheStore,
	cacheRepo core.CacheRepository,
) error {
	defer logger.Sync()

	cacheStore.Start()

	// Start the frontend
	if err := frontend.Start(); err != nil {
		logger.Error("Failed to start frontend", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop the frontend
	if err := frontend.Stop(); err != nil {
		logger.Error("Failed to stop frontend", zap.Error(err))
	}

	cacheStore.Stop()

	// Close the cache backend if it holds a connection
	if closer, ok := cacheRepo.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close cache", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
