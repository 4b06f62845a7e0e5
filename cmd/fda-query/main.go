package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/openfda-engine/internal/adapters/frontend"
	"github.com/mikey/openfda-engine/internal/di"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	exitCode := 0
	if err := container.Invoke(func(logger *zap.Logger, cli *frontend.CliFrontend) {
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// The frontend prints the error details
		if _, err := cli.Call(ctx, flags.Operation, flags.Params()); err != nil {
			logger.Debug("Operation failed", zap.String("operation", flags.Operation), zap.Error(err))
			exitCode = 1
		}
	}); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}

	os.Exit(exitCode)
}
