package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/openfda-engine/internal/adapters/openfda"
	"github.com/mikey/openfda-engine/internal/config"
	"github.com/mikey/openfda-engine/internal/core"
	"github.com/mikey/openfda-engine/internal/factory"
	"github.com/mikey/openfda-engine/internal/logging"
	"github.com/mikey/openfda-engine/internal/ports"
	"github.com/mikey/openfda-engine/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideEngine(container); err != nil {
		return nil, err
	}

	// Register frontend
	if err := container.Provide(factory.NewFrontendFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FrontendFactory) (ports.Frontend, error) {
		return f.CreateFrontend()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideEngine registers everything between the configuration and the
// dispatcher. It expects *config.Config and *zap.Logger to be provided.
func provideEngine(container *dig.Container) error {
	// Register factories
	if err := container.Provide(openfda.NewFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewServiceFactory); err != nil {
		return err
	}

	// Register upstream fetcher
	if err := container.Provide(func(f *openfda.Factory) (core.Fetcher, error) {
		return f.CreateFetcher()
	}); err != nil {
		return err
	}

	// Register cache repository and store
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.CacheFactory, repo core.CacheRepository) (*core.CacheStore, error) {
		return f.CreateCacheStore(repo)
	}); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.ServiceFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register service options
	if err := container.Provide(func(f *factory.ServiceFactory, logger *zap.Logger) core.ServiceOptions {
		opts := f.CreateServiceOptions()
		logger.Debug("Service options loaded",
			zap.Int("batch_concurrency", opts.Batch.Concurrency),
			zap.Float64("high_threshold", opts.Thresholds.High),
			zap.Float64("moderate_threshold", opts.Thresholds.Moderate))
		return opts
	}); err != nil {
		return err
	}

	// Register drug data service and dispatcher
	if err := container.Provide(core.NewDrugDataService); err != nil {
		return err
	}
	return container.Provide(core.NewDispatcher)
}
