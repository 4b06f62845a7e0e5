package factory

import (
	"github.com/mikey/openfda-engine/internal/config"
	"github.com/mikey/openfda-engine/internal/core"
	"github.com/mikey/openfda-engine/internal/utils"
	"go.uber.org/zap"
)

// ServiceFactory builds the drug data service options and helpers from configuration
type ServiceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(cfg *config.Config, logger *zap.Logger) *ServiceFactory {
	return &ServiceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateServiceOptions maps the batch, trend and label settings onto service options
func (f *ServiceFactory) CreateServiceOptions() core.ServiceOptions {
	batch := f.cfg.GetBatch()
	trends := f.cfg.GetTrends()

	opts := core.ServiceOptions{
		Batch: core.BatchOptions{
			Concurrency:   batch.Concurrency,
			ShortageLimit: batch.ShortageLimit,
			TrendMonths:   batch.TrendMonths,
		},
		Thresholds: core.TrendThresholds{
			High:     trends.HighThreshold,
			Moderate: trends.ModerateThreshold,
		},
		TrendFetchLimit:     trends.FetchLimit,
		LabelMaxSectionSize: f.cfg.GetInt("label.max_section_size"),
	}
	if opts.LabelMaxSectionSize < 0 {
		opts.LabelMaxSectionSize = 0
	}

	if opts.Thresholds.Moderate >= opts.Thresholds.High {
		f.logger.Warn("Moderate trend threshold is not below the high threshold, using defaults",
			zap.Float64("high", opts.Thresholds.High),
			zap.Float64("moderate", opts.Thresholds.Moderate))
		opts.Thresholds = core.DefaultTrendThresholds()
	}

	return opts
}

// CreateTextProcessor creates the processor that trims label sections
func (f *ServiceFactory) CreateTextProcessor() *utils.TextProcessor {
	if size := f.cfg.GetInt("label.max_section_size"); size <= 0 {
		f.logger.Warn("Label section size is not positive, using the default",
			zap.Int("configured", size),
			zap.Int("default", core.DefaultLabelMaxSectionSize))
	}
	return utils.NewTextProcessor(f.logger)
}
