package openfda

import (
	"net/http"

	"github.com/mikey/openfda-engine/internal/config"
	"github.com/mikey/openfda-engine/internal/core"
	"go.uber.org/zap"
)

// Factory creates new instances of Client
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a new factory for Client instances
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateFetcher creates a new Client
func (f *Factory) CreateFetcher() (core.Fetcher, error) {
	upstream, err := f.cfg.GetUpstream()
	if err != nil {
		return nil, err
	}

	if upstream.APIKey == "" {
		f.logger.Info("No openFDA API key configured, using the anonymous rate limit")
	}

	return NewClient(
		&http.Client{Transport: http.DefaultTransport},
		upstream.BaseURL,
		upstream.APIKey,
		upstream.UserAgent,
		upstream.Timeout,
		f.logger,
	), nil
}
