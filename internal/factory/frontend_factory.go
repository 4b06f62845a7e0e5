package factory

import (
	"fmt"
	"os"

	"github.com/mikey/openfda-engine/internal/adapters/frontend"
	"github.com/mikey/openfda-engine/internal/config"
	"github.com/mikey/openfda-engine/internal/core"
	"github.com/mikey/openfda-engine/internal/ports"
	"go.uber.org/zap"
)

// FrontendFactory creates frontends based on configuration
type FrontendFactory struct {
	cfg        *config.Config
	logger     *zap.Logger
	dispatcher *core.Dispatcher
}

// NewFrontendFactory creates a new frontend factory
func NewFrontendFactory(cfg *config.Config, logger *zap.Logger, dispatcher *core.Dispatcher) *FrontendFactory {
	return &FrontendFactory{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
	}
}

// CreateFrontend creates a frontend based on the configuration
func (f *FrontendFactory) CreateFrontend() (ports.Frontend, error) {
	frontendType := f.cfg.GetString("server.frontend")

	switch frontendType {
	case "http":
		return frontend.NewHTTPFrontend(
			f.dispatcher,
			f.logger,
			f.cfg.GetString("server.listen_address"),
		), nil
	case "cli":
		return frontend.NewCliFrontend(
			f.dispatcher,
			f.logger,
			os.Stdout,
			f.cfg.GetBool("cli.verbose"),
		), nil
	default:
		return nil, fmt.Errorf("unsupported frontend type: %s", frontendType)
	}
}
