package ports

import (
	"context"

	"github.com/mikey/openfda-engine/internal/core"
)

// Frontend defines the interface for the surfaces that expose the engine
type Frontend interface {
	// Call runs a named operation and returns its result
	Call(ctx context.Context, operation string, params core.Params) (any, error)

	// Start starts the frontend
	Start() error

	// Stop stops the frontend
	Stop() error
}
