package logging

import (
	"fmt"
	"strings"

	"github.com/mikey/openfda-engine/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName tags every log entry emitted by the engine
const ServiceName = "openfda-engine"

// InitLogger initializes a logger based on configuration
func InitLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := build(parseLevel(cfg.GetString("logging.level")), cfg.GetString("logging.format") == "json")
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", ServiceName)), nil
}

// InitConsoleLogger initializes a console-friendly logger
func InitConsoleLogger(verbose bool, jsonFormat bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return build(level, jsonFormat)
}

// parseLevel falls back to info for unknown names
func parseLevel(s string) zapcore.Level {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func build(level zapcore.Level, jsonFormat bool) (*zap.Logger, error) {
	var logConfig zap.Config
	if jsonFormat {
		logConfig = zap.NewProductionConfig()
	} else {
		logConfig = zap.NewDevelopmentConfig()
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}
