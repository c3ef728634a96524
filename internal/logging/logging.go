// Package logging builds the zap loggers used by the CLI and MCP server.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a sugared logger writing to stderr. Verbose enables debug
// output; otherwise only warnings and errors are emitted so stdout stays
// clean for reports.
func New(verbose, jsonFormat bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		cfg.Sampling = nil
	}
	cfg.Encoding = "console"
	if jsonFormat {
		cfg.Encoding = "json"
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
