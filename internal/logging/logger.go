// Package logging builds the process logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service is attached to every entry so relay logs can be told apart when
// shipped alongside the broker's.
const Service = "lakesink"

// NewSugaredLogger returns a console logger at debug level when verbose,
// which also logs every received payload, and a JSON logger at info level
// otherwise. Timestamps are ISO 8601 in both.
func NewSugaredLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]any{"service": Service}

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s logger: %w", cfg.Encoding, err)
	}
	return l.Sugar(), nil
}
