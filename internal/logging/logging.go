// Package logging builds the process-wide structured logger shared by the
// miner, transaction generator, gossip worker, network and API components.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.SugaredLogger whose level is lowered one notch per
// repetition of the -v CLI flag: 0 verbosity is Info, 1 is Debug, 2+ stays
// at Debug (zap has nothing more verbose than Debug).
func New(verbosity int) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if verbosity > 0 {
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
