// Package logging builds the zap loggers used by the listing commands.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Name is the root logger name; component loggers are Named beneath it.
const Name = "listing-extractor"

// New builds the root logger. Development mode writes colored console output at debug level;
// otherwise JSON at info level with stack traces on errors.
func New(development bool, opts ...zap.Option) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("build logger (development=%t): %w", development, err)
	}
	return logger.Named(Name), nil
}

// ForRun scopes logger to a single command run. A nil logger yields a no-op.
func ForRun(logger *zap.Logger, command, runID string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.With(zap.String("command", command), zap.String("run_id", runID))
}
