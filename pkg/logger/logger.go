package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerConfig struct {
	Debug bool
}

// NewLogger builds a JSON zap logger. Debug switches the level to debug and
// turns on caller/stacktrace annotations for warnings.
func NewLogger(cfg *LoggerConfig, options ...zap.Option) (*zap.Logger, error) {
	if cfg == nil {
		cfg = &LoggerConfig{}
	}

	mergedOptions := append([]zap.Option{
		zap.WithCaller(true),
	}, options...)

	c := zap.NewProductionConfig()
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	c.Sampling = nil

	if cfg.Debug {
		c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		mergedOptions = append(mergedOptions, zap.AddStacktrace(zapcore.WarnLevel))
	} else {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return c.Build(mergedOptions...)
}
