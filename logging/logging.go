// Package logging builds the diagnostic zap logger shared by every
// component.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select the logger configuration.
type Options struct {
	// Level is a zap level name (debug, info, warn, error). Empty means warn.
	Level string
	// Debug switches to the colored development config at debug level.
	Debug bool
	// File, when set, also receives every entry as JSON.
	File    string
	Version string
}

// New builds a logger writing to stderr. The returned function flushes and
// closes any log file and must be called before exit.
func New(o Options) (*zap.Logger, func(), error) {
	var cfg zap.Config
	if o.Debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		level := zapcore.WarnLevel
		if o.Level != "" {
			l, err := zapcore.ParseLevel(o.Level)
			if err != nil {
				return nil, nil, fmt.Errorf("log level: %w", err)
			}
			level = l
		}
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableStacktrace = true
		cfg.Sampling = nil
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}

	closeFile := func() {}
	if o.File != "" {
		sink, closeSink, err := zap.Open(o.File)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		fileCore := zapcore.NewCore(enc, sink, zapcore.DebugLevel).With([]zapcore.Field{
			zap.String("app", "duoreadme"),
			zap.String("version", o.Version),
		})
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
		closeFile = closeSink
	}

	return logger, func() {
		_ = logger.Sync()
		closeFile()
	}, nil
}
