package util

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogOptions configures the process logger
type LogOptions struct {
	Env   string
	Level string
	// File receives a copy of every entry when set
	File string
}

// InitLogger builds the process logger. Production writes JSON, everything
// else writes colored console lines.
func InitLogger(opts LogOptions) error {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if opts.Env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "ts"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		// Purchase and balance entries must not be dropped by sampling.
		config.Sampling = nil
	}

	if opts.Level != "" {
		level, err := zap.ParseAtomicLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		config.Level = level
	}

	if opts.File != "" {
		config.OutputPaths = append(config.OutputPaths, opts.File)
		config.ErrorOutputPaths = append(config.ErrorOutputPaths, opts.File)
	}

	built, err := config.Build(zap.Fields(zap.String("app", "storebot")))
	if err != nil {
		return err
	}

	logger = built
	zap.ReplaceGlobals(logger)
	return nil
}

// GetLogger returns the process logger, falling back to a development
// logger before InitLogger has run.
func GetLogger() *zap.Logger {
	if logger == nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}

// Named returns the process logger scoped to one component
func Named(component string) *zap.Logger {
	return GetLogger().Named(component)
}

func SyncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}
