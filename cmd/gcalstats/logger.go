package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// verbosityLevel maps the config's verbosity_level onto zap levels:
// 0 errors only, 1 warnings, 2 info, 3 and above debug.
func verbosityLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= 0:
		return zapcore.ErrorLevel
	case verbosity == 1:
		return zapcore.WarnLevel
	case verbosity == 2:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

func newLogger(verbosity int, verbose bool) (*zap.Logger, error) {
	level := verbosityLevel(verbosity)
	if verbose {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
