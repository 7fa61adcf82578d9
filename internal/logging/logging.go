// Package logging builds the structured zap.Logger shared by every stage.
// When a log file path is configured, output rotates through lumberjack;
// otherwise logs go to a console-encoded stdout for CLI-first ergonomics.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options configures logger construction.
type Options struct {
	LogFile    string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Debug      bool
}

// New builds a *zap.Logger per opts.
func New(opts Options) *zap.Logger {
	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	var core zapcore.Core
	if opts.LogFile != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    nonZero(opts.MaxSizeMB, 100),
			MaxBackups: nonZero(opts.MaxBackups, 5),
			MaxAge:     nonZero(opts.MaxAgeDays, 28),
		})
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level)
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(os.Stdout)), level)
	}

	return zap.New(core)
}

// ForRun scopes logger with the fields every stage attaches.
func ForRun(logger *zap.Logger, runID, stage string) *zap.Logger {
	return logger.With(zap.String("run_id", runID), zap.String("stage", stage))
}

func nonZero(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
