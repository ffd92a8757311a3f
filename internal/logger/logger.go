// Package logger holds the process-wide zap logger.
package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log      *zap.Logger
	initOnce sync.Once
)

// Init builds the global logger. Development mode logs colored console
// lines; otherwise JSON lines go to stderr. level is a zap level name and
// defaults to info.
func Init(development bool, level string) error {
	var err error
	initOnce.Do(func() {
		var cfg zap.Config
		if development {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.TimeKey = "time"
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.TimeKey = "time"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}
		if level != "" {
			lvl, perr := zapcore.ParseLevel(level)
			if perr != nil {
				err = fmt.Errorf("parsing log level: %w", perr)
				return
			}
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
		log, err = cfg.Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
			return
		}
		log.Debug("logger initialized", zap.Bool("development", development))
	})
	return err
}

// L returns the global logger. Init must have succeeded.
func L() *zap.Logger {
	if log == nil {
		panic("logger not initialized")
	}
	return log
}

// Sync flushes buffered entries.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
