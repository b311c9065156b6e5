// Package logging configures the simulator's loggers: logrus as the primary
// logger and an optional high-performance zap logger that can coexist with
// it for hot paths.
package logging

import (
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/llmsim/llmsim/internal/config"
)

var (
	zapLogger  *zap.Logger
	zapSugar   *zap.SugaredLogger
	zapEnabled bool
	zapOnce    sync.Once
	zapMu      sync.RWMutex
)

// Setup configures logrus from the telemetry config: level, formatter, and
// optional rotating file output.
func Setup(cfg config.TelemetryConfig) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.JSONLogs {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}

	if cfg.UseZapLogger {
		if err := initZap(level == log.DebugLevel); err != nil {
			log.Warnf("failed to initialize zap logger: %v", err)
		}
	}
}

// initZap builds the optional zap logger once.
func initZap(debug bool) error {
	var initErr error
	zapOnce.Do(func() {
		var zapCfg zap.Config
		if debug {
			zapCfg = zap.NewDevelopmentConfig()
			zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			zapCfg = zap.NewProductionConfig()
			zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}

		logger, err := zapCfg.Build()
		if err != nil {
			initErr = err
			return
		}

		zapMu.Lock()
		zapLogger = logger
		zapSugar = logger.Sugar()
		zapEnabled = true
		zapMu.Unlock()
	})
	return initErr
}

// ZapEnabled reports whether the zap logger is initialized.
func ZapEnabled() bool {
	zapMu.RLock()
	defer zapMu.RUnlock()
	return zapEnabled
}

// Zap returns the zap logger, or nil when not initialized.
func Zap() *zap.Logger {
	zapMu.RLock()
	defer zapMu.RUnlock()
	if !zapEnabled {
		return nil
	}
	return zapLogger
}

// Sugar returns the sugared zap logger, or nil when not initialized.
func Sugar() *zap.SugaredLogger {
	zapMu.RLock()
	defer zapMu.RUnlock()
	if !zapEnabled {
		return nil
	}
	return zapSugar
}

// Sync flushes the zap logger if it is active.
func Sync() {
	zapMu.RLock()
	defer zapMu.RUnlock()
	if zapEnabled && zapLogger != nil {
		_ = zapLogger.Sync()
	}
}
