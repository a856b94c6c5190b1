// Package logging builds the server's zap logger and adapts it to pickup.Logger.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/coregx/pickup"
	"github.com/coregx/pickup/cmd/pickup-server/internal/config"
)

// NewLogger creates a zap logger from cfg. With cfg.File set, output goes
// to a lumberjack-rotated file as well as stdout.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Development {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	writeSyncer := zapcore.AddSync(os.Stdout)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, err
		}
		writeSyncer = zapcore.NewMultiWriteSyncer(
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			}),
			writeSyncer,
		)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return zap.New(core, opts...), nil
}

// Adapter implements pickup.Logger on top of a zap SugaredLogger.
type Adapter struct {
	sugar *zap.SugaredLogger
}

var _ pickup.Logger = (*Adapter)(nil)

// NewAdapter wraps l. The caller skip is adjusted so log lines point at
// the code calling the pickup.Logger methods.
func NewAdapter(l *zap.Logger) *Adapter {
	return &Adapter{sugar: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Debugf implements pickup.Logger.
func (a *Adapter) Debugf(format string, args ...interface{}) {
	a.sugar.Debugf(format, args...)
}

// Infof implements pickup.Logger.
func (a *Adapter) Infof(format string, args ...interface{}) {
	a.sugar.Infof(format, args...)
}

// Warnf implements pickup.Logger.
func (a *Adapter) Warnf(format string, args ...interface{}) {
	a.sugar.Warnf(format, args...)
}

// Errorf implements pickup.Logger.
func (a *Adapter) Errorf(format string, args ...interface{}) {
	a.sugar.Errorf(format, args...)
}

// Info implements pickup.Logger.
func (a *Adapter) Info(message string) {
	a.sugar.Info(message)
}
