// Package logger provides component-scoped structured logging for the
// whole runtime, backed by zap. Components pass a short name ("agent",
// "router", "store") plus optional fields; output is JSON on stderr.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base *zap.Logger
)

func init() {
	base = build(zapcore.InfoLevel)
}

func build(level zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	log, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		// Production config only fails on bad output paths; stderr is safe.
		log = zap.NewNop()
	}
	return log
}

// SetDebug switches the global level between debug and info.
func SetDebug(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	if enabled {
		base = build(zapcore.DebugLevel)
	} else {
		base = build(zapcore.InfoLevel)
	}
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

func log(level zapcore.Level, component, msg string, fields map[string]interface{}) {
	mu.RLock()
	l := base
	mu.RUnlock()

	zfields := make([]zap.Field, 0, len(fields)+1)
	zfields = append(zfields, zap.String("component", component))
	for k, v := range fields {
		zfields = append(zfields, zap.Any(k, v))
	}
	switch level {
	case zapcore.DebugLevel:
		l.Debug(msg, zfields...)
	case zapcore.WarnLevel:
		l.Warn(msg, zfields...)
	case zapcore.ErrorLevel:
		l.Error(msg, zfields...)
	default:
		l.Info(msg, zfields...)
	}
}

// DebugC logs at debug level with a component and no extra fields.
func DebugC(component, msg string) {
	log(zapcore.DebugLevel, component, msg, nil)
}

// InfoC logs at info level with a component and no extra fields.
func InfoC(component, msg string) {
	log(zapcore.InfoLevel, component, msg, nil)
}

// WarnC logs at warn level with a component and no extra fields.
func WarnC(component, msg string) {
	log(zapcore.WarnLevel, component, msg, nil)
}

// ErrorC logs at error level with a component and no extra fields.
func ErrorC(component, msg string) {
	log(zapcore.ErrorLevel, component, msg, nil)
}

// DebugCF logs at debug level with a component and structured fields.
func DebugCF(component, msg string, fields map[string]interface{}) {
	log(zapcore.DebugLevel, component, msg, fields)
}

// InfoCF logs at info level with a component and structured fields.
func InfoCF(component, msg string, fields map[string]interface{}) {
	log(zapcore.InfoLevel, component, msg, fields)
}

// WarnCF logs at warn level with a component and structured fields.
func WarnCF(component, msg string, fields map[string]interface{}) {
	log(zapcore.WarnLevel, component, msg, fields)
}

// ErrorCF logs at error level with a component and structured fields.
func ErrorCF(component, msg string, fields map[string]interface{}) {
	log(zapcore.ErrorLevel, component, msg, fields)
}
