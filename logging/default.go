package logging

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements Logger on top of zap.
// Debug/Info/Warn/Error map to the zap levels of the same name and Fatal
// logs then exits through zap.
type ZapLogger struct {
	base   *zap.Logger
	level  *atomic.Int32
	fields Fields
}

// NewZapLogger wraps an existing zap logger. The wrapper starts at
// DebugLevel so the zap core alone decides what is written until SetLevel.
func NewZapLogger(base *zap.Logger) *ZapLogger {
	level := &atomic.Int32{}
	level.Store(int32(DebugLevel))
	return &ZapLogger{
		base:   base,
		level:  level,
		fields: make(Fields),
	}
}

// NewDefaultLogger creates a production zap logger at InfoLevel, falling
// back to a no-op zap logger if the sink cannot be opened.
func NewDefaultLogger() *ZapLogger {
	base, err := NewZap("info")
	if err != nil {
		base = zap.NewNop()
	}
	l := NewZapLogger(base)
	l.SetLevel(InfoLevel)
	return l
}

// NewZap builds a zap logger for a config level string: development output
// for "debug", JSON production output otherwise.
func NewZap(level string) (*zap.Logger, error) {
	lvl := ParseLevel(level)
	zapConfig := zap.NewProductionConfig()
	if lvl == DebugLevel {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(zapcore.Level(lvl))

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}
	return logger, nil
}

// Zap returns the underlying zap logger
func (z *ZapLogger) Zap() *zap.Logger {
	return z.base
}

func (z *ZapLogger) zapFields(err error, fields ...Fields) []zap.Field {
	allFields := make(Fields, len(z.fields))
	maps.Copy(allFields, z.fields)
	for _, f := range fields {
		maps.Copy(allFields, f)
	}

	// Stable field order keeps log lines diffable
	keys := make([]string, 0, len(allFields))
	for k := range allFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys)+1)
	for _, k := range keys {
		out = append(out, zap.Any(k, allFields[k]))
	}
	if err != nil {
		out = append(out, zap.Error(err))
	}
	return out
}

func (z *ZapLogger) enabled(level Level) bool {
	return level >= Level(z.level.Load())
}

func (z *ZapLogger) Debug(msg string, fields ...Fields) {
	if z.enabled(DebugLevel) {
		z.base.Debug(msg, z.zapFields(nil, fields...)...)
	}
}

func (z *ZapLogger) Info(msg string, fields ...Fields) {
	if z.enabled(InfoLevel) {
		z.base.Info(msg, z.zapFields(nil, fields...)...)
	}
}

func (z *ZapLogger) Warn(msg string, fields ...Fields) {
	if z.enabled(WarnLevel) {
		z.base.Warn(msg, z.zapFields(nil, fields...)...)
	}
}

func (z *ZapLogger) Error(err error, msg string, fields ...Fields) {
	if z.enabled(ErrorLevel) {
		z.base.Error(msg, z.zapFields(err, fields...)...)
	}
}

func (z *ZapLogger) Fatal(err error, msg string, fields ...Fields) {
	z.base.Fatal(msg, z.zapFields(err, fields...)...)
}

func (z *ZapLogger) WithFields(fields Fields) Logger {
	newFields := make(Fields, len(z.fields)+len(fields))
	maps.Copy(newFields, z.fields)
	maps.Copy(newFields, fields)

	return &ZapLogger{
		base:   z.base,
		level:  z.level,
		fields: newFields,
	}
}

func (z *ZapLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return z.WithFields(fields)
	}
	return z
}

// SetLevel sets the minimum level for this logger and every logger derived
// from it with WithFields.
func (z *ZapLogger) SetLevel(level Level) {
	z.level.Store(int32(level))
}

// Sync flushes buffered log entries
func (z *ZapLogger) Sync() error {
	return z.base.Sync()
}

// NoOpLogger is a logger that does nothing, for tests or when logging is disabled
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
