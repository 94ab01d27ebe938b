// Package logging is the structured logging facade shared by the detector,
// the stream loop and the binaries. Output goes through zap; callers only
// see Logger and Fields.
package logging

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// Level is a severity. Its values line up with zapcore so the zap backend
// can filter without a lookup table.
type Level int8

const (
	DebugLevel = Level(zapcore.DebugLevel)
	InfoLevel  = Level(zapcore.InfoLevel)
	WarnLevel  = Level(zapcore.WarnLevel)
	ErrorLevel = Level(zapcore.ErrorLevel)
	FatalLevel = Level(zapcore.FatalLevel)
)

func (l Level) String() string {
	return zapcore.Level(l).CapitalString()
}

// ParseLevel reads a level name as found in config files and flags.
// Anything unrecognised yields InfoLevel.
func ParseLevel(s string) Level {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "warning" {
		return WarnLevel
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return InfoLevel
	}
	switch lvl {
	case zapcore.DPanicLevel, zapcore.PanicLevel:
		return ErrorLevel
	}
	return Level(lvl)
}

// Fields are key/value pairs attached to an entry.
type Fields map[string]any

// Logger is what packages in this module log through.
type Logger interface {
	Debug(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Warn(msg string, fields ...Fields)
	Error(err error, msg string, fields ...Fields)
	Fatal(err error, msg string, fields ...Fields)

	// WithFields derives a logger that adds fields to every entry.
	WithFields(fields Fields) Logger

	// WithContext derives a logger carrying the fields stored in ctx by
	// ContextWithFields, or returns the receiver when there are none.
	WithContext(ctx context.Context) Logger

	SetLevel(level Level)
}

type fieldsKey struct{}

// ContextWithFields attaches fields that WithContext will pick up.
func ContextWithFields(ctx context.Context, fields Fields) context.Context {
	return context.WithValue(ctx, fieldsKey{}, fields)
}

func fieldsFromContext(ctx context.Context) (Fields, bool) {
	fields, ok := ctx.Value(fieldsKey{}).(Fields)
	return fields, ok
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewDefaultLogger()
)

// SetGlobalLogger replaces the process-wide logger. A nil logger silences
// the package-level functions.
func SetGlobalLogger(logger Logger) {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// GetGlobalLogger returns the process-wide logger.
func GetGlobalLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

func Debug(msg string, fields ...Fields) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...Fields)  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...Fields)  { GetGlobalLogger().Warn(msg, fields...) }

func Error(err error, msg string, fields ...Fields) {
	GetGlobalLogger().Error(err, msg, fields...)
}

// Fatal logs through the global logger, which is expected to exit.
func Fatal(err error, msg string, fields ...Fields) {
	GetGlobalLogger().Fatal(err, msg, fields...)
}

func WithFields(fields Fields) Logger        { return GetGlobalLogger().WithFields(fields) }
func WithContext(ctx context.Context) Logger { return GetGlobalLogger().WithContext(ctx) }
func SetLevel(level Level)                   { GetGlobalLogger().SetLevel(level) }
