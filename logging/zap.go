package logging

import (
	"context"
	"io"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a *zap.Logger to the Logger interface
type ZapLogger struct {
	logger *zap.Logger
	level  zap.AtomicLevel
}

// NewZapLogger wraps an existing zap logger. Level filtering happens on
// top of whatever the zap core already enforces.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger, level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

// NewJSONLogger builds a zap logger that writes one JSON object per line to w
func NewJSONLogger(w io.Writer, level Level) *ZapLogger {
	atomic := zap.NewAtomicLevelAt(toZapLevel(level))

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(w), atomic)
	return &ZapLogger{logger: zap.New(core), level: atomic}
}

func (z *ZapLogger) Debug(msg string, fields ...Fields) {
	z.write(zapcore.DebugLevel, nil, msg, fields)
}

func (z *ZapLogger) Info(msg string, fields ...Fields) {
	z.write(zapcore.InfoLevel, nil, msg, fields)
}

func (z *ZapLogger) Warn(msg string, fields ...Fields) {
	z.write(zapcore.WarnLevel, nil, msg, fields)
}

func (z *ZapLogger) Error(err error, msg string, fields ...Fields) {
	z.write(zapcore.ErrorLevel, err, msg, fields)
}

func (z *ZapLogger) Fatal(err error, msg string, fields ...Fields) {
	z.write(zapcore.FatalLevel, err, msg, fields)
}

func (z *ZapLogger) WithFields(fields Fields) Logger {
	return &ZapLogger{logger: z.logger.With(toZapFields(nil, fields)...), level: z.level}
}

func (z *ZapLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := FieldsFromContext(ctx); ok {
		return z.WithFields(fields)
	}
	return z
}

func (z *ZapLogger) SetLevel(level Level) {
	z.level.SetLevel(toZapLevel(level))
}

// Sync flushes buffered entries
func (z *ZapLogger) Sync() error {
	return z.logger.Sync()
}

func (z *ZapLogger) write(level zapcore.Level, err error, msg string, fields []Fields) {
	if !z.level.Enabled(level) {
		return
	}

	zf := toZapFields(err, fields...)
	switch level {
	case zapcore.DebugLevel:
		z.logger.Debug(msg, zf...)
	case zapcore.InfoLevel:
		z.logger.Info(msg, zf...)
	case zapcore.WarnLevel:
		z.logger.Warn(msg, zf...)
	case zapcore.ErrorLevel:
		z.logger.Error(msg, zf...)
	default:
		z.logger.Fatal(msg, zf...)
	}
}

// toZapFields flattens field maps into zap fields with stable key order
func toZapFields(err error, fields ...Fields) []zap.Field {
	merged := make(Fields)
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys)+1)
	for _, k := range keys {
		out = append(out, zap.Any(k, merged[k]))
	}
	if err != nil {
		out = append(out, zap.Error(err))
	}

	return out
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
