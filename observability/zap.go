package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger adapts a zap.Logger to the Logger interface so library
// packages stay decoupled from the logging backend.
type zapLogger struct{ l *zap.Logger }

// NewZapLogger wraps an existing zap logger.
func NewZapLogger(l *zap.Logger) Logger { return zapLogger{l: l} }

// NewProduction builds a JSON logger writing to stderr. Batch runs log
// one line per file, so sampling stays off.
func NewProduction(debug bool) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return zapLogger{l: l}, nil
}

func (z zapLogger) Debug(msg string, fields ...Field) { z.l.Debug(msg, zapFields(fields)...) }
func (z zapLogger) Info(msg string, fields ...Field)  { z.l.Info(msg, zapFields(fields)...) }
func (z zapLogger) Warn(msg string, fields ...Field)  { z.l.Warn(msg, zapFields(fields)...) }
func (z zapLogger) Error(msg string, fields ...Field) { z.l.Error(msg, zapFields(fields)...) }
func (z zapLogger) With(fields ...Field) Logger       { return zapLogger{l: z.l.With(zapFields(fields)...)} }

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		switch v := f.Value().(type) {
		case string:
			out[i] = zap.String(f.Key(), v)
		case int:
			out[i] = zap.Int(f.Key(), v)
		case int64:
			out[i] = zap.Int64(f.Key(), v)
		case float64:
			out[i] = zap.Float64(f.Key(), v)
		case error:
			out[i] = zap.NamedError(f.Key(), v)
		default:
			out[i] = zap.Any(f.Key(), v)
		}
	}
	return out
}
