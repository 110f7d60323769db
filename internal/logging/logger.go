// Package logging wraps zap with the structured helpers the rest of the
// core uses for business and audit events and slow queries.
package logging

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger embeds *zap.Logger with marketplace-specific convenience methods.
type Logger struct {
	*zap.Logger
	service string
}

// Config controls logger construction.
type Config struct {
	Level       string
	Service     string
	Environment string
	Format      string // json or console
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// New builds a Logger from Config, defaulting to JSON production output.
func New(cfg Config) *Logger {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zapcore.EncoderConfig{
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
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)
	base := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).With(
		zap.String("service", cfg.Service),
		zap.String("environment", cfg.Environment),
	)

	return &Logger{Logger: base, service: cfg.Service}
}

// WithRequestID attaches a request id field.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("request_id", requestID)), service: l.service}
}

// WithContext pulls a request id out of ctx, if present, and attaches it.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return l.WithRequestID(id)
	}
	return l
}

// ContextWithRequestID returns a context carrying the given request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// BusinessEvent logs a domain event (order accepted, vendor reassigned, ...).
func (l *Logger) BusinessEvent(eventType, eventID string, fields ...zap.Field) {
	all := append([]zap.Field{
		zap.String("event_type", eventType),
		zap.String("event_id", eventID),
		zap.Time("event_time", time.Now()),
	}, fields...)
	l.Info("business event", all...)
}

// AuditEvent logs an admin-initiated state change with before/after payloads.
func (l *Logger) AuditEvent(action, resource, actor string, before, after interface{}) {
	l.Info("audit event",
		zap.String("action", action),
		zap.String("resource", resource),
		zap.String("actor", actor),
		zap.Any("before", before),
		zap.Any("after", after),
	)
}

// SlowQuery logs a database query that exceeded the configured threshold.
func (l *Logger) SlowQuery(query string, duration time.Duration, threshold time.Duration) {
	if duration < threshold {
		return
	}
	l.Warn("slow query",
		zap.String("query", query),
		zap.Duration("duration", duration),
		zap.Duration("threshold", threshold),
	)
}
