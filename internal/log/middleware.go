package log

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

const loggerContextKey contextKey = "logger"

// Middleware puts logger in every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext returns the request logger, or one over the slog default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return logger
	}
	return newLogger(slog.Default(), ComponentApp)
}

// StructuredLogger writes HTTP and ledger records with fixed field sets.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	sl.logger.DebugContext(ctx, "HTTP request started",
		FieldMethod, r.Method,
		FieldPath, r.URL.Path,
		FieldQuery, r.URL.RawQuery,
		FieldUserAgent, r.Header.Get("User-Agent"),
		FieldReferer, r.Header.Get("Referer"),
		FieldClientIP, clientIP)
}

// LogHTTPEnd logs at warn for 4xx and error for 5xx responses.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}
	sl.logger.Log(ctx, level, "HTTP request completed",
		FieldMethod, r.Method,
		FieldPath, r.URL.Path,
		FieldStatusCode, statusCode,
		FieldDuration, durationMs,
		FieldSuccess, statusCode < 400,
		FieldClientIP, clientIP)
}

func (sl *StructuredLogger) LogTransactionRecorded(ctx context.Context, month, id, kind, amount, currency, category string) {
	sl.logger.InfoContext(ctx, "Transaction recorded",
		FieldMonth, month,
		FieldOperation, OpCreate,
		FieldTxnID, id,
		FieldKind, kind,
		FieldAmount, amount,
		FieldCurrency, currency,
		FieldCategory, category)
}
