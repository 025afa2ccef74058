package logging

import (
	"context"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// contextKey for request ID
type contextKey string

const RequestIDKey contextKey = "request_id"

var (
	logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func parseLevel(name string) zapcore.Level {
	switch name {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// Init initializes the structured logger
func Init(levelName string) error {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	level.SetLevel(parseLevel(levelName))
	config.Level = level

	// Development mode for better readability during development
	if os.Getenv("COLOFAIL_ENV") == "development" {
		config.Development = true
		config.Encoding = "console"
		config.EncoderConfig = zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}
	}

	l, err := config.Build()
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// SetLevel changes the level of the running logger.
func SetLevel(levelName string) {
	level.SetLevel(parseLevel(levelName))
}

// Level returns the current log level.
func Level() zapcore.Level {
	return level.Level()
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		// Fallback to default production logger
		logger, _ = zap.NewProduction()
	}
	return logger
}

// NewRequestID returns a fresh request identifier.
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

func withRequestID(ctx context.Context, fields []zap.Field) []zap.Field {
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	return fields
}

// LogHTTPRequest logs HTTP request with structured fields
func LogHTTPRequest(ctx context.Context, method, path, country, status string, latency, size int64) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("path", path),
		zap.String("country", country),
		zap.String("status", status),
		zap.Int64("latency_ms", latency),
		zap.Int64("size_bytes", size),
	}
	GetLogger().Info("http_request", withRequestID(ctx, fields)...)
}

// LogFailingCountries logs the registry snapshot read at the start of a request
func LogFailingCountries(ctx context.Context, codes []string) {
	GetLogger().Debug("failing_countries", withRequestID(ctx, []zap.Field{
		zap.Strings("countries", codes),
	})...)
}

// LogGateDecision logs why a request was failed or served
func LogGateDecision(ctx context.Context, outcome, country string, delayMs int64) {
	fields := []zap.Field{
		zap.String("outcome", outcome),
		zap.String("country", country),
		zap.Int64("delay_ms", delayMs),
	}
	GetLogger().Info("gate_decision", withRequestID(ctx, fields)...)
}

// LogRegistryMutation logs a country being added to or removed from the registry
func LogRegistryMutation(ctx context.Context, country, action string, delayMs int64) {
	fields := []zap.Field{
		zap.String("country", country),
		zap.String("action", action),
		zap.Int64("delay_ms", delayMs),
	}
	GetLogger().Info("registry_mutation", withRequestID(ctx, fields)...)
}

// LogStoreError logs registry store failures with context
func LogStoreError(ctx context.Context, op string, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.Error(err),
	}
	GetLogger().Error("store_error", withRequestID(ctx, fields)...)
}

// LogHTTPServerStart logs HTTP server startup
func LogHTTPServerStart(addr string) {
	GetLogger().Info("http_server_start",
		zap.String("listen_addr", addr),
	)
}

func toFields(fields map[string]interface{}) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			zapFields = append(zapFields, zap.String(k, val))
		case int:
			zapFields = append(zapFields, zap.Int(k, val))
		case bool:
			zapFields = append(zapFields, zap.Bool(k, val))
		case float64:
			zapFields = append(zapFields, zap.Float64(k, val))
		case error:
			zapFields = append(zapFields, zap.NamedError(k, val))
		default:
			zapFields = append(zapFields, zap.Any(k, v))
		}
	}
	return zapFields
}

// LogInfo logs general info messages with structured fields
func LogInfo(message string, fields map[string]interface{}) {
	GetLogger().Info(message, toFields(fields)...)
}

// LogWarn logs warning messages with structured fields
func LogWarn(message string, fields map[string]interface{}) {
	GetLogger().Warn(message, toFields(fields)...)
}

// LogError logs error messages with structured fields
func LogError(message string, fields map[string]interface{}) {
	GetLogger().Error(message, toFields(fields)...)
}

// Sync flushes any buffered log entries
func Sync() error {
	if logger != nil {
		return logger.Sync()
	}
	return nil
}
