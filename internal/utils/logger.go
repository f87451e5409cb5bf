// Package utils provides utility functions for the credit risk engine.
package utils

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every log entry.
const ServiceName = "credit-risk-engine"

// Logger is the global logger instance.
var Logger *zap.Logger

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Log formats accepted by InitLogger.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// InitLogger initializes the global logger. format is FormatJSON or
// FormatConsole; anything else picks JSON inside Lambda and console elsewhere.
func InitLogger(level, format string) error {
	zapLevel := ParseLevel(level)

	var structured bool
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		structured = true
	case FormatConsole:
		structured = false
	default:
		structured = os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
	}

	var config zap.Config
	if structured {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapLevel)
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build(zap.Fields(zap.String("service", ServiceName)))
	if err != nil {
		return err
	}

	Logger = logger
	return nil
}

// GetLogger returns the global logger, initializing if necessary.
func GetLogger() *zap.Logger {
	if Logger == nil {
		if err := InitLogger("info", ""); err != nil {
			Logger = zap.NewNop()
		}
	}
	return Logger
}

// Sync flushes any buffered log entries.
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// LogField creates a zap field for structured logging.
type LogField = zap.Field

// Common field constructors
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Error    = zap.Error
	Any      = zap.Any
	Duration = zap.Duration
)

// RequestID tags an entry with the request correlation id.
func RequestID(id string) LogField {
	return zap.String("request_id", id)
}
