package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	initOnce sync.Once
	logger   *slog.Logger
	exitFunc = os.Exit

	zapOnce   sync.Once
	zapLogger *zap.Logger
)

// L returns the shared application logger, initializing it on first use.
func L() *slog.Logger {
	initOnce.Do(func() {
		logger = slog.New(newHandler())
	})
	return logger
}

func newHandler() slog.Handler {
	level := parseLevel(os.Getenv("PATHFLOW_LOG_LEVEL"))
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: strings.EqualFold(os.Getenv("PATHFLOW_LOG_SOURCE"), "true"),
	}

	if jsonFormat() {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	// Text handler writes to stderr so JSON output remains clean if enabled later.
	return slog.NewTextHandler(os.Stderr, opts)
}

func jsonFormat() bool {
	switch strings.ToLower(os.Getenv("PATHFLOW_LOG_FORMAT")) {
	case "json", "structured":
		return true
	}
	return false
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// zapLevel maps the configured slog level onto zap's levels.
func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level <= slog.LevelDebug:
		return zapcore.DebugLevel
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// Zap returns a zap logger honouring the same level and format settings.
// It backs the HTTP access log middleware.
func Zap() *zap.Logger {
	zapOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		if !jsonFormat() {
			cfg = zap.NewDevelopmentConfig()
		}
		cfg.Level = zap.NewAtomicLevelAt(zapLevel(parseLevel(os.Getenv("PATHFLOW_LOG_LEVEL"))))
		built, err := cfg.Build()
		if err != nil {
			L().Warn("falling back to no-op access logger", "error", err)
			built = zap.NewNop()
		}
		zapLogger = built
	})
	return zapLogger
}

// With returns a child logger with additional attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

// Fatal logs the message at error level and exits with status 1.
func Fatal(msg string, args ...any) {
	L().Error(msg, args...)
	exitFunc(1)
}
