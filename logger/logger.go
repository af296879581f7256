package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured logger
type Logger struct {
	logger zerolog.Logger
}

// Fields represents log fields
type Fields map[string]interface{}

var (
	// Default is the default logger instance
	Default *Logger

	initOnce sync.Once
)

// Init initializes the logger from LOG_LEVEL and PRICE_MONITOR_ENVIRONMENT
func Init() {
	Default = New(os.Stdout, getLogLevel(), isProduction())

	Default.Info().
		Str("level", zerolog.GlobalLevel().String()).
		Msg("Logger initialized")
}

// New creates a logger writing to out. Production loggers emit JSON lines,
// everything else goes through the console writer.
func New(out io.Writer, level zerolog.Level, production bool) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	if !production {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	return &Logger{logger: zerolog.New(out).With().Timestamp().Logger()}
}

func ensure() {
	initOnce.Do(func() {
		if Default == nil {
			Init()
		}
	})
}

func isProduction() bool {
	return os.Getenv("PRICE_MONITOR_ENVIRONMENT") == "production"
}

// getLogLevel returns the log level from environment variable
func getLogLevel() zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		if isProduction() {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// WithFields creates a new logger with fields
func (l *Logger) WithFields(fields Fields) *Logger {
	newLogger := l.logger.With()
	for k, v := range fields {
		newLogger = newLogger.Interface(k, v)
	}
	return &Logger{logger: newLogger.Logger()}
}

// WithField creates a new logger with a single field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

// Debug returns a debug event
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info returns an info event
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn returns a warn event
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error returns an error event
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// Fatal returns a fatal event
func (l *Logger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}

// Info logs an info message
func Info(format string, v ...interface{}) {
	ensure()
	Default.Info().Msgf(format, v...)
}

// Warn logs a warning message
func Warn(format string, v ...interface{}) {
	ensure()
	Default.Warn().Msgf(format, v...)
}

func component(name string) *Logger {
	ensure()
	return Default.WithField("component", name)
}

// ForFetcher creates a logger for the page fetcher
func ForFetcher() *Logger { return component("fetcher") }

// ForExtractor creates a logger for a platform extraction strategy
func ForExtractor(platform string) *Logger {
	return component("extractor").WithField("platform", platform)
}

// ForMonitor creates a logger for the monitor orchestrator
func ForMonitor() *Logger { return component("monitor") }

// ForStore creates a logger for the record store
func ForStore() *Logger { return component("store") }

// ForNotifier creates a logger for alert delivery
func ForNotifier() *Logger { return component("notifier") }

// ForWorker creates a logger for the worker
func ForWorker() *Logger { return component("worker") }

// ForCache creates a logger for the cache
func ForCache() *Logger { return component("cache") }

// ForAPI creates a logger for the admin HTTP server
func ForAPI() *Logger { return component("api") }

// LogError is a convenience method for logging errors with context
func LogError(component string, err error, format string, v ...interface{}) {
	ensure()
	msg := fmt.Sprintf(format, v...)
	Default.Error().
		Str("component", component).
		Err(err).
		Msg(msg)
}
