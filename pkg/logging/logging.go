package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logWriter stores the current log writer globally.
var logWriter io.Writer

// init sets the global logging level to InfoLevel by default; commands
// reconfigure it once the process configuration has been loaded.
func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logWriter = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// ConfigureGlobalLogging configures the process-wide logger.
//
// format selects between "text" (console writer) and "json" (raw zerolog
// output). levelStr is parsed with zerolog.ParseLevel; invalid values fall
// back to info.
func ConfigureGlobalLogging(levelStr, format string) error {
	level := parseLogLevel(levelStr)
	zerolog.SetGlobalLevel(level)

	w := getLogWriter()
	if strings.EqualFold(format, "json") {
		w = os.Stderr
	}

	logContext := zerolog.New(w).With().Timestamp()
	if level <= zerolog.DebugLevel {
		logContext = logContext.Caller()
	}

	log.Logger = logContext.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	return nil
}

// NewLogger returns a child logger tagged with a component name.
func NewLogger(component string, level zerolog.Level) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger().Level(level)
}

// parseLogLevel converts a string log level to zerolog.Level.
func parseLogLevel(levelString string) zerolog.Level {
	if levelString == "" {
		levelString = "info"
	}

	level, err := zerolog.ParseLevel(strings.ToLower(levelString))
	if err != nil {
		log.Error().Err(err).
			Str("logLevel", levelString).
			Msg("Invalid log level provided. Defaulting to info level.")
		return zerolog.InfoLevel
	}
	return level
}

// getLogWriter returns the configured log writer.
func getLogWriter() io.Writer {
	return logWriter
}

// SetLogWriter sets the global log writer. Tests use this to capture output.
func SetLogWriter(w io.Writer) {
	logWriter = w
}
