// Package logging configures the global zerolog logger used across the
// server, the MCP bridge and the command line tools.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps a level name to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "DISABLED", "OFF":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Setup installs a console logger writing to out. Extra writers, such as a
// log file, receive the same lines without colour.
func Setup(level string, out io.Writer, extra ...io.Writer) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(level))
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		},
	}
	for _, w := range extra {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}

	var writer io.Writer = writers[0]
	if len(writers) > 1 {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
	log.Debug().Str("loglevel", zerolog.GlobalLevel().String()).Msg("logging set up")
	return log.Logger
}
