package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseZerologLevel converts a string log level to zerolog.Level.
func ParseZerologLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "TRACE":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewZerolog builds the structured logger used by the storage and telemetry
// managers: colored console output plus an uncolored copy in file.
func NewZerolog(file io.Writer, level string) zerolog.Logger {
	writers := []io.Writer{
		zerolog.ConsoleWriter{
			Out:        osStdout,
			TimeFormat: time.RFC3339,
		},
	}
	if file != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        file,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseZerologLevel(level)).
		With().Timestamp().Logger()
}

// NewTraceSampler derives a logger for hot paths such as per-frame inbound
// traffic: at most burst entries per period, then 1 in 100.
func NewTraceSampler(base zerolog.Logger, burst uint32, period time.Duration) zerolog.Logger {
	return base.With().Bool("sampled", true).Logger().Sample(&zerolog.BurstSampler{
		Burst:       burst,
		Period:      period,
		NextSampler: &zerolog.BasicSampler{N: 100},
	})
}
