package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New constructs the process logger. Development environments get human
// readable console output; anything else emits JSON for ingestion.
func New(env, level string, writers ...io.Writer) (zerolog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	var output io.Writer
	switch {
	case len(writers) > 0:
		output = io.MultiWriter(writers...)
	case strings.EqualFold(env, "development") || strings.EqualFold(env, "dev"):
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	default:
		output = os.Stderr
	}
	log := zerolog.New(output).With().Timestamp().Str("service", "outlook-mcp").Logger().Level(lvl)
	return log, nil
}

func parseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(strings.ToLower(level))
}
