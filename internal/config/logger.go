package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger for a service.
func (c *Config) NewLogger(service, version string) zerolog.Logger {
	return c.newLogger(os.Stdout, service, version)
}

func (c *Config) newLogger(w io.Writer, service, version string) zerolog.Logger {
	if strings.EqualFold(c.Log.Format, "text") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}
