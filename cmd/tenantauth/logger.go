package main

import (
	"os"

	"github.com/rs/zerolog"
)

// newLogger writes human-readable output in the local environment and JSON
// everywhere else.
func newLogger(appEnv, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if appEnv == "local" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(lvl).With().Timestamp().Str("service", "tenantauth").Logger()
}
