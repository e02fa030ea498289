package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the process logger. The level comes straight from LOG_LEVEL so it
// can be set before configuration loads; anything unparseable falls back to
// info.
func New() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Logger().
		Level(level)
}
