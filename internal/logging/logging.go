package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	base        zerolog.Logger
	initialized bool
)

// Init configures the process-wide logger: console output, RFC3339
// timestamps, level from LOG_LEVEL (debug outside production).
func Init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level())

	out := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	base = zerolog.New(out).With().Timestamp().Logger()
	initialized = true
}

func level() zerolog.Level {
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		if l, err := zerolog.ParseLevel(s); err == nil {
			return l
		}
	}
	if os.Getenv("HARVESTER_ENVIRONMENT") == "production" {
		return zerolog.InfoLevel
	}
	return zerolog.DebugLevel
}

// For returns a sub-logger tagged with the given component name.
func For(component string) zerolog.Logger {
	if !initialized {
		Init()
	}
	return base.With().Str("component", component).Logger()
}
