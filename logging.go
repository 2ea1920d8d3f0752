package formulacore

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// baseLogger is the process-wide console logger every subsystem derives its
// sub-logger from. Built locally rather than via zerolog/log's package
// global, since this is a library and should not mutate global logging
// state a host binary may already be configuring.
var (
	baseLoggerOnce sync.Once
	baseLogger     zerolog.Logger
)

func newComponentLogger(component string) zerolog.Logger {
	baseLoggerOnce.Do(func() {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		baseLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	})
	return baseLogger.With().Str("component", component).Logger()
}
