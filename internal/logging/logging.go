// Package logging holds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var logout = zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance. Commands pass it down to
// the components they build.
var Logger = New(logout)

// New returns a logger writing to w at info level.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		With().Timestamp().Logger().
		Level(zerolog.InfoLevel)
}

// Nop returns a disabled logger.
func Nop() zerolog.Logger { return zerolog.Nop() }

// SetLevel parses level and applies it to Logger.
func SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	Logger = Logger.Level(lvl)
	return nil
}

// ParseLevel parses a level name, case-insensitively. An empty name is info.
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}
