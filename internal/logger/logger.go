// Package logger wraps zerolog with the process-wide logger used by every
// component.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu     sync.RWMutex
	global zerolog.Logger
)

func init() {
	// Logs go to stderr so commands like replay can print results on stdout.
	setOutput(os.Stderr)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// ParseLevel maps a level name to a zerolog level. Unknown names are info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Init configures the global logger level and output format.
func Init(level string, pretty bool) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	var output io.Writer = os.Stderr
	if pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}
	setOutput(output)
}

// SetOutput redirects the global logger, keeping the current level.
func SetOutput(w io.Writer) {
	setOutput(w)
}

func setOutput(w io.Writer) {
	l := zerolog.New(w).
		With().
		Timestamp().
		Logger()

	mu.Lock()
	global = l
	mu.Unlock()
	log.Logger = l
}

// Get returns the global logger.
func Get() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := global
	return &l
}

// WithComponent returns a logger with the component field set.
func WithComponent(component string) *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := global.With().Str("component", component).Logger()
	return &l
}
