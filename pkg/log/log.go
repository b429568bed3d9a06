package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide root logger. Every component derives a
// child from it so one Init call governs level and format for all the
// loops a chirp process runs.
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Config holds logging configuration.
type Config struct {
	// Level is a zerolog level name: debug, info, warn, error.
	// Unrecognized values fall back to info.
	Level string

	// JSON switches to machine-readable output; the default is the
	// human console format.
	JSON bool

	// Output defaults to stdout. Processes that want the classic
	// one-log-file-per-node layout pass an opened file here.
	Output io.Writer
}

// Init initializes the root logger.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// WithComponent creates a child logger for one of a process's loops
// ("broker", "publisher", "datastore", ...).
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithServerID creates an app server's logger, tagged with the
// broker-assigned id so interleaved multi-server logs stay readable.
func WithServerID(serverID int) zerolog.Logger {
	return Logger.With().Str("component", "appserver").Int("server_id", serverID).Logger()
}

// WithUsername creates a client's logger, tagged with the signed-up
// username.
func WithUsername(username string) zerolog.Logger {
	return Logger.With().Str("component", "client").Str("username", username).Logger()
}

// Errorf logs err under msg on the root logger; for call sites that
// have no component logger at hand.
func Errorf(msg string, err error) {
	Logger.Error().Err(err).Msg(msg)
}
