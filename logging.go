package opengine

import (
	"io"
	"os"
	"sync"

	"github.com/op/go-logging"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

var logFormat = logging.MustStringFormatter(
	`%{color}[%{time:15:04:05.000}] [%{module}] %{level:.4s}%{color:reset} %{message}`,
)

var plainLogFormat = logging.MustStringFormatter(
	`[%{module}] %{level:.4s}: %{message}`,
)

type DefaultLogger struct {
	mu      sync.Mutex
	debug   bool
	prefix  string
	log     *logging.Logger
	leveled logging.LeveledBackend
}

// NewDefaultLogger logs debug/info records to stdout and warnings/errors to stderr.
func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return newLogger(prefix, debug, os.Stdout, os.Stderr, logFormat)
}

// NewLoggerTo is NewDefaultLogger with explicit sinks and no color codes.
func NewLoggerTo(prefix string, debug bool, out, errOut io.Writer) *DefaultLogger {
	return newLogger(prefix, debug, out, errOut, plainLogFormat)
}

func newLogger(prefix string, debug bool, out, errOut io.Writer, format logging.Formatter) *DefaultLogger {
	if prefix == "" {
		prefix = "opengine"
	}
	split := &splitBackend{
		out: logging.NewBackendFormatter(logging.NewLogBackend(out, "", 0), format),
		err: logging.NewBackendFormatter(logging.NewLogBackend(errOut, "", 0), format),
	}
	leveled := logging.AddModuleLevel(split)

	l := &DefaultLogger{
		prefix:  prefix,
		log:     logging.MustGetLogger(prefix),
		leveled: leveled,
	}
	l.log.SetBackend(leveled)
	l.SetDebug(debug)
	return l
}

// splitBackend routes warnings and errors to a separate sink.
type splitBackend struct {
	out logging.Backend
	err logging.Backend
}

func (b *splitBackend) Log(level logging.Level, calldepth int, rec *logging.Record) error {
	if level <= logging.WARNING {
		return b.err.Log(level, calldepth+1, rec)
	}
	return b.out.Log(level, calldepth+1, rec)
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	if enabled {
		l.leveled.SetLevel(logging.DEBUG, l.prefix)
	} else {
		l.leveled.SetLevel(logging.INFO, l.prefix)
	}
	l.mu.Unlock()
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	l.log.Debugf(format, args...)
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.log.Infof(format, args...)
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.log.Warningf(format, args...)
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.log.Errorf(format, args...)
}

type nopLogger struct{}

func NewNopLogger() Logger { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}

// OrNop returns l, or a no-op logger when l is nil. Never returns nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}
