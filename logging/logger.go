// Package logging provides the level-gated logger shared by every
// NexLattice component. It is constructed once at process startup and
// passed explicitly to each component; nothing in this module reaches for
// a package-level global logger.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

const (
	LevelSilent = iota
	LevelError
	LevelInfo
	LevelDebug
)

var _ Logger = &standardLogger{}

// Logger is the logging surface every component depends on. With returns a
// derived Logger that tags every subsequent line with an extra key=value
// field, so a handler can scope a burst of log lines to the peer or
// subsystem they concern (a mesh node's log is read with "which neighbor is
// this about" as the first question, not "which Go file logged it").
type Logger interface {
	Debug(v ...interface{})
	Debugf(f string, v ...interface{})
	Info(v ...interface{})
	Infof(f string, v ...interface{})
	Error(v ...interface{})
	Errorf(f string, v ...interface{})
	With(key string, value interface{}) Logger
}

// standardLogger gates each of the three severities to stdout or io.Discard
// based on level, re-resolving that choice on every call rather than baking
// it into three pre-built *log.Logger, so that With can cheaply derive a
// tagged child without needing to remember which writer each severity
// picked at construction time.
type standardLogger struct {
	level  int
	out    io.Writer
	prefix string
	flags  int
}

// New builds a Logger writing to stdout, gated at level, with every line
// prefixed by prepend (typically the node name in parentheses).
func New(level int, prepend string) Logger {
	return &standardLogger{level: level, out: os.Stdout, prefix: prepend, flags: log.Ldate | log.Ltime}
}

// With returns a child logger whose lines additionally carry "key=value"
// ahead of the message, e.g. a dispatch handler scoping to the peer it's
// about: log.With("peer", "node-b").Debugf("session established").
func (l *standardLogger) With(key string, value interface{}) Logger {
	return &standardLogger{
		level:  l.level,
		out:    l.out,
		prefix: fmt.Sprintf("%s%s=%v ", l.prefix, key, value),
		flags:  l.flags,
	}
}

func (l *standardLogger) writer(min int) io.Writer {
	if l.level < min {
		return io.Discard
	}
	return l.out
}

func (l *standardLogger) line(min int, tag string) *log.Logger {
	return log.New(l.writer(min), tag+": "+l.prefix, l.flags)
}

func (l *standardLogger) Debug(v ...interface{})  { l.line(LevelDebug, "DEBUG").Println(v...) }
func (l *standardLogger) Debugf(f string, v ...interface{}) {
	l.line(LevelDebug, "DEBUG").Printf(f, v...)
}
func (l *standardLogger) Info(v ...interface{}) { l.line(LevelInfo, "INFO").Println(v...) }
func (l *standardLogger) Infof(f string, v ...interface{}) {
	l.line(LevelInfo, "INFO").Printf(f, v...)
}
func (l *standardLogger) Error(v ...interface{}) { l.line(LevelError, "ERROR").Println(v...) }
func (l *standardLogger) Errorf(f string, v ...interface{}) {
	l.line(LevelError, "ERROR").Printf(f, v...)
}
