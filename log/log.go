// Package log is a small leveled logging layer on top of the standard
// library logger. It exists so connection and cache code can attach
// structured fields (connection id, remote address) without pulling in a
// third-party logging framework.
// NOTE: no logging library is wired anywhere else in this project either,
// so there is nothing concrete to swap this implementation out for.
package log

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
)

// Logger is a leveled logger that can carry structured fields.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	// WithFields returns a Logger that prefixes every line with keyValues
	// merged over this logger's own fields.
	WithFields(keyValues LogFields) Logger
	Fields() Fields
}

// LogFields is satisfied by Fields itself, so WithFields(Fields{...}) reads
// naturally at call sites.
type LogFields interface {
	Fields() map[string]interface{}
}

type Fields map[string]interface{}

func (f Fields) Fields() map[string]interface{} { return f }

type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	}
	panic("unexpected level: " + strconv.Itoa(int(l)))
}

var stringToLevel = func() map[string]Level {
	levels := []Level{DebugLevel, InfoLevel, WarnLevel, ErrorLevel, FatalLevel}
	res := make(map[string]Level, len(levels))
	for _, l := range levels {
		res[l.String()] = l
	}
	return res
}()

func LevelFromString(s string) (Level, error) {
	l, ok := stringToLevel[strings.ToUpper(s)]
	if !ok {
		return 0, errors.New("invalid level " + s)
	}
	return l, nil
}

const stdLoggerFlags = log.LstdFlags | log.Lmicroseconds | log.Lshortfile

// NewLogger returns a Logger writing formatted lines at level l or above to w.
func NewLogger(l Level, w io.Writer) Logger {
	return NewLoggerSink(l, &stdSink{log.New(w, "", stdLoggerFlags)})
}

func NewLoggerSink(l Level, s Sink) Logger {
	return &logger{sink: s, level: l}
}

// NewNopLogger discards everything. Used as the default when no Logger is
// configured, and in tests that don't care about log output.
func NewNopLogger() Logger { return NewLoggerSink(FatalLevel+1, nopSink{}) }

type logger struct {
	sink   Sink
	level  Level
	fields Fields
}

func (l *logger) Fields() Fields { return l.fields }

func (l *logger) WithFields(keyValues LogFields) Logger {
	next := *l
	extra := keyValues.Fields()
	if next.fields == nil {
		next.fields = extra
	} else {
		merged := make(Fields, len(l.fields)+len(extra))
		for k, v := range l.fields {
			merged[k] = v
		}
		for k, v := range extra {
			merged[k] = v
		}
		next.fields = merged
	}
	return &next
}

func (l *logger) Debug(args ...interface{})                 { l.log(DebugLevel, fmt.Sprint(args...)) }
func (l *logger) Debugf(format string, args ...interface{}) { l.log(DebugLevel, fmt.Sprintf(format, args...)) }
func (l *logger) Info(args ...interface{})                  { l.log(InfoLevel, fmt.Sprint(args...)) }
func (l *logger) Infof(format string, args ...interface{})  { l.log(InfoLevel, fmt.Sprintf(format, args...)) }
func (l *logger) Warn(args ...interface{})                  { l.log(WarnLevel, fmt.Sprint(args...)) }
func (l *logger) Warnf(format string, args ...interface{})  { l.log(WarnLevel, fmt.Sprintf(format, args...)) }
func (l *logger) Error(args ...interface{})                 { l.log(ErrorLevel, fmt.Sprint(args...)) }
func (l *logger) Errorf(format string, args ...interface{}) { l.log(ErrorLevel, fmt.Sprintf(format, args...)) }
func (l *logger) Fatal(args ...interface{}) {
	l.log(FatalLevel, fmt.Sprint(args...))
	os.Exit(1)
}
func (l *logger) Fatalf(format string, args ...interface{}) {
	l.log(FatalLevel, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Sink is the output side of a logger: something that can accept one
// already-leveled, already-formatted line.
type Sink interface {
	Output(callDepth int, formatted string)
}

type stdSink struct {
	std *log.Logger
}

func (s *stdSink) Output(callDepth int, formatted string) {
	s.std.Output(callDepth+1, formatted)
}

type nopSink struct{}

func (nopSink) Output(int, string) {}

const initialLoggerCallDepth = 3

func (l *logger) log(level Level, msg string) {
	if level < l.level {
		return
	}
	l.sink.Output(initialLoggerCallDepth, format(level, l.fields, msg))
}

func format(l Level, f Fields, msg string) string {
	if len(f) == 0 {
		return l.String() + ": " + msg
	}
	fBytes, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%s: %s %s", l.String(), fBytes, msg)
}
