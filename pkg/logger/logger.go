// Package logger provides the small leveled key/value logger used by the
// streamform server and CLI.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"
)

// Level is the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
// Unknown strings map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Logger writes timestamped leveled lines with sorted key=value context
// fields appended.
type Logger struct {
	level  Level
	out    *log.Logger
	fields map[string]interface{}
}

// New creates a logger at INFO writing to stdout.
func New() *Logger {
	return NewWithLevel(INFO, os.Stdout)
}

// NewWithLevel creates a logger with an explicit level and output.
func NewWithLevel(level Level, w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{
		level:  level,
		out:    log.New(w, "", 0),
		fields: map[string]interface{}{},
	}
}

// WithField returns a child logger that adds one context field to every
// line.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(key, value)
}

// WithFields returns a child logger carrying the given key/value pairs.
func (l *Logger) WithFields(keyVals ...interface{}) *Logger {
	child := &Logger{
		level:  l.level,
		out:    l.out,
		fields: make(map[string]interface{}, len(l.fields)+len(keyVals)/2),
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for i := 0; i+1 < len(keyVals); i += 2 {
		child.fields[fmt.Sprintf("%v", keyVals[i])] = keyVals[i+1]
	}
	return child
}

// SetLevel adjusts the minimum severity that is emitted.
func (l *Logger) SetLevel(level Level) { l.level = level }

func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(DEBUG, msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.log(INFO, msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.log(WARN, msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(ERROR, msg, kv...) }

// Fatal logs at ERROR and exits the process.
func (l *Logger) Fatal(msg string, kv ...interface{}) {
	l.log(ERROR, msg, kv...)
	os.Exit(1)
}

func (l *Logger) log(level Level, msg string, kv ...interface{}) {
	if level < l.level {
		return
	}

	fields := make(map[string]interface{}, len(l.fields)+len(kv)/2)
	for k, v := range l.fields {
		fields[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprintf("%v", kv[i])] = kv[i+1]
	}

	line := []string{
		"[" + time.Now().Format("2006-01-02T15:04:05.000Z07:00") + "]",
		"[" + level.String() + "]",
		msg,
	}
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+formatValue(fields[k]))
		}
		line = append(line, "| "+strings.Join(pairs, " "))
	}
	l.out.Print(strings.Join(line, " "))
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		if strings.Contains(t, " ") {
			return fmt.Sprintf("%q", t)
		}
		return t
	case error:
		return fmt.Sprintf("%q", t.Error())
	case time.Duration:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
