// Package logging provides structured logging for the NEB path optimization
// service.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	// DebugLevel logs are voluminous and usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info but need no individual
	// human review.
	WarnLevel
	// ErrorLevel logs are high-priority failures.
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel
)

// String returns the level name.
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
	default:
		return "UNKNOWN"
	}
}

// Fields is a set of contextual key-value pairs attached to log entries.
type Fields map[string]interface{}

// Logger writes structured log entries to a single output.
type Logger struct {
	level  Level
	json   bool
	output io.Writer
	fields Fields
}

// New creates a Logger writing entries at or above level to output. When
// jsonFormat is false, entries are rendered as a single human-readable line.
func New(level Level, output io.Writer, jsonFormat bool) *Logger {
	return &Logger{
		level:  level,
		json:   jsonFormat,
		output: output,
		fields: Fields{},
	}
}

// WithFields returns a Logger that attaches the given fields to every entry.
func (l *Logger) WithFields(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, json: l.json, output: l.output, fields: merged}
}

// WithField returns a Logger with one additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(Fields{key: value})
}

// WithError returns a Logger with the error field set.
func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err.Error())
}

func (l *Logger) log(level Level, msg string, fields Fields) {
	if level < l.level {
		return
	}

	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	if l.json {
		entry := make(map[string]interface{}, len(merged)+3)
		for k, v := range merged {
			entry[k] = v
		}
		entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
		entry["level"] = level.String()
		entry["message"] = msg

		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.output, "%s [%s] %s %+v\n",
				time.Now().UTC().Format(time.RFC3339), level, msg, merged)
		} else {
			l.output.Write(append(data, '\n'))
		}
	} else {
		var b strings.Builder
		fmt.Fprintf(&b, "%s [%s] %s", time.Now().UTC().Format(time.RFC3339), level, msg)
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, merged[k])
		}
		b.WriteByte('\n')
		io.WriteString(l.output, b.String())
	}

	if level == FatalLevel {
		os.Exit(1)
	}
}

func first(fields []Fields) Fields {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// Debug logs a message at DebugLevel.
func (l *Logger) Debug(msg string, fields ...Fields) { l.log(DebugLevel, msg, first(fields)) }

// Info logs a message at InfoLevel.
func (l *Logger) Info(msg string, fields ...Fields) { l.log(InfoLevel, msg, first(fields)) }

// Warn logs a message at WarnLevel.
func (l *Logger) Warn(msg string, fields ...Fields) { l.log(WarnLevel, msg, first(fields)) }

// Error logs a message at ErrorLevel.
func (l *Logger) Error(msg string, fields ...Fields) { l.log(ErrorLevel, msg, first(fields)) }

// Fatal logs a message at FatalLevel then exits.
func (l *Logger) Fatal(msg string, fields ...Fields) { l.log(FatalLevel, msg, first(fields)) }

type ctxKey struct{}

// FromContext returns the logger stored in ctx, or a default stderr logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return New(InfoLevel, os.Stderr, true)
}

// IntoContext returns a context carrying the logger.
func IntoContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}
