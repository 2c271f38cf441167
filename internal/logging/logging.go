// Package logging adapts zerolog to the runtime.Logger interface so code
// written against Nakama's logger also runs outside the server.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rs/zerolog"
)

// Logger is a runtime.Logger backed by a zerolog.Logger.
type Logger struct {
	zl     zerolog.Logger
	fields map[string]interface{}
}

var _ runtime.Logger = (*Logger)(nil)

// New returns a JSON logger writing to w.
func New(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// NewConsole returns a human readable logger writing to w.
func NewConsole(w io.Writer, level zerolog.Level) *Logger {
	return New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}, level)
}

// ParseLevel accepts zerolog level names and the "warning" alias.
func ParseLevel(name string) (zerolog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	return zerolog.ParseLevel(name)
}

func (l *Logger) Debug(format string, v ...interface{}) { l.zl.Debug().Msgf(format, v...) }
func (l *Logger) Info(format string, v ...interface{})  { l.zl.Info().Msgf(format, v...) }
func (l *Logger) Warn(format string, v ...interface{})  { l.zl.Warn().Msgf(format, v...) }
func (l *Logger) Error(format string, v ...interface{}) { l.zl.Error().Msgf(format, v...) }

func (l *Logger) WithField(key string, v interface{}) runtime.Logger {
	return l.WithFields(map[string]interface{}{key: v})
}

func (l *Logger) WithFields(fields map[string]interface{}) runtime.Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{zl: l.zl.With().Fields(fields).Logger(), fields: merged}
}

func (l *Logger) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		out[k] = v
	}
	return out
}
