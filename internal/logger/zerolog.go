package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

type ZerologAdapter struct {
	logger zerolog.Logger
}

func NewZerolog(writer io.Writer, level zerolog.Level) *ZerologAdapter {
	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &ZerologAdapter{logger: logger}
}

func NewConsoleLogger(level zerolog.Level) *ZerologAdapter {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return NewZerolog(consoleWriter, level)
}

// NewJSONLogger writes one JSON object per line to stderr.
func NewJSONLogger(level zerolog.Level) *ZerologAdapter {
	return NewZerolog(os.Stderr, level)
}

// NewNop discards everything. Used by tests and library callers that do
// not care about diagnostics.
func NewNop() *ZerologAdapter {
	return &ZerologAdapter{logger: zerolog.Nop()}
}

func (z *ZerologAdapter) Debug(component, message string, fields map[string]interface{}) {
	emit(z.logger.Debug(), component, fields).Msg(message)
}

func (z *ZerologAdapter) Info(component, message string, fields map[string]interface{}) {
	emit(z.logger.Info(), component, fields).Msg(message)
}

func (z *ZerologAdapter) Warning(component, message string, fields map[string]interface{}) {
	emit(z.logger.Warn(), component, fields).Msg(message)
}

func (z *ZerologAdapter) Error(component string, err error, fields map[string]interface{}) {
	emit(z.logger.Error().Err(err), component, fields).Msg("operation failed")
}

// emit attaches the component and fields in key order so console output
// is stable between runs. Common field types keep their zerolog encoding.
func emit(event *zerolog.Event, component string, fields map[string]interface{}) *zerolog.Event {
	event = event.Str("component", component)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			event = event.Str(k, v)
		case int:
			event = event.Int(k, v)
		case int64:
			event = event.Int64(k, v)
		case float64:
			event = event.Float64(k, v)
		case bool:
			event = event.Bool(k, v)
		case time.Duration:
			event = event.Dur(k, v)
		case error:
			event = event.AnErr(k, v)
		case fmt.Stringer:
			event = event.Stringer(k, v)
		default:
			event = event.Interface(k, v)
		}
	}
	return event
}
