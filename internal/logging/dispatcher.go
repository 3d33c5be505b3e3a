package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

const badKey = "!BADKEY"

// DispatcherLogger lets the frame dispatcher log through zerolog. An error
// value under the "error" key goes to zerolog's error field.
type DispatcherLogger struct {
	logger zerolog.Logger
}

func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.write(l.logger.Debug(), msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.write(l.logger.Info(), msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.write(l.logger.Error(), msg, keysAndValues)
}

func (l *DispatcherLogger) write(e *zerolog.Event, msg string, kv []any) {
	if e == nil {
		return
	}
	e.Fields(toFields(kv, e)).Msg(msg)
}

// toFields pairs up kv. Non-string keys are formatted and a trailing value
// without a key is kept under badKey, as slog does.
func toFields(kv []any, e *zerolog.Event) map[string]any {
	fields := make(map[string]any, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			fields[badKey] = kv[i]
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if err, isErr := kv[i+1].(error); isErr && key == "error" {
			e.Err(err)
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}
