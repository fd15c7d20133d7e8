package logging

import "github.com/rs/zerolog"

// badKey marks a value that had no string key in front of it, as slog does.
const badKey = "!BADKEY"

// DispatcherLogger writes inbound routing events through zerolog so they land
// next to the telemetry records. Error values are logged with AnErr.
type DispatcherLogger struct {
	logger zerolog.Logger
}

func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger.With().Str("component", "dispatcher").Logger()}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	write(l.logger.Debug(), msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	write(l.logger.Info(), msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	write(l.logger.Error(), msg, keysAndValues)
}

func write(e *zerolog.Event, msg string, kv []any) {
	if e == nil {
		return
	}
	for len(kv) > 0 {
		key, ok := kv[0].(string)
		if !ok || len(kv) == 1 {
			e = e.Interface(badKey, kv[0])
			kv = kv[1:]
			continue
		}
		if err, isErr := kv[1].(error); isErr {
			e = e.AnErr(key, err)
		} else {
			e = e.Interface(key, kv[1])
		}
		kv = kv[2:]
	}
	e.Msg(msg)
}
