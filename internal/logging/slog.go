package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// replaced in tests
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// SlogManager owns the process loggers. Records fan out to the session log
// file (or stdout when there is none) and optionally a GELF sink.
type SlogManager struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	zlog     *zerolog.Logger
	provider ContextProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch level {
	case slog.LevelDebug:
		return zerolog.DebugLevel
	case slog.LevelWarn:
		return zerolog.WarnLevel
	case slog.LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetContextProvider makes every slog record carry the attributes returned by p.
// It applies to loggers built by later calls to Setup.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.provider = p
}

// Setup initializes the logging system. When file is nil logs go to stdout.
// gelfSink, when non-nil, receives JSON records.
func (m *SlogManager) Setup(file io.Writer, level string, gelfSink io.Writer) {
	lvl := parseLevel(level)

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	primary := file
	if primary == nil {
		primary = osStdout
	}

	handlers := []Sink{{Handler: slog.NewTextHandler(primary, handlerOpts), Min: lvl}}
	sinks := []io.Writer{primary}
	if gelfSink != nil {
		// per-frame debug records stay local
		handlers = append(handlers, Sink{Handler: slog.NewJSONHandler(gelfSink, handlerOpts), Min: max(lvl, slog.LevelInfo)})
		sinks = append(sinks, gelfSink)
	}

	m.mu.Lock()
	var handler slog.Handler = NewMultiHandler(handlers...)
	if m.provider != nil {
		handler = NewContextHandler(handler, m.provider)
	}
	m.logger = slog.New(handler)

	zl := zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(zerologLevel(lvl)).
		With().Timestamp().Logger()
	m.zlog = &zl
	logger := m.logger
	m.mu.Unlock()

	logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// ZeroLogger returns a zerolog logger writing to the same sinks as Logger.
// Before Setup it discards everything.
func (m *SlogManager) ZeroLogger() zerolog.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.zlog == nil {
		return zerolog.Nop()
	}
	return *m.zlog
}

// NewGELFWriter dials a Graylog UDP input.
func NewGELFWriter(addr string) (io.Writer, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, err
	}
	return w, nil
}
