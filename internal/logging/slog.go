package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Swapped out by tests.
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// SlogManager manages slog-based logging with optional Graylog and OTel sinks.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
	graylog     *gelf.Writer
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// Option adds an optional sink or decoration to Setup.
type Option func(*setupOptions)

type setupOptions struct {
	graylogAddr string
	context     ContextProvider
}

// WithGraylog ships every record as GELF to addr (host:port, UDP).
func WithGraylog(addr string) Option {
	return func(o *setupOptions) {
		o.graylogAddr = addr
	}
}

// WithContext decorates every record with the attributes returned by p.
func WithContext(p ContextProvider) Option {
	return func(o *setupOptions) {
		o.context = p
	}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG", "TRACE":
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

// Setup initializes the logging system. Records go to file when one is
// given and to stdout otherwise. If provider is nil, OTel logging is disabled.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, opts ...Option) {
	o := setupOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	lvl := parseLevel(level)
	m.logProvider = provider
	m.closeGraylog()

	// Common handler options with RFC3339 time formatting
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

	var handlers []slog.Handler

	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}

	var graylogErr error
	if o.graylogAddr != "" {
		w, err := gelf.NewWriter(o.graylogAddr)
		if err != nil {
			graylogErr = err
		} else {
			m.graylog = w
			handlers = append(handlers, slog.NewJSONHandler(w, handlerOpts))
		}
	}

	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler("flickshot", otelslog.WithLoggerProvider(provider)))
	}

	var handler slog.Handler = NewMultiHandler(handlers...)
	if o.context != nil {
		handler = NewContextHandler(handler, o.context)
	}

	m.logger = slog.New(handler)
	if graylogErr != nil {
		m.logger.Warn("Graylog disabled", "address", o.graylogAddr, "error", graylogErr)
	}
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// Close releases the Graylog connection.
func (m *SlogManager) Close() error {
	return m.closeGraylog()
}

func (m *SlogManager) closeGraylog() error {
	if m.graylog == nil {
		return nil
	}
	err := m.graylog.Close()
	m.graylog = nil
	return err
}
