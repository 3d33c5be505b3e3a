// Package dispatcher routes decoded sync frames to per-type handlers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/flickshot/flickshot/pkg/streaming"
)

const instrumentationName = "github.com/flickshot/flickshot/internal/dispatcher"

// ErrUnknownType is returned by Dispatch when no handler matches the frame type.
var ErrUnknownType = errors.New("unknown message type")

// Event is one inbound frame.
type Event struct {
	Type       string
	Envelope   streaming.Envelope
	ReceivedAt time.Time
}

// HandlerFunc processes an event.
type HandlerFunc func(Event) error

// Logger receives handler timing when a handler is registered with Logged.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	logged bool
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers. Registration must finish
// before the first Dispatch.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	processed metric.Int64Counter
	failed    metric.Int64Counter
	unknown   metric.Int64Counter
}

// New creates a Dispatcher. Counters come from the global meter provider
// and are no-ops until the host installs one.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}

	m := otel.Meter(instrumentationName)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&d.processed, "sync.messages.processed", "Inbound frames handled successfully"},
		{&d.failed, "sync.messages.failed", "Inbound frames whose handler returned an error"},
		{&d.unknown, "sync.messages.unknown", "Inbound frames with no registered handler"},
	}
	for _, c := range counters {
		ctr, err := m.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", c.name, err)
		}
		*c.dst = ctr
	}
	return d, nil
}

// Register installs h for msgType, replacing any previous handler.
func (d *Dispatcher) Register(msgType string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withMetrics(msgType, h)

	if cfg.logged {
		handler = d.withLogging(msgType, handler)
	}

	d.handlers[msgType] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) error {
	h, ok := d.handlers[e.Type]
	if !ok {
		d.unknown.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", e.Type)))
		return fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	return h(e)
}

// HasHandler reports whether msgType has a handler.
func (d *Dispatcher) HasHandler(msgType string) bool {
	_, ok := d.handlers[msgType]
	return ok
}

func (d *Dispatcher) withMetrics(msgType string, h HandlerFunc) HandlerFunc {
	typeAttr := metric.WithAttributes(attribute.String("type", msgType))
	return func(e Event) error {
		if err := h(e); err != nil {
			d.failed.Add(context.Background(), 1, typeAttr)
			return err
		}
		d.processed.Add(context.Background(), 1, typeAttr)
		return nil
	}
}

func (d *Dispatcher) withLogging(msgType string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling message", "type", msgType, "bytes", len(e.Envelope.Data))

		err := h(e)

		if err != nil {
			d.logger.Error("message failed", "type", msgType, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("message complete", "type", msgType, "duration", time.Since(start))
		}

		return err
	}
}
