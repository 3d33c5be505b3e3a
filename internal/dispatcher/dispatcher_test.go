package dispatcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/flickshot/flickshot/pkg/streaming"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_RoutesByType(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register(streaming.TypePlayerLeft, func(e Event) error {
		got = e
		return nil
	})

	env := streaming.Envelope{Type: streaming.TypePlayerLeft, ID: "p2"}
	err := d.Dispatch(Event{Type: env.Type, Envelope: env})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got.Envelope.ID != "p2" {
		t.Errorf("handler saw %+v", got)
	}
}

func TestDispatcher_UnknownType(t *testing.T) {
	d, _ := newTestDispatcher(t)

	err := d.Dispatch(Event{Type: "teleport"})

	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestDispatcher_HandlerErrorPropagates(t *testing.T) {
	d, _ := newTestDispatcher(t)
	boom := errors.New("boom")

	d.Register(streaming.TypeError, func(e Event) error { return boom })

	if err := d.Dispatch(Event{Type: streaming.TypeError}); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(streaming.TypePlayerUpdate, func(e Event) error {
		return nil
	}, Logged())

	d.Dispatch(Event{
		Type:     streaming.TypePlayerUpdate,
		Envelope: streaming.Envelope{Type: streaming.TypePlayerUpdate, Data: json.RawMessage(`{"id":"p2"}`)},
	})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(streaming.TypeAssigned, func(e Event) error {
		return fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(Event{Type: streaming.TypeAssigned})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if strings.HasPrefix(msg, "ERROR") {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(streaming.TypeAssigned, func(e Event) error { return nil })

	if !d.HasHandler(streaming.TypeAssigned) {
		t.Error("expected handler to exist")
	}

	if d.HasHandler(streaming.TypeUpdate) {
		t.Error("expected handler to not exist")
	}
}
