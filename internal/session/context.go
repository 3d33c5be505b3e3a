package session

import (
	"log/slog"
	"sync"

	"github.com/flickshot/flickshot/internal/generator"
	"github.com/flickshot/flickshot/internal/scenario"
)

// Context holds the scenario currently loaded and the outcome of its last
// generation. It is read from other goroutines, so every access locks.
type Context struct {
	mu       sync.RWMutex
	id       string
	scenario scenario.Scenario
	result   generator.Result
	loaded   bool
}

// NewContext creates an empty Context for session id.
func NewContext(id string) *Context {
	return &Context{id: id}
}

// ID returns the session id.
func (c *Context) ID() string {
	return c.id
}

// Scenario returns the current scenario, if any.
func (c *Context) Scenario() (scenario.Scenario, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scenario, c.loaded
}

// ScenarioName returns the current scenario name or "".
func (c *Context) ScenarioName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scenario.Name
}

// Result returns the last generation result.
func (c *Context) Result() generator.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result
}

// Set records a freshly loaded scenario.
func (c *Context) Set(sc scenario.Scenario, res generator.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenario = sc
	c.result = res
	c.loaded = true
}

// LogAttrs is a logging.ContextProvider.
func (c *Context) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("session", c.id)}
	if name := c.ScenarioName(); name != "" {
		attrs = append(attrs, slog.String("scenario", name))
	}
	return attrs
}
