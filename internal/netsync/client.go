// Package netsync is the client side of the peer-state sync protocol. It keeps
// a throttled view of every remote player and publishes the local one.
package netsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/flickshot/flickshot/internal/dispatcher"
	"github.com/flickshot/flickshot/internal/logging"
	"github.com/flickshot/flickshot/pkg/core"
	"github.com/flickshot/flickshot/pkg/streaming"
)

const instrumentationName = "github.com/flickshot/flickshot/internal/netsync"

var (
	// ErrNotConnected is returned by SendUpdate while no socket is up.
	ErrNotConnected = errors.New("sync client not connected")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("sync client closed")
	// ErrNotAssigned is returned by SendUpdate before the server assigned an identity.
	ErrNotAssigned = errors.New("sync identity not assigned")
)

// Deps are the collaborators of a Client. Zero values get defaults.
type Deps struct {
	Logger *slog.Logger
	// Trace receives per-frame debug output. It should be sampled.
	Trace *zerolog.Logger
	Clock Clock
}

// Stats is a point-in-time view of the client counters.
type Stats struct {
	State       ConnState
	Neighbors   int
	Pending     int
	Applied     uint64
	Coalesced   uint64
	Ignored     uint64
	Malformed   uint64
	Sent        uint64
	SendDropped uint64
}

// Client owns one sync connection and the state reconciled from it.
//
// The read goroutine and the drain loop mutate state only while holding mu,
// so there is a single logical writer. After Close nothing mutates again.
type Client struct {
	cfg    Config
	logger *slog.Logger
	trace  zerolog.Logger
	clock  Clock

	mu         sync.Mutex
	state      ConnState
	closed     bool
	rec        *Reconciler
	conn       *connection
	dispatch   *dispatcher.Dispatcher
	cancel     context.CancelFunc
	drainDone  chan struct{}
	onAssigned []func(core.PlayerCore) // pending callbacks for the frame being handled

	id *identity

	malformed   uint64
	sent        uint64
	sendDropped uint64

	gauges metric.Registration
}

// New builds a disconnected client.
func New(cfg Config, deps Deps) (*Client, error) {
	resolved, fellBack := ResolveURL(cfg.URL)
	def := DefaultConfig()
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = def.DrainInterval
	}
	if cfg.MaxUpdateHz <= 0 {
		cfg.MaxUpdateHz = def.MaxUpdateHz
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	switch {
	case cfg.DepartureHold == 0:
		cfg.DepartureHold = def.DepartureHold
	case cfg.DepartureHold < 0:
		cfg.DepartureHold = 0
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	if cfg.Reconnect && cfg.MaxReconnect <= 0 {
		cfg.MaxReconnect = def.MaxReconnect
	}

	c := &Client{
		cfg:    cfg,
		logger: deps.Logger,
		clock:  deps.Clock,
		rec:    NewReconciler(cfg.MaxUpdateHz, cfg.DepartureHold),
		id:     newIdentity(),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if deps.Trace != nil {
		c.trace = *deps.Trace
	} else {
		c.trace = zerolog.Nop()
	}
	if c.clock == nil {
		c.clock = RealClock{}
	}
	if fellBack {
		c.logger.Warn("sync endpoint unusable, using default", "configured", cfg.URL, "url", resolved)
	}
	c.cfg.URL = resolved

	d, err := dispatcher.New(logging.NewDispatcherLogger(c.trace))
	if err != nil {
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}
	d.Register(streaming.TypeAssigned, c.handleAssigned, dispatcher.Logged())
	d.Register(streaming.TypePlayerUpdate, c.handlePlayerUpdate)
	d.Register(streaming.TypePlayerLeft, c.handlePlayerLeft, dispatcher.Logged())
	d.Register(streaming.TypeError, c.handleError, dispatcher.Logged())
	c.dispatch = d

	if err := c.registerGauges(); err != nil {
		return nil, err
	}

	c.conn = newConnection(c.cfg, c.logger, c.handleFrame, c.setState)
	return c, nil
}

func (c *Client) registerGauges() error {
	m := otel.Meter(instrumentationName)
	pending, err := m.Int64ObservableGauge("sync.pending",
		metric.WithDescription("Players with a queued update"))
	if err != nil {
		return fmt.Errorf("creating pending gauge: %w", err)
	}
	neighbors, err := m.Int64ObservableGauge("sync.neighbors",
		metric.WithDescription("Known remote players"))
	if err != nil {
		return fmt.Errorf("creating neighbors gauge: %w", err)
	}
	c.gauges, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		o.ObserveInt64(pending, int64(c.rec.Pending()))
		o.ObserveInt64(neighbors, int64(c.rec.NeighborCount()))
		return nil
	}, pending, neighbors)
	if err != nil {
		return fmt.Errorf("registering sync gauges: %w", err)
	}
	return nil
}

// URL is the endpoint the client dials.
func (c *Client) URL() string {
	return c.cfg.URL
}

// Connect dials the server and starts the drain loop. It returns once the
// socket is open; the identity arrives later via Assigned.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = Connecting
	c.mu.Unlock()

	c.logger.Info("connecting to sync server", "url", c.cfg.URL)
	if err := c.conn.dial(ctx); err != nil {
		c.setState(Disconnected)
		return fmt.Errorf("connect %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.cancel == nil {
		loopCtx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.drainDone = make(chan struct{})
		go c.drainLoop(loopCtx, c.drainDone)
	}
	c.logger.Info("connected to sync server", "url", c.cfg.URL)
	return nil
}

func (c *Client) drainLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.cfg.DrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.drain()
		}
	}
}

// drain runs one reconciliation pass.
func (c *Client) drain() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}
	return c.rec.Drain(c.clock.Now())
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state == s {
		return
	}
	c.logger.Info("sync connection state changed", "from", c.state.String(), "to", s.String())
	c.state = s
}

// handleFrame is called on the read goroutine for every inbound frame.
// Malformed frames are logged and dropped; they never close the socket.
func (c *Client) handleFrame(raw []byte) {
	env, err := streaming.DecodeEnvelope(raw)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.malformed++
		c.mu.Unlock()
		c.logger.Warn("discarding malformed frame", "error", err, "bytes", len(raw))
		return
	}
	err = c.dispatch.Dispatch(dispatcher.Event{Type: env.Type, Envelope: env, ReceivedAt: c.clock.Now()})
	if err != nil {
		c.malformed++
	}
	callbacks := c.onAssigned
	c.onAssigned = nil
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("discarding frame", "type", env.Type, "error", err)
	}
	if len(callbacks) > 0 {
		self, _ := c.id.get()
		for _, fn := range callbacks {
			fn(self)
		}
	}
}

// Handlers below run with mu held.

func (c *Client) handleAssigned(e dispatcher.Event) error {
	patch, err := streaming.DecodePlayer(e.Envelope)
	if err != nil {
		return err
	}
	prev, _ := c.id.get()
	self := prev.Merge(patch)
	c.onAssigned = c.id.assign(self)
	c.rec.SetSelf(self.ID)
	c.logger.Info("sync identity assigned", "id", self.ID, "roomX", self.RoomX, "roomZ", self.RoomZ)
	return nil
}

func (c *Client) handlePlayerUpdate(e dispatcher.Event) error {
	patch, err := streaming.DecodePlayer(e.Envelope)
	if err != nil {
		return err
	}
	queued := c.rec.Enqueue(patch, e.ReceivedAt)
	c.trace.Debug().Str("player", patch.ID).Bool("queued", queued).Msg("player update")
	return nil
}

func (c *Client) handlePlayerLeft(e dispatcher.Event) error {
	if e.Envelope.ID == "" {
		return fmt.Errorf("%s without id", streaming.TypePlayerLeft)
	}
	known := c.rec.Depart(e.Envelope.ID, e.ReceivedAt)
	c.logger.Debug("player left", "id", e.Envelope.ID, "known", known)
	return nil
}

func (c *Client) handleError(e dispatcher.Event) error {
	msg := e.Envelope.Message
	if msg == "" {
		msg = "(no message)"
	}
	c.logger.Warn("sync server reported error", "message", msg)
	return nil
}

// SendUpdate publishes the local player. The id is filled in from the
// assigned identity when empty.
func (c *Client) SendUpdate(p core.UpdatePayload) error {
	c.mu.Lock()
	closed, state := c.closed, c.state
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if state != Connected {
		return ErrNotConnected
	}
	self, ok := c.id.get()
	if !ok {
		return ErrNotAssigned
	}
	if p.ID == "" {
		p.ID = self.ID
	}

	data, err := streaming.EncodeUpdate(p)
	if err != nil {
		return err
	}
	err = c.conn.send(data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.sendDropped++
		if errors.Is(err, ErrClosed) {
			return err
		}
		return fmt.Errorf("send update: %w", err)
	}
	c.sent++
	return nil
}

// Assigned is closed once the server has assigned the local identity.
func (c *Client) Assigned() <-chan struct{} {
	return c.id.ready
}

// OnAssigned runs fn once with the assigned identity. If the identity is
// already known fn runs immediately on the calling goroutine.
func (c *Client) OnAssigned(fn func(core.PlayerCore)) {
	if self, ok := c.id.onAssigned(fn); ok {
		fn(self)
	}
}

// Self returns the local player as last assigned.
func (c *Client) Self() (core.PlayerCore, bool) {
	return c.id.get()
}

// SelfID returns the assigned id, or "" before assignment.
func (c *Client) SelfID() string {
	return c.id.selfID()
}

// Neighbors returns a copy of the current neighbor view.
func (c *Client) Neighbors() map[string]core.PlayerCore {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.Neighbors()
}

// Neighbor returns one remote player.
func (c *Client) Neighbor(id string) (core.PlayerCore, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.Neighbor(id)
}

// State returns the connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		State:       c.state,
		Neighbors:   c.rec.NeighborCount(),
		Pending:     c.rec.Pending(),
		Applied:     c.rec.applied,
		Coalesced:   c.rec.coalesced,
		Ignored:     c.rec.ignored,
		Malformed:   c.malformed,
		Sent:        c.sent,
		SendDropped: c.sendDropped,
	}
}

// Close tears the client down. Neighbors, pending updates and timestamps are
// cleared and any frame or tick that arrives afterwards is ignored.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = Disconnected
	c.rec.Reset()
	cancel, drainDone := c.cancel, c.drainDone
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-drainDone
	}
	if c.gauges != nil {
		if err := c.gauges.Unregister(); err != nil {
			c.logger.Debug("unregister sync gauges", "error", err)
		}
	}
	return c.conn.close()
}
