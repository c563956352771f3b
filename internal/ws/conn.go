// Package ws provides a single-session websocket connection for market
// data feeds.
//
// A Conn deliberately does not reconnect: it delivers the messages of
// one transport session in arrival order and reports the session's end
// on its error channel. Reconnect policy belongs to the caller, which
// owns the full connect/snapshot/resubscribe cycle.
package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/lxzan/gws"
	"github.com/rs/zerolog"
)

// Config holds configuration options for a websocket connection.
type Config struct {
	// URL is the websocket server endpoint to connect to.
	URL string
	// PingInterval is the expected cadence of server keepalive pings.
	PingInterval time.Duration
	// PongWait is the grace period beyond PingInterval before the
	// connection is considered dead.
	PongWait time.Duration
	// BufferSize is the capacity of the inbound message channel.
	BufferSize int
}

// Conn manages one websocket session and delivers its messages in order.
type Conn struct {
	config  Config
	state   *State
	handler *eventHandler
	logger  zerolog.Logger

	mu   sync.RWMutex
	conn *gws.Conn

	msgCh       chan []byte
	errCh       chan error
	connectedCh chan struct{}
	closeCh     chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

type eventHandler struct {
	conn *Conn
}

// NewConn creates a websocket connection with the given configuration.
// Default values are applied for any zero-valued fields.
func NewConn(config Config) *Conn {
	if config.PingInterval == 0 {
		config.PingInterval = 10 * time.Second
	}
	if config.PongWait == 0 {
		config.PongWait = 20 * time.Second
	}
	if config.BufferSize == 0 {
		config.BufferSize = 1024
	}

	c := &Conn{
		config:      config,
		state:       &State{},
		msgCh:       make(chan []byte, config.BufferSize),
		errCh:       make(chan error, 1),
		connectedCh: make(chan struct{}),
		closeCh:     make(chan struct{}),
		logger:      zerolog.Nop(),
	}
	c.state.Store(StateDisconnected)
	c.handler = &eventHandler{conn: c}
	return c
}

// SetLogger configures the logger for the connection.
func (c *Conn) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// Connect establishes the websocket session. It returns once the
// connection is open, the context is done, or the conn is closed.
func (c *Conn) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(StateDisconnected, StateConnecting) {
		current := c.state.Load()
		if current == StateConnected {
			return nil
		}
		return fmt.Errorf("invalid state for connect: %s", current)
	}

	socket, _, err := gws.NewClient(c.handler, &gws.ClientOption{
		Addr: c.config.URL,
	})
	if err != nil {
		c.state.Store(StateDisconnected)
		return fmt.Errorf("connect websocket: %w", err)
	}

	c.mu.Lock()
	c.conn = socket
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		socket.ReadLoop()
	}()

	select {
	case <-c.connectedCh:
		return nil
	case <-ctx.Done():
		_ = socket.NetConn().Close()
		c.state.Store(StateDisconnected)
		return ctx.Err()
	case <-c.closeCh:
		_ = socket.NetConn().Close()
		c.state.Store(StateClosed)
		return fmt.Errorf("connection closed")
	}
}

// Close tears down the session and releases all resources. It is safe
// to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(StateClosed)
		close(c.closeCh)

		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.NetConn().Close()
		}
		c.mu.Unlock()

		c.wg.Wait()
	})
	return nil
}

// State returns the current connection state.
func (c *Conn) State() ConnState {
	return c.state.Load()
}

// IsConnected returns true if the session is active.
func (c *Conn) IsConnected() bool {
	return c.state.Load() == StateConnected
}

// Messages returns the inbound message channel. Messages appear in the
// exact order the transport delivered them.
func (c *Conn) Messages() <-chan []byte {
	return c.msgCh
}

// Errs returns a channel that yields the error which ended the session.
func (c *Conn) Errs() <-chan error {
	return c.errCh
}

// WriteMessage sends raw bytes as a text frame.
// It returns an error if the session is not active.
func (c *Conn) WriteMessage(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil || c.state.Load() != StateConnected {
		return fmt.Errorf("websocket not connected")
	}

	return c.conn.WriteMessage(gws.OpcodeText, data)
}

// SendJSON marshals the given value and sends it as a text frame.
func (c *Conn) SendJSON(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return c.WriteMessage(data)
}

func (c *Conn) deadline() time.Time {
	return time.Now().Add(c.config.PingInterval + c.config.PongWait)
}

func (h *eventHandler) OnOpen(socket *gws.Conn) {
	h.conn.state.Store(StateConnected)

	select {
	case <-h.conn.connectedCh:
	default:
		close(h.conn.connectedCh)
	}

	h.conn.logger.Info().Str("url", h.conn.config.URL).Msg("websocket connected")
	_ = socket.SetDeadline(h.conn.deadline())
}

func (h *eventHandler) OnClose(socket *gws.Conn, err error) {
	if !h.conn.state.CompareAndSwap(StateConnected, StateDisconnected) {
		h.conn.state.CompareAndSwap(StateConnecting, StateDisconnected)
	}

	h.conn.logger.Warn().Err(err).Str("url", h.conn.config.URL).Msg("websocket disconnected")

	select {
	case h.conn.errCh <- err:
	default:
	}
}

func (h *eventHandler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(h.conn.deadline())
	_ = socket.WritePong(nil)
}

func (h *eventHandler) OnPong(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(h.conn.deadline())
}

func (h *eventHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	data := message.Bytes()
	if len(data) == 0 {
		return
	}

	// Copy: gws reuses the message buffer after Close.
	buf := make([]byte, len(data))
	copy(buf, data)

	// Block rather than drop. A skipped frame would surface later as a
	// sequence gap and force a full resync.
	select {
	case <-h.conn.closeCh:
	case h.conn.msgCh <- buf:
	}
}
