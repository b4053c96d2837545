package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultHandshakeTimeout = 30 * time.Second
	defaultWriteTimeout     = 10 * time.Second
)

// Status is a connection lifecycle transition surfaced to the UI.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusReconnected  Status = "reconnected"
)

// ConnectionState is a copy of the transport's view of its connection.
type ConnectionState struct {
	ConnectionID  string
	Connected     bool
	Reconnection  bool
	Attempts      int
	LastMessageAt time.Time
	LastCloseCode int
}

// Handlers receive connection lifecycle events. OnMessage runs on the read
// goroutine, so frames are handled one at a time in delivery order; a non-nil
// error from it is fatal and ends Run.
type Handlers struct {
	OnOpen       func(ctx context.Context, state ConnectionState) error
	OnMessage    func(ctx context.Context, frame []byte) error
	OnDisconnect func(err error)
	OnStatus     func(status Status)
}

// Config configures a Client.
type Config struct {
	URL              string
	Header           http.Header
	Dialer           *websocket.Dialer
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Policy           ReconnectPolicy
	Logger           *zap.Logger
	IDProvider       func() (string, error)
	Clock            func() time.Time
}

// Client owns one reconnecting WebSocket connection.
type Client struct {
	url          string
	header       http.Header
	dialer       *websocket.Dialer
	writeTimeout time.Duration
	policy       ReconnectPolicy
	logger       *zap.Logger
	newID        func() (string, error)
	clock        func() time.Time
	handlers     Handlers

	stateMu    sync.RWMutex
	state      ConnectionState
	everOpened bool

	writeMu sync.Mutex
	conn    *websocket.Conn
}

// NewClient validates the configuration and returns an idle client.
func NewClient(cfg Config, handlers Handlers) (*Client, error) {
	target := strings.TrimSpace(cfg.URL)
	if target == "" {
		return nil, errors.New("transport: url is required")
	}
	if handlers.OnMessage == nil {
		return nil, errors.New("transport: message handler is required")
	}
	dialer := cfg.Dialer
	if dialer == nil {
		handshake := cfg.HandshakeTimeout
		if handshake <= 0 {
			handshake = defaultHandshakeTimeout
		}
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshake,
		}
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	policy := cfg.Policy
	if policy == nil {
		policy = DefaultReconnectPolicy(nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newID := cfg.IDProvider
	if newID == nil {
		newID = func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Client{
		url:          target,
		header:       cfg.Header.Clone(),
		dialer:       dialer,
		writeTimeout: writeTimeout,
		policy:       policy,
		logger:       logger,
		newID:        newID,
		clock:        clock,
		handlers:     handlers,
	}, nil
}

// Run connects and keeps reconnecting until ctx ends, the server closes with
// a fatal code, or the message handler fails. It returns nil when ctx ends.
func (c *Client) Run(ctx context.Context) error {
	for {
		closeCode, err := c.connectOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		var transportErr *TransportError
		if errors.As(err, &transportErr) && transportErr.Fatal() {
			c.disconnected(err)
			return err
		}
		c.disconnected(err)

		attempts := c.recordClose(closeCode)
		delay, retry := c.policy(closeCode, attempts)
		if !retry {
			fatalErr := newTransportError(operationClose, reasonFatalClose, closeCode, true, err)
			c.logger.Error("websocket closed without reconnect",
				zap.String("operation", operationClose),
				zap.String("reason", reasonFatalClose),
				zap.Int("close_code", closeCode),
				zap.Error(err),
			)
			return fatalErr
		}
		c.logger.Info("websocket reconnect scheduled",
			zap.Int("attempt", attempts+1),
			zap.Duration("delay", delay),
			zap.Int("close_code", closeCode),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Send writes v as a JSON text frame.
func (c *Client) Send(ctx context.Context, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return newTransportError(operationSend, reasonEncode, 0, false, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return newTransportError(operationSend, reasonNotConnected, 0, false, ErrNotConnected)
	}
	deadline := c.clock().Add(c.writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return newTransportError(operationSend, reasonWrite, 0, false, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return newTransportError(operationSend, reasonWrite, 0, false, err)
	}
	return nil
}

// State returns a copy of the current connection state.
func (c *Client) State() ConnectionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Client) connectOnce(ctx context.Context) (int, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		c.logger.Warn("websocket dial failed",
			zap.String("operation", operationDial),
			zap.String("url", c.url),
			zap.Error(err),
		)
		return websocket.CloseAbnormalClosure, newTransportError(operationDial, reasonDialFailed, websocket.CloseAbnormalClosure, false, err)
	}

	connectionID, err := c.newID()
	if err != nil {
		c.logger.Warn("connection id unavailable", zap.Error(err))
	}
	state := c.markOpened(connectionID)
	c.setConn(conn)
	defer c.setConn(nil)

	stop := context.AfterFunc(ctx, func() {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			c.clock().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	})
	defer stop()
	defer conn.Close()

	c.logger.Info("websocket connected",
		zap.String("connection_id", connectionID),
		zap.Bool("reconnection", state.Reconnection),
	)
	if state.Reconnection {
		c.status(StatusReconnected)
	} else {
		c.status(StatusConnected)
	}
	if c.handlers.OnOpen != nil {
		if err := c.handlers.OnOpen(ctx, state); err != nil {
			c.logger.Warn("websocket open handler failed", zap.String("connection_id", connectionID), zap.Error(err))
			return websocket.CloseAbnormalClosure, newTransportError(operationSend, reasonHandler, websocket.CloseAbnormalClosure, false, err)
		}
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			closeCode := websocket.CloseAbnormalClosure
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				closeCode = closeErr.Code
			}
			return closeCode, newTransportError(operationRead, reasonClosed, closeCode, false, err)
		}
		c.touch()
		if err := c.handlers.OnMessage(ctx, frame); err != nil {
			c.logger.Error("websocket message handler failed",
				zap.String("operation", operationRead),
				zap.String("reason", reasonHandler),
				zap.String("connection_id", connectionID),
				zap.Error(err),
			)
			return websocket.CloseNormalClosure, newTransportError(operationRead, reasonHandler, websocket.CloseNormalClosure, true, err)
		}
	}
}

func (c *Client) markOpened(connectionID string) ConnectionState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state.ConnectionID = connectionID
	c.state.Connected = true
	c.state.Reconnection = c.everOpened
	c.state.Attempts = 0
	c.everOpened = true
	return c.state
}

// recordClose marks the connection closed and returns the attempt count the
// reconnect policy should see, incrementing it for the next cycle.
func (c *Client) recordClose(closeCode int) int {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	attempts := c.state.Attempts
	c.state.Connected = false
	c.state.LastCloseCode = closeCode
	c.state.Attempts++
	return attempts
}

func (c *Client) touch() {
	c.stateMu.Lock()
	c.state.LastMessageAt = c.clock()
	c.stateMu.Unlock()
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()
}

func (c *Client) disconnected(err error) {
	c.stateMu.Lock()
	c.state.Connected = false
	c.stateMu.Unlock()
	if c.handlers.OnDisconnect != nil {
		c.handlers.OnDisconnect(err)
	}
	c.status(StatusDisconnected)
}

func (c *Client) status(status Status) {
	if c.handlers.OnStatus != nil {
		c.handlers.OnStatus(status)
	}
}
