// Package viewer is a reconnecting websocket client for the firewatch viewer
// stream. Every successful connection starts with a fresh welcome and snapshot.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"firewatch/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("viewer: not connected")

// State is the client's connection lifecycle stage.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// transitions a client may take. Closed leads back to Connecting on retry.
var transitions = map[State][]State{
	StateConnecting: {StateOpen, StateClosed},
	StateOpen:       {StateClosing, StateClosed},
	StateClosing:    {StateClosed},
	StateClosed:     {StateConnecting},
}

// Options configures a Client. Zero backoff values use 1s and 30s.
type Options struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration

	// OnState observes every state change. It runs on the client's goroutines
	// and must not block.
	OnState func(State)
}

// Handler receives every message; msgType is the message's "type" field.
type Handler func(msgType string, raw []byte)

type Client struct {
	opts    Options
	handler Handler
	logger  *zap.Logger
	dialer  *websocket.Dialer

	mu    sync.Mutex
	state State
	conn  *websocket.Conn

	writeMu sync.Mutex
	delay   time.Duration
}

func NewClient(opts Options, handler Handler, logger *zap.Logger) *Client {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	return &Client{
		opts:    opts,
		handler: handler,
		logger:  logger,
		dialer:  &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout},
		state:   StateClosed,
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) transition(next State) bool {
	c.mu.Lock()
	legal := false
	for _, s := range transitions[c.state] {
		if s == next {
			legal = true
			break
		}
	}
	if legal {
		c.state = next
	}
	c.mu.Unlock()

	if legal && c.opts.OnState != nil {
		c.opts.OnState(next)
	}
	return legal
}

// nextDelay returns the wait before the next attempt: the initial backoff,
// then doubling up to MaxBackoff.
func (c *Client) nextDelay() time.Duration {
	if c.delay == 0 {
		c.delay = c.opts.InitialBackoff
		return c.delay
	}
	c.delay *= 2
	if c.delay > c.opts.MaxBackoff {
		c.delay = c.opts.MaxBackoff
	}
	return c.delay
}

// Run connects and reconnects until ctx ends.
func (c *Client) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		c.transition(StateConnecting)

		conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
		if err != nil {
			c.transition(StateClosed)
			if ctx.Err() != nil {
				return nil
			}
			wait := c.nextDelay()
			c.logger.Warn("Viewer connect failed, retrying",
				zap.String("url", c.opts.URL),
				zap.Duration("backoff", wait),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}

		c.delay = 0
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.transition(StateOpen)
		c.logger.Info("Viewer connected", zap.String("url", c.opts.URL))

		c.serve(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.transition(StateClosed)
	}
}

// serve reads until the connection drops or ctx ends.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.transition(StateClosing)
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Info("Viewer connection lost", zap.Error(err))
			}
			_ = conn.Close()
			return
		}
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Debug("Ignoring non-JSON frame", zap.Error(err))
			continue
		}
		if c.handler != nil {
			c.handler(env.Type, data)
		}
	}
}

// Acknowledge sends an acknowledge_alert command on the live connection.
func (c *Client) Acknowledge(alertID, by string) error {
	return c.send(models.AcknowledgeAlertCommand{
		Command:        models.CommandAcknowledgeAlert,
		AlertID:        alertID,
		AcknowledgedBy: by,
	})
}

func (c *Client) send(v any) error {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()
	if conn == nil || !open {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("viewer: send: %w", err)
	}
	return nil
}
