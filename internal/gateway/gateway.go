// Package gateway serves the viewer websocket endpoint.
package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/hub"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Gateway upgrades viewer connections and pumps hub sessions over them.
// Each connection gets a fresh welcome and full snapshot; nothing survives a
// reconnect.
type Gateway struct {
	hub      *hub.Hub
	snapshot hub.SnapshotFunc
	cfg      config.SessionConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[string]*connection
}

type connection struct {
	id    string
	ws    *websocket.Conn
	state connState
}

func New(h *hub.Hub, snapshot hub.SnapshotFunc, cfg config.SessionConfig, allowedOrigins []string, logger *zap.Logger) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		hub:      h,
		snapshot: snapshot,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[string]*connection),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("Websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	c := &connection{ws: ws}

	sess, err := g.hub.Subscribe(g.snapshot)
	if err != nil {
		g.logger.Warn("Rejecting viewer", zap.String("remote", r.RemoteAddr), zap.Error(err))
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"),
			time.Now().Add(time.Second))
		_ = ws.Close()
		c.state.to(StateClosed)
		return
	}
	c.id = sess.ID
	c.state.to(StateOpen)

	g.mu.Lock()
	g.conns[c.id] = c
	g.mu.Unlock()

	if g.cfg.ReadLimit > 0 {
		ws.SetReadLimit(g.cfg.ReadLimit)
	}

	g.logger.Info("Viewer connected",
		zap.String("session_id", sess.ID),
		zap.String("remote", r.RemoteAddr),
	)

	g.wg.Add(3)
	go g.writeLoop(c, sess)
	go g.pingLoop(c, sess)
	go g.readLoop(c, sess)
}

// writeLoop is the connection's only data writer.
func (g *Gateway) writeLoop(c *connection, sess *hub.Session) {
	defer g.wg.Done()
	for {
		msg, err := sess.Next(g.ctx)
		if err != nil {
			g.closeConn(c, sess.Reason())
			return
		}
		if g.cfg.WriteTimeout > 0 {
			_ = c.ws.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			g.logger.Debug("Write to viewer failed", zap.String("session_id", c.id), zap.Error(err))
			g.hub.Unsubscribe(c.id, hub.ReasonError)
			g.closeConn(c, hub.ReasonError)
			return
		}
	}
}

func (g *Gateway) pingLoop(c *connection, sess *hub.Session) {
	defer g.wg.Done()
	if g.cfg.PingInterval <= 0 {
		<-sess.Done()
		return
	}
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(g.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				g.hub.Unsubscribe(c.id, hub.ReasonError)
				return
			}
		}
	}
}

// readLoop accepts operator commands until the peer goes away.
func (g *Gateway) readLoop(c *connection, sess *hub.Session) {
	defer g.wg.Done()
	defer g.hub.Unsubscribe(sess.ID, hub.ReasonNormal)

	pongWait := g.cfg.PongWait
	extend := func() {
		if pongWait > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		}
	}
	extend()
	c.ws.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Debug("Viewer read ended", zap.String("session_id", sess.ID), zap.Error(err))
			}
			return
		}
		extend()
		if msgType != websocket.TextMessage {
			continue
		}
		// Rejections are reported to the session by the hub.
		_ = g.hub.SubmitCommand(g.ctx, sess.ID, data)
	}
}

func closeCode(reason string) (int, string) {
	switch reason {
	case hub.ReasonShutdown:
		return websocket.CloseGoingAway, "server shutting down"
	case hub.ReasonOverflow:
		return websocket.ClosePolicyViolation, "viewer too slow"
	case hub.ReasonError:
		return websocket.CloseInternalServerErr, "connection error"
	}
	return websocket.CloseNormalClosure, ""
}

func (g *Gateway) closeConn(c *connection, reason string) {
	if c.state.to(StateClosing) {
		code, text := closeCode(reason)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, text),
			time.Now().Add(time.Second))
	}
	_ = c.ws.Close()
	if c.state.to(StateClosed) {
		g.mu.Lock()
		delete(g.conns, c.id)
		g.mu.Unlock()
		g.logger.Info("Viewer disconnected", zap.String("session_id", c.id), zap.String("reason", reason))
	}
}

// ConnectionStates counts live connections by state.
func (g *Gateway) ConnectionStates() map[State]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[State]int)
	for _, c := range g.conns {
		out[c.state.load()]++
	}
	return out
}

// Shutdown closes every session and waits for connection goroutines to exit.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.hub.Close()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.cancel()
		return nil
	case <-ctx.Done():
		g.cancel()
		g.mu.Lock()
		for _, c := range g.conns {
			_ = c.ws.Close()
		}
		g.mu.Unlock()
		return ctx.Err()
	}
}
