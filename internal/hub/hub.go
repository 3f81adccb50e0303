// Package hub fans applied changes out to every connected viewer session and
// routes operator commands back into the service.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/events"
	"firewatch/internal/metrics"
	"firewatch/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrHubClosed      = errors.New("hub closed")
	ErrUnknownSession = errors.New("unknown session")
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidCommand = errors.New("invalid command")
)

// CommandHandler executes one operator command. raw is the full command document.
type CommandHandler func(ctx context.Context, sessionID string, raw json.RawMessage) error

// SnapshotFunc returns the messages that bring a new viewer up to date.
type SnapshotFunc func() []any

type Hub struct {
	cfg     config.SessionConfig
	version string
	logger  *zap.Logger
	metrics *metrics.Metrics

	// mu orders Publish against Subscribe: a session is registered only
	// after its snapshot is queued, under the write lock.
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	handlersMu sync.RWMutex
	handlers   map[string]CommandHandler
}

func New(cfg config.SessionConfig, version string, logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		cfg:      cfg,
		version:  version,
		logger:   logger,
		metrics:  m,
		sessions: make(map[string]*Session),
		handlers: make(map[string]CommandHandler),
	}
}

// RegisterCommand installs handler for command name.
func (h *Hub) RegisterCommand(name string, handler CommandHandler) {
	h.handlersMu.Lock()
	h.handlers[name] = handler
	h.handlersMu.Unlock()
}

func (h *Hub) commands() []string {
	h.handlersMu.RLock()
	defer h.handlersMu.RUnlock()
	names := make([]string, 0, len(h.handlers))
	for name := range h.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subscribe registers a new session whose queue starts with a welcome
// message followed by the snapshot.
func (h *Hub) Subscribe(snapshot SnapshotFunc) (*Session, error) {
	id := uuid.New().String()
	welcome := models.WelcomeMessage{
		Type:             models.MessageWelcome,
		SimulatorVersion: h.version,
		SessionID:        id,
		ServerTime:       time.Now().UTC(),
		Commands:         h.commands(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}

	msgs := []any{welcome}
	if snapshot != nil {
		msgs = append(msgs, snapshot()...)
	}
	encoded := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to encode snapshot message: %w", err)
		}
		encoded = append(encoded, raw)
	}

	s := newSession(id, h.cfg.QueueSize, h.cfg.OverflowPolicy != config.OverflowDisconnect, h.metrics.SessionMessageDropped)
	s.preload(encoded)
	h.sessions[id] = s
	h.metrics.SessionOpened()

	h.logger.Info("Session subscribed",
		zap.String("session_id", id),
		zap.Int("snapshot_messages", len(encoded)),
		zap.Int("sessions", len(h.sessions)),
	)
	return s, nil
}

// Unsubscribe closes and forgets a session.
func (h *Hub) Unsubscribe(sessionID, reason string) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	if ok {
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	s.close(reason)
	if r := s.Reason(); r != "" {
		reason = r
	}
	h.metrics.SessionClosed(reason)
	h.logger.Info("Session unsubscribed",
		zap.String("session_id", sessionID),
		zap.String("reason", reason),
		zap.Int("dropped", s.Dropped()),
	)
}

// Publish implements events.Publisher.
func (h *Hub) Publish(e events.Event) {
	msg := e.Message()
	if msg == nil {
		return
	}
	h.Broadcast(msg)
}

// Broadcast encodes msg once and queues it on every session without blocking.
func (h *Hub) Broadcast(msg any) {
	raw, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode broadcast message", zap.Error(err))
		return
	}

	var overflowed []string
	h.mu.RLock()
	for id, s := range h.sessions {
		if !s.enqueue(raw) && s.Reason() == ReasonOverflow {
			overflowed = append(overflowed, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range overflowed {
		h.logger.Warn("Session queue overflow, disconnecting", zap.String("session_id", id))
		h.Unsubscribe(id, ReasonOverflow)
	}
}

// Send queues msg for a single session.
func (h *Hub) Send(sessionID string, msg any) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return ErrUnknownSession
	}
	if !s.enqueue(raw) {
		return ErrSessionClosed
	}
	return nil
}

type commandEnvelope struct {
	Command string `json:"command"`
	AlertID string `json:"alert_id,omitempty"`
}

// SubmitCommand decodes and executes an operator command on behalf of
// sessionID. Failures are reported to that session only, as a command_error
// message, and returned.
func (h *Hub) SubmitCommand(ctx context.Context, sessionID string, raw []byte) error {
	var env commandEnvelope
	err := json.Unmarshal(raw, &env)
	switch {
	case err != nil:
		err = fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	case env.Command == "":
		err = fmt.Errorf("%w: missing command field", ErrInvalidCommand)
	default:
		h.handlersMu.RLock()
		handler, ok := h.handlers[env.Command]
		h.handlersMu.RUnlock()
		if !ok {
			err = fmt.Errorf("%w: %q", ErrUnknownCommand, env.Command)
		} else {
			err = handler(ctx, sessionID, json.RawMessage(raw))
		}
	}

	command := env.Command
	if command == "" {
		command = "invalid"
	}
	if err == nil {
		h.metrics.Command(command, "ok")
		return nil
	}

	h.metrics.Command(command, "error")
	h.logger.Warn("Command rejected",
		zap.String("session_id", sessionID),
		zap.String("command", env.Command),
		zap.Error(err),
	)
	if sendErr := h.Send(sessionID, models.CommandErrorMessage{
		Type:    models.MessageCommandError,
		Command: env.Command,
		AlertID: env.AlertID,
		Error:   err.Error(),
	}); sendErr != nil && !errors.Is(sendErr, ErrUnknownSession) {
		h.logger.Debug("Failed to report command error", zap.String("session_id", sessionID), zap.Error(sendErr))
	}
	return err
}

// SessionCount reports connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close refuses new sessions and closes every existing one.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.Unsubscribe(id, ReasonShutdown)
	}
	h.logger.Info("Hub closed", zap.Int("sessions_closed", len(ids)))
}
