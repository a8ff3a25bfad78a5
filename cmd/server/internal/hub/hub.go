// Package hub fans bars out to every connected viewer session.
package hub

import (
	"sync"

	"go.uber.org/zap"
)

// Session is one connected viewer. Send must not block: it reports false
// when the session could not take the message (buffer full or closed).
type Session interface {
	ID() string
	Send(b []byte) bool
	Close()
}

var greeting = []byte(`{"message":"Hello from server"}`)

// Hub is the registry of open viewer sessions. Delivery is best effort:
// a session that cannot take a bar is skipped for that delivery and only
// removed when its own close notification arrives via Unregister.
type Hub struct {
	mu       sync.RWMutex
	sessions map[Session]bool
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[Session]bool),
		logger:   logger,
	}
}

// Register adds a session and sends it the greeting message. A viewer
// never receives bars broadcast before it registered.
func (h *Hub) Register(s Session) {
	h.mu.Lock()
	h.sessions[s] = true
	h.mu.Unlock()

	s.Send(greeting)
	h.logger.Info("viewer connected", zap.String("session", s.ID()))
}

// Unregister removes a session and closes it.
func (h *Hub) Unregister(s Session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	if ok {
		delete(h.sessions, s)
	}
	h.mu.Unlock()

	if ok {
		s.Close()
		h.logger.Info("viewer disconnected", zap.String("session", s.ID()))
	}
}

// Broadcast delivers one bar to every open session. Per-session order
// follows broadcast order; a failed send on one session never affects the
// others.
func (h *Hub) Broadcast(bar []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.sessions {
		if !s.Send(bar) {
			h.logger.Debug("viewer not accepting messages, skipping delivery",
				zap.String("session", s.ID()))
		}
	}
}

// Len returns the number of registered sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
