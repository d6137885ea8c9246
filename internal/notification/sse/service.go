// Package sse pushes live notification events to connected clients over
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"sync"

	"propertyhub_backend/platform/logger"
)

// Message is a single SSE payload.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Service fans out messages to per-user channels. A user may hold several
// connections (multiple tabs); each gets its own channel.
type Service struct {
	mu      sync.RWMutex
	clients map[int64]map[chan []byte]struct{}
	log     *logger.Logger
}

// New creates the SSE service.
func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[int64]map[chan []byte]struct{}),
		log:     log,
	}
}

// Subscribe registers a connection for a user and returns its channel plus
// an unsubscribe func the handler must call when the connection closes.
func (s *Service) Subscribe(userID int64) (<-chan []byte, func()) {
	ch := make(chan []byte, 16)

	s.mu.Lock()
	if s.clients[userID] == nil {
		s.clients[userID] = make(map[chan []byte]struct{})
	}
	s.clients[userID][ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.clients[userID], ch)
		if len(s.clients[userID]) == 0 {
			delete(s.clients, userID)
		}
		s.mu.Unlock()
		close(ch)
	}
}

// Send pushes a message to all of a user's connections. Slow consumers are
// skipped rather than blocked on; a missed live event is still in the
// in-app feed.
func (s *Service) Send(userID int64, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.NotifyError("sse", userID, err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.clients[userID] {
		select {
		case ch <- payload:
		default:
		}
	}
}

// ConnectedUsers returns how many users hold at least one connection.
func (s *Service) ConnectedUsers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
