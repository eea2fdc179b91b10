package realtime

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ErrConnectionNotFound is returned when joining with an unregistered connection
var ErrConnectionNotFound = errors.New("connection not found")

// Conn is a live client connection the hub can push events to
type Conn interface {
	ID() string
	// Send enqueues without blocking and reports whether the event was accepted
	Send(event domain.Event) bool
}

// Publisher carries room events to every server process
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
	// Active reports whether published events are delivered back to this process
	Active() bool
}

// Hub tracks live connections and the rooms they have joined
type Hub struct {
	mu        sync.RWMutex
	conns     map[string]Conn
	rooms     map[string]map[string]struct{}
	joined    map[string]map[string]struct{}
	publisher Publisher
}

// NewHub creates a hub. A nil publisher delivers broadcasts locally only.
func NewHub(publisher Publisher) *Hub {
	return &Hub{
		conns:     make(map[string]Conn),
		rooms:     make(map[string]map[string]struct{}),
		joined:    make(map[string]map[string]struct{}),
		publisher: publisher,
	}
}

// Register makes a connection addressable by its id
func (h *Hub) Register(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[conn.ID()]; !ok {
		metrics.ConnectionsActive.Inc()
	}
	h.conns[conn.ID()] = conn
}

// JoinRoom adds the connection to the session's room. Joining twice is a no-op.
func (h *Hub) JoinRoom(connID, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return ErrConnectionNotFound
	}

	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[string]struct{})
		h.rooms[sessionID] = room
	}
	room[connID] = struct{}{}

	sessions, ok := h.joined[connID]
	if !ok {
		sessions = make(map[string]struct{})
		h.joined[connID] = sessions
	}
	sessions[sessionID] = struct{}{}

	return nil
}

// Broadcast sends event to every member of event.SessionID's room.
// It never persists anything.
func (h *Hub) Broadcast(ctx context.Context, event domain.Event) error {
	if h.publisher == nil {
		h.Deliver(event)
		return nil
	}

	if !h.publisher.Active() {
		log.Warn().Str("session_id", event.SessionID).Msg("Relay inactive, delivering locally")
		metrics.RelayFallbacks.Inc()
		h.Deliver(event)
		return nil
	}

	if err := h.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("session_id", event.SessionID).Msg("Relay publish failed, delivering locally")
		metrics.RelayFallbacks.Inc()
		h.Deliver(event)
		return err
	}
	return nil
}

// Deliver enqueues event on each local member of its room and returns how many accepted it
func (h *Hub) Deliver(event domain.Event) int {
	h.mu.RLock()
	room := h.rooms[event.SessionID]
	targets := make([]Conn, 0, len(room))
	for connID := range room {
		if conn, ok := h.conns[connID]; ok {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if conn.Send(event) {
			delivered++
			continue
		}
		metrics.EventsDropped.Inc()
		log.Debug().Str("connection_id", conn.ID()).Str("session_id", event.SessionID).Msg("Send queue full, event dropped")
	}
	metrics.EventsDelivered.Add(float64(delivered))
	return delivered
}

// OnDisconnect forgets the connection and removes it from every room
func (h *Hub) OnDisconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}
	delete(h.conns, connID)
	metrics.ConnectionsActive.Dec()

	for sessionID := range h.joined[connID] {
		room := h.rooms[sessionID]
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
	}
	delete(h.joined, connID)
}

// Members lists the connection ids joined to a session's room, sorted
func (h *Hub) Members(sessionID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]string, 0, len(h.rooms[sessionID]))
	for connID := range h.rooms[sessionID] {
		members = append(members, connID)
	}
	sort.Strings(members)
	return members
}
