// Package hub implements the Real-time Hubs (spec §4.7): in-process
// room registries for Meeting, Chat, and Status WebSocket fan-out.
// Grounded on the teacher's internal/websocket.Hub registration/broadcast
// loop, generalized from one room per session to many named rooms per hub
// and from a message-handler dispatch table to a plain event broadcast.
package hub

import (
	"sync"

	"github.com/google/uuid"

	"github.com/agentcomm/comm-server/internal/logger"
)

// Event is one WebSocket text frame: a JSON object with a "type"
// discriminator and a payload, per spec §6's wire protocol.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Connection abstracts a single WebSocket connection so Hub does not depend
// on gorilla/websocket directly; the api/websocket adapter supplies the
// concrete implementation.
type Connection interface {
	Send(Event) error
	Close() error
}

type subscriber struct {
	id        string
	conn      Connection
	roomID    string
	principal string
}

// Hub is a generic room-based registry: room_id -> set of subscribers,
// subscriber -> room_id, subscriber -> authenticated principal.
type Hub struct {
	mu   sync.RWMutex
	rooms map[string]map[string]*subscriber
	subs  map[string]*subscriber
	onEmpty func(roomID string)
}

// New builds an empty Hub. onRoomEmpty, if non-nil, fires whenever a room's
// last subscriber disconnects — used by callers that keep per-room
// auxiliary state (chat typing indicators) to purge it at the same time.
func New(onRoomEmpty func(roomID string)) *Hub {
	return &Hub{
		rooms:   make(map[string]map[string]*subscriber),
		subs:    make(map[string]*subscriber),
		onEmpty: onRoomEmpty,
	}
}

// Connect registers conn under roomID for principal, returning a
// subscriber ID to use with Disconnect/SendPersonal.
func (h *Hub) Connect(conn Connection, roomID, principal string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.NewString()
	sub := &subscriber{id: id, conn: conn, roomID: roomID, principal: principal}

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*subscriber)
	}
	h.rooms[roomID][id] = sub
	h.subs[id] = sub

	logger.Info("hub connection registered", "room_id", roomID, "subscriber_id", id, "principal", principal)
	return id
}

// Disconnect removes a subscriber from every index. It is safe to call more
// than once for the same ID.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, id)

	roomEmpty := false
	if room, ok := h.rooms[sub.roomID]; ok {
		delete(room, id)
		if len(room) == 0 {
			delete(h.rooms, sub.roomID)
			roomEmpty = true
		}
	}
	h.mu.Unlock()

	sub.conn.Close() //nolint:errcheck // best-effort close on an already-dropped connection

	if roomEmpty && h.onEmpty != nil {
		h.onEmpty(sub.roomID)
	}
}

// Broadcast sends event to every subscriber currently in roomID. A
// subscriber whose send fails is disconnected synchronously before
// Broadcast returns (fail-fast dead-peer eviction) — every subscriber
// present when the call started either receives the event or is evicted.
func (h *Hub) Broadcast(roomID string, event Event) {
	h.mu.RLock()
	room := h.rooms[roomID]
	targets := make([]*subscriber, 0, len(room))
	for _, sub := range room {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.conn.Send(event); err != nil {
			logger.Warn("hub send failed, evicting subscriber", "room_id", roomID, "subscriber_id", sub.id, "error", err)
			h.Disconnect(sub.id)
		}
	}
}

// SendPersonal sends event to exactly one subscriber.
func (h *Hub) SendPersonal(id string, event Event) error {
	h.mu.RLock()
	sub, ok := h.subs[id]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	if err := sub.conn.Send(event); err != nil {
		h.Disconnect(id)
		return err
	}
	return nil
}

// RoomMembers returns the (subscriberID, principal) pairs currently in
// roomID.
func (h *Hub) RoomMembers(roomID string) map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]string)
	for id, sub := range h.rooms[roomID] {
		out[id] = sub.principal
	}
	return out
}

// RoomCount reports how many rooms currently have at least one subscriber.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
