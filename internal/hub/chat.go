package hub

import "sync"

// ChatHub fans chat messages out to a room and additionally tracks
// per-room typing indicators, which the generic Hub has no concept of.
type ChatHub struct {
	*Hub

	mu     sync.Mutex
	typing map[string]map[string]bool // room_id -> set of agent_ids currently typing
}

// NewChatHub builds a hub for the /ws/chat/{room_uuid} room.
func NewChatHub() *ChatHub {
	c := &ChatHub{typing: make(map[string]map[string]bool)}
	c.Hub = New(c.purgeRoom)
	return c
}

func (c *ChatHub) purgeRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.typing, roomID)
}

// Connect registers conn in roomID and announces the join to everyone in
// the room, the joiner included.
func (c *ChatHub) Connect(conn Connection, roomID, principal string) string {
	id := c.Hub.Connect(conn, roomID, principal)
	c.Hub.Broadcast(roomID, Event{Type: "participant_joined", Payload: map[string]any{"principal": principal}})
	return id
}

// Message broadcasts a chat message to roomID and clears the sender's
// typing indicator, matching what a real client expects after it sends.
func (c *ChatHub) Message(roomID, principal, body string) {
	c.SetTyping(roomID, principal, false)
	c.Hub.Broadcast(roomID, Event{Type: "message", Payload: map[string]any{
		"principal": principal,
		"body":      body,
	}})
}

// SetTyping records whether principal is currently typing in roomID and
// broadcasts the change. Repeated identical calls are not deduplicated —
// the spec treats typing_start as idempotent.
func (c *ChatHub) SetTyping(roomID, principal string, typing bool) {
	c.mu.Lock()
	set, ok := c.typing[roomID]
	if !ok {
		set = make(map[string]bool)
		c.typing[roomID] = set
	}
	if typing {
		set[principal] = true
	} else {
		delete(set, principal)
	}
	c.mu.Unlock()

	kind := "typing_stop"
	if typing {
		kind = "typing_start"
	}
	c.Hub.Broadcast(roomID, Event{Type: kind, Payload: map[string]any{"principal": principal}})
}

// TypingIn returns the set of principals currently marked typing in roomID.
func (c *ChatHub) TypingIn(roomID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := c.typing[roomID]
	out := make([]string, 0, len(set))
	for principal := range set {
		out = append(out, principal)
	}
	return out
}
