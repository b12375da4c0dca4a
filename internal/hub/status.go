package hub

// globalRoom is the Status Hub's single room: every client shares it.
const globalRoom = "global"

// StatusHub is a single global room broadcasting platform-wide events
// (agent_status_change, new_communication, meeting_event,
// agent_registered, agent_unregistered). Unlike Meeting and Chat, it
// accepts unauthenticated connections, labeling them "Guest".
type StatusHub struct {
	*Hub
}

// NewStatusHub builds the process-wide status hub.
func NewStatusHub() *StatusHub {
	return &StatusHub{Hub: New(nil)}
}

// Connect registers conn in the global room. principal is the
// authenticated user/agent ID, or "" if the connection is unauthenticated
// — which is allowed for this hub and recorded as "Guest".
func (s *StatusHub) Connect(conn Connection, principal string) string {
	if principal == "" {
		principal = "Guest"
	}
	id := s.Hub.Connect(conn, globalRoom, principal)
	s.Hub.SendPersonal(id, Event{Type: "connected"}) //nolint:errcheck // best-effort greeting
	return id
}

// Broadcast sends event to every status subscriber.
func (s *StatusHub) Broadcast(kind string, payload any) {
	s.Hub.Broadcast(globalRoom, Event{Type: kind, Payload: payload})
}

// SendPong replies to a client's ping keepalive frame.
func (s *StatusHub) SendPong(subscriberID string) error {
	return s.Hub.SendPersonal(subscriberID, Event{Type: "pong"})
}
