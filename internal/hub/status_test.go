package hub_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcomm/comm-server/internal/hub"
)

func TestStatusHub_UnauthenticatedConnectionLabeledGuest(t *testing.T) {
	s := hub.NewStatusHub()
	conn := &fakeConn{}

	id := s.Connect(conn, "")
	require.Len(t, conn.sent, 1)
	assert.Equal(t, "connected", conn.sent[0].Type)

	members := s.RoomMembers("global")
	assert.Equal(t, "Guest", members[id])
}

func TestStatusHub_AuthenticatedConnectionKeepsPrincipal(t *testing.T) {
	s := hub.NewStatusHub()
	conn := &fakeConn{}

	id := s.Connect(conn, "agent-42")
	assert.Equal(t, "agent-42", s.RoomMembers("global")[id])
}

func TestStatusHub_BroadcastReachesAllSubscribers(t *testing.T) {
	s := hub.NewStatusHub()
	a, b := &fakeConn{}, &fakeConn{}
	s.Connect(a, "agent-A")
	s.Connect(b, "")

	s.Broadcast("agent_status_change", map[string]any{"agent_id": "agent-A", "status": "busy"})

	assert.Equal(t, "agent_status_change", a.sent[len(a.sent)-1].Type)
	assert.Equal(t, "agent_status_change", b.sent[len(b.sent)-1].Type)
}
