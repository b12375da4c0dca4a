package hub

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentcomm/comm-server/internal/corerr"
)

// pendingKey identifies one outstanding opinion/vote request.
type pendingKey struct {
	meetingID, agentID, kind string
}

// MeetingHub fans discussion events out to a meeting's WebSocket room and
// resolves the Sequential Discussion Coordinator's per-agent waits as
// opinion/consensus_vote frames arrive from clients. It satisfies both
// discussion.Broadcaster and discussion.ResponseWaiter without the
// discussion package importing hub.
type MeetingHub struct {
	*Hub

	mu      sync.Mutex
	pending map[pendingKey]chan string
}

// NewMeetingHub builds a hub for the /ws/meetings/{meeting_uuid} room.
func NewMeetingHub() *MeetingHub {
	return &MeetingHub{
		Hub:     New(nil),
		pending: make(map[pendingKey]chan string),
	}
}

// Broadcast implements discussion.Broadcaster by forwarding to the
// meeting's WebSocket room.
func (m *MeetingHub) Broadcast(roomID string, kind string, payload any) {
	m.Hub.Broadcast(roomID, Event{Type: kind, Payload: payload})
}

// WaitForOpinion blocks until an "opinion" frame arrives from agentID for
// meetingID, or ctx is done.
func (m *MeetingHub) WaitForOpinion(ctx context.Context, meetingID, agentID string) (string, error) {
	return m.await(ctx, meetingID, agentID, "opinion")
}

// WaitForVote blocks until a "consensus_vote" frame arrives from agentID
// for meetingID, or ctx is done.
func (m *MeetingHub) WaitForVote(ctx context.Context, meetingID, agentID string) (string, error) {
	return m.await(ctx, meetingID, agentID, "consensus_vote")
}

func (m *MeetingHub) await(ctx context.Context, meetingID, agentID, kind string) (string, error) {
	key := pendingKey{meetingID, agentID, kind}
	ch := make(chan string, 1)

	m.mu.Lock()
	m.pending[key] = ch
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pending, key)
		m.mu.Unlock()
	}()

	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Resolve delivers a value (an opinion or a vote) received from a connected
// client's WebSocket frame to whichever WaitForOpinion/WaitForVote call is
// pending for it. Returns InvalidInput if nothing is currently waiting —
// the caller arrived with no matching RequestOpinions/FacilitateConsensus
// round in flight.
func (m *MeetingHub) Resolve(meetingID, agentID, kind, value string) error {
	key := pendingKey{meetingID, agentID, kind}

	m.mu.Lock()
	ch, ok := m.pending[key]
	m.mu.Unlock()

	if !ok {
		return corerr.New(corerr.InvalidInput, "hub.MeetingHub.Resolve",
			fmt.Sprintf("no pending %s request for agent %s in meeting %s", kind, agentID, meetingID))
	}

	select {
	case ch <- value:
	default:
	}
	return nil
}
