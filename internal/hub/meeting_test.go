package hub_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcomm/comm-server/internal/corerr"
	"github.com/agentcomm/comm-server/internal/discussion"
	"github.com/agentcomm/comm-server/internal/hub"
)

func TestMeetingHub_SatisfiesDiscussionInterfaces(t *testing.T) {
	m := hub.NewMeetingHub()

	var _ discussion.Broadcaster = m
	var _ discussion.ResponseWaiter = m

	conn := &fakeConn{}
	m.Connect(conn, "meeting-1", "agent-A")
	m.Broadcast("meeting-1", "join", map[string]any{"who": "agent-A"})
	require.Len(t, conn.sent, 1)
	assert.Equal(t, "join", conn.sent[0].Type)
}

func TestMeetingHub_ResolveUnblocksWaitForOpinion(t *testing.T) {
	m := hub.NewMeetingHub()

	result := make(chan string, 1)
	go func() {
		v, err := m.WaitForOpinion(context.Background(), "meeting-1", "agent-A")
		require.NoError(t, err)
		result <- v
	}()

	require.Eventually(t, func() bool {
		return m.Resolve("meeting-1", "agent-A", "opinion", "I think yes") == nil
	}, time.Second, time.Millisecond)

	select {
	case v := <-result:
		assert.Equal(t, "I think yes", v)
	case <-time.After(time.Second):
		t.Fatal("WaitForOpinion never unblocked")
	}
}

func TestMeetingHub_ResolveWithNoPendingRequestFails(t *testing.T) {
	m := hub.NewMeetingHub()
	err := m.Resolve("meeting-1", "agent-A", "opinion", "too late")
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.InvalidInput))
}

func TestMeetingHub_WaitForOpinionTimesOutOnCtxDone(t *testing.T) {
	m := hub.NewMeetingHub()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.WaitForOpinion(ctx, "meeting-1", "agent-A")
	require.Error(t, err)
}
