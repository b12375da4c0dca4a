package router_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcomm/comm-server/internal/corerr"
	"github.com/agentcomm/comm-server/internal/model"
	"github.com/agentcomm/comm-server/internal/router"
	"github.com/agentcomm/comm-server/internal/session"
	"github.com/agentcomm/comm-server/internal/storage"
)

func caps(protocolVersions map[string][]string, features ...string) model.Capabilities {
	return model.Capabilities{Protocols: protocolVersions, Features: features}
}

func TestRouter_PointToPointHappyPath(t *testing.T) {
	backend := storage.NewMemoryBackend()
	sessions := session.NewManager(backend, 10)
	r := router.New(sessions, nil)
	ctx := context.Background()

	a, err := sessions.RegisterSession(ctx, "p1", "A", caps(map[string][]string{"chat_message": {"1.0.0"}}, "point_to_point"), 0)
	require.NoError(t, err)
	b, err := sessions.RegisterSession(ctx, "p1", "B", caps(map[string][]string{"chat_message": {"1.0.0"}}, "point_to_point"), 0)
	require.NoError(t, err)

	dr, err := r.SendMessage(ctx, "p1", a.ID, "p1", b.ID, &model.Message{Protocol: "chat_message", Version: "1.0.0", Payload: []byte(`{"text":"hi"}`)})
	require.NoError(t, err)
	assert.True(t, dr.Success)
	assert.False(t, dr.Queued)
	assert.NotNil(t, dr.DeliveredAt)

	msgs, err := sessions.Dequeue(ctx, "p1", b.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte(`{"text":"hi"}`), msgs[0].Payload)
}

func TestRouter_OfflineQueueing(t *testing.T) {
	backend := storage.NewMemoryBackend()
	sessions := session.NewManager(backend, 10)
	r := router.New(sessions, nil)
	ctx := context.Background()

	a, err := sessions.RegisterSession(ctx, "p1", "A", caps(map[string][]string{"chat_message": {"1.0.0"}}), 0)
	require.NoError(t, err)
	b, err := sessions.RegisterSession(ctx, "p1", "B", caps(map[string][]string{"chat_message": {"1.0.0"}}), 0)
	require.NoError(t, err)

	b.Status = model.StatusDisconnected
	require.NoError(t, backend.SaveSession(ctx, "p1", b))

	dr, err := r.SendMessage(ctx, "p1", a.ID, "p1", b.ID, &model.Message{Protocol: "chat_message", Version: "1.0.0", Payload: []byte("q1")})
	require.NoError(t, err)
	assert.True(t, dr.Success)
	assert.True(t, dr.Queued)
	assert.Equal(t, 1, dr.QueueSize)
}

func TestRouter_QueueFullGoesToDeadLetter(t *testing.T) {
	backend := storage.NewMemoryBackend()
	sessions := session.NewManager(backend, 10)
	r := router.New(sessions, nil)
	ctx := context.Background()

	a, err := sessions.RegisterSession(ctx, "p1", "A", caps(map[string][]string{"chat_message": {"1.0.0"}}), 0)
	require.NoError(t, err)
	b, err := sessions.RegisterSession(ctx, "p1", "B", caps(map[string][]string{"chat_message": {"1.0.0"}}), 1)
	require.NoError(t, err)

	b.Status = model.StatusDisconnected
	require.NoError(t, backend.SaveSession(ctx, "p1", b))

	_, err = r.SendMessage(ctx, "p1", a.ID, "p1", b.ID, &model.Message{Protocol: "chat_message", Version: "1.0.0", Payload: []byte("q1")})
	require.NoError(t, err)

	dr, err := r.SendMessage(ctx, "p1", a.ID, "p1", b.ID, &model.Message{Protocol: "chat_message", Version: "1.0.0", Payload: []byte("q2")})
	require.NoError(t, err)
	assert.False(t, dr.Success)
	assert.Equal(t, "Queue full", dr.ErrorReason)

	entries := r.DeadLetters()
	require.Len(t, entries, 1)
	assert.Equal(t, "queue_full", entries[0].Reason)
}

func TestRouter_ProtocolMismatch(t *testing.T) {
	backend := storage.NewMemoryBackend()
	sessions := session.NewManager(backend, 10)
	r := router.New(sessions, nil)
	ctx := context.Background()

	a, err := sessions.RegisterSession(ctx, "p1", "A", caps(map[string][]string{"chat_message": {"1.0.0"}}), 0)
	require.NoError(t, err)
	c, err := sessions.RegisterSession(ctx, "p1", "C", caps(map[string][]string{"chat_message": {"2.0.0"}}), 0)
	require.NoError(t, err)

	dr, err := r.SendMessage(ctx, "p1", a.ID, "p1", c.ID, &model.Message{Protocol: "chat_message", Version: "1.0.0", Payload: []byte("x")})
	require.NoError(t, err)
	assert.False(t, dr.Success)
	assert.Equal(t, "Protocol mismatch: no common version for 'chat_message'", dr.ErrorReason)
}

func TestRouter_CrossProjectBlockedWithoutRelationship(t *testing.T) {
	backend := storage.NewMemoryBackend()
	sessions := session.NewManager(backend, 10)
	cp := router.NewCrossProjectRouter()
	r := router.New(sessions, cp)
	ctx := context.Background()

	a, err := sessions.RegisterSession(ctx, "p1", "A", caps(nil), 0)
	require.NoError(t, err)
	d, err := sessions.RegisterSession(ctx, "p2", "D", caps(nil), 0)
	require.NoError(t, err)

	_, err = r.SendMessage(ctx, "p1", a.ID, "p2", d.ID, &model.Message{Protocol: "chat_message", Version: "1.0.0"})
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.Forbidden))
}

func TestCrossProjectRouter_AuthorizeRespectsWhitelistAndRate(t *testing.T) {
	cp := router.NewCrossProjectRouter()
	_, err := cp.Propose("p1", "p2", "p1",
		router.DirectionConfig{AllowedProtocols: []string{"chat_message"}, MessagesPerMinute: 1},
		router.DirectionConfig{AllowedProtocols: []string{"chat_message"}, MessagesPerMinute: 1},
	)
	require.NoError(t, err)
	require.NoError(t, cp.Activate("p1", "p2"))

	ctx := context.Background()
	require.NoError(t, cp.Authorize(ctx, "p1", "p2", "chat_message"))

	err = cp.Authorize(ctx, "p1", "p2", "status_update")
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.Forbidden))

	err = cp.Authorize(ctx, "p1", "p2", "chat_message")
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.RateLimited))
}
