package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcomm/comm-server/internal/corerr"
	"github.com/agentcomm/comm-server/internal/model"
	"github.com/agentcomm/comm-server/internal/session"
	"github.com/agentcomm/comm-server/internal/storage"
)

func TestManager_RegisterAndGetSession(t *testing.T) {
	backend := storage.NewMemoryBackend()
	m := session.NewManager(backend, 10)
	ctx := context.Background()

	s, err := m.RegisterSession(ctx, "proj-a", "planner", model.Capabilities{}, 0)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, s.Status)
	assert.Equal(t, 10, s.QueueCap)

	got, err := m.GetSession(ctx, "proj-a", s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}

func TestManager_RegisterSessionRequiresAgentName(t *testing.T) {
	m := session.NewManager(storage.NewMemoryBackend(), 10)
	_, err := m.RegisterSession(context.Background(), "proj-a", "", model.Capabilities{}, 0)
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.InvalidInput))
}

func TestManager_HeartbeatRejectsDisconnectedSession(t *testing.T) {
	backend := storage.NewMemoryBackend()
	m := session.NewManager(backend, 10)
	ctx := context.Background()

	s, err := m.RegisterSession(ctx, "proj-a", "planner", model.Capabilities{}, 0)
	require.NoError(t, err)

	s.Status = model.StatusDisconnected
	require.NoError(t, backend.SaveSession(ctx, "proj-a", s))

	_, err = m.Heartbeat(ctx, "proj-a", s.ID)
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.InvalidPhase))
}

func TestManager_EnqueueFiresQueueWarningAtThreshold(t *testing.T) {
	backend := storage.NewMemoryBackend()

	var warned []int
	m := session.NewManager(backend, 10, session.WithQueueWarning(0.8, func(_, _ string, size, _ int) {
		warned = append(warned, size)
	}))
	ctx := context.Background()

	s, err := m.RegisterSession(ctx, "proj-a", "planner", model.Capabilities{}, 5)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := m.Enqueue(ctx, "proj-a", s.ID, &model.Message{ID: "m"})
		require.NoError(t, err)
	}

	assert.Equal(t, []int{4}, warned)
}

func TestManager_DeregisterSessionClearsQueue(t *testing.T) {
	backend := storage.NewMemoryBackend()
	m := session.NewManager(backend, 10)
	ctx := context.Background()

	s, err := m.RegisterSession(ctx, "proj-a", "planner", model.Capabilities{}, 0)
	require.NoError(t, err)

	_, err = m.Enqueue(ctx, "proj-a", s.ID, &model.Message{ID: "m"})
	require.NoError(t, err)

	require.NoError(t, m.DeregisterSession(ctx, "proj-a", s.ID))

	_, err = m.GetSession(ctx, "proj-a", s.ID)
	assert.True(t, corerr.Is(err, corerr.NotFound))

	size, err := m.QueueSize(ctx, "proj-a", s.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}
