package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcomm/comm-server/internal/corerr"
	"github.com/agentcomm/comm-server/internal/model"
	"github.com/agentcomm/comm-server/internal/storage"
)

func TestMemoryBackend_ProtocolRoundTrip(t *testing.T) {
	b := storage.NewMemoryBackend()
	ctx := context.Background()

	def := &model.Definition{Name: "handoff", Version: "1.0.0", Schema: []byte(`{}`)}
	require.NoError(t, b.SaveProtocol(ctx, "proj-a", def))

	got, err := b.GetProtocol(ctx, "proj-a", "handoff", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "proj-a", got.ProjectID)
	assert.Equal(t, "handoff", got.Name)

	_, err = b.GetProtocol(ctx, "proj-b", "handoff", "1.0.0")
	assert.True(t, corerr.Is(err, corerr.NotFound))
}

func TestMemoryBackend_ListProtocolsFiltersByProjectAndName(t *testing.T) {
	b := storage.NewMemoryBackend()
	ctx := context.Background()

	require.NoError(t, b.SaveProtocol(ctx, "proj-a", &model.Definition{Name: "handoff", Version: "1.0.0"}))
	require.NoError(t, b.SaveProtocol(ctx, "proj-a", &model.Definition{Name: "handoff", Version: "2.0.0"}))
	require.NoError(t, b.SaveProtocol(ctx, "proj-b", &model.Definition{Name: "handoff", Version: "1.0.0"}))

	got, err := b.ListProtocols(ctx, "proj-a", storage.ProtocolFilter{Name: "handoff"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMemoryBackend_SessionLifecycle(t *testing.T) {
	b := storage.NewMemoryBackend()
	ctx := context.Background()

	s := &model.Session{ID: "sess-1", AgentName: "planner", Status: model.StatusActive}
	require.NoError(t, b.SaveSession(ctx, "proj-a", s))

	got, err := b.GetSession(ctx, "proj-a", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, got.Status)

	require.NoError(t, b.DeleteSession(ctx, "proj-a", "sess-1"))
	_, err = b.GetSession(ctx, "proj-a", "sess-1")
	assert.True(t, corerr.Is(err, corerr.NotFound))
}

func TestMemoryBackend_EnqueueRejectsAtCapacity(t *testing.T) {
	b := storage.NewMemoryBackend()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		size, err := b.EnqueueMessage(ctx, "proj-a", "sess-1", &model.Message{ID: string(rune('a' + i))}, 3)
		require.NoError(t, err)
		assert.Equal(t, i+1, size)
	}

	_, err := b.EnqueueMessage(ctx, "proj-a", "sess-1", &model.Message{ID: "d"}, 3)
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.QueueFull))

	msgs, err := b.DequeueMessages(ctx, "proj-a", "sess-1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	// the rejected enqueue never touched the queue: the original three survive
	assert.Equal(t, "a", msgs[0].ID)
	assert.Equal(t, "b", msgs[1].ID)

	size, err := b.GetQueueSize(ctx, "proj-a", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	require.NoError(t, b.ClearQueue(ctx, "proj-a", "sess-1"))
	size, err = b.GetQueueSize(ctx, "proj-a", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}
