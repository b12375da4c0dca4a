package protocol_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcomm/comm-server/internal/corerr"
	"github.com/agentcomm/comm-server/internal/model"
	"github.com/agentcomm/comm-server/internal/protocol"
	"github.com/agentcomm/comm-server/internal/storage"
)

const validSchema = `{"type":"object","properties":{"task":{"type":"string"}},"required":["task"]}`

func TestRegistry_RegisterRejectsBadName(t *testing.T) {
	r := protocol.NewRegistry(storage.NewMemoryBackend())
	err := r.Register(context.Background(), "proj-a", &model.Definition{
		Name: "!!bad", Version: "1.0.0", Schema: []byte(validSchema),
	})
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.InvalidInput))
}

func TestRegistry_RegisterRejectsBadVersion(t *testing.T) {
	r := protocol.NewRegistry(storage.NewMemoryBackend())
	err := r.Register(context.Background(), "proj-a", &model.Definition{
		Name: "handoff", Version: "latest", Schema: []byte(validSchema),
	})
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.InvalidInput))
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := protocol.NewRegistry(storage.NewMemoryBackend())
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, "proj-a", &model.Definition{
		Name: "handoff", Version: "1.0.0", Schema: []byte(validSchema),
	}))

	def, err := r.Get(ctx, "proj-a", "handoff", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "handoff", def.Name)
}

func TestRegistry_ValidatePayload(t *testing.T) {
	r := protocol.NewRegistry(storage.NewMemoryBackend())
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, "proj-a", &model.Definition{
		Name: "handoff", Version: "1.0.0", Schema: []byte(validSchema),
	}))

	ok, err := r.Validate(ctx, "proj-a", "handoff", "1.0.0", []byte(`{"task":"build"}`))
	require.NoError(t, err)
	assert.True(t, ok.Valid)

	bad, err := r.Validate(ctx, "proj-a", "handoff", "1.0.0", []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, bad.Valid)
	assert.NotEmpty(t, bad.Errors)
}

func TestRegistry_Deprecate(t *testing.T) {
	r := protocol.NewRegistry(storage.NewMemoryBackend())
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, "proj-a", &model.Definition{
		Name: "handoff", Version: "1.0.0", Schema: []byte(validSchema),
	}))
	require.NoError(t, r.Deprecate(ctx, "proj-a", "handoff", "1.0.0"))

	def, err := r.Get(ctx, "proj-a", "handoff", "1.0.0")
	require.NoError(t, err)
	assert.True(t, def.Deprecated)
}
