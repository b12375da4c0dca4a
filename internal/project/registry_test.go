package project_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcomm/comm-server/internal/corerr"
	"github.com/agentcomm/comm-server/internal/project"
)

func TestRegistry_CreateProjectRejectsReservedSlug(t *testing.T) {
	r := project.NewRegistry(nil)
	_, _, err := r.CreateProject("admin", "Admin", "", nil, project.Config{})
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.InvalidInput))
}

func TestRegistry_CreateProjectRejectsDuplicate(t *testing.T) {
	r := project.NewRegistry(nil)
	_, _, err := r.CreateProject("acme", "Acme", "", nil, project.Config{})
	require.NoError(t, err)

	_, _, err = r.CreateProject("acme", "Acme Again", "", nil, project.Config{})
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.AlreadyExists))
}

func TestRegistry_GetProjectAutoProvisionsDefault(t *testing.T) {
	r := project.NewRegistry(nil)
	p, err := r.GetProject(project.DefaultProjectID)
	require.NoError(t, err)
	assert.Equal(t, project.StatusActive, p.Status)
	assert.Len(t, p.APIKeys, 1)
}

func TestRegistry_ValidateAPIKeyRoundTrip(t *testing.T) {
	r := project.NewRegistry(nil)
	_, plaintext, err := r.CreateProject("acme", "Acme", "", nil, project.Config{})
	require.NoError(t, err)

	projectID, _, err := r.ValidateAPIKey(plaintext)
	require.NoError(t, err)
	assert.Equal(t, "acme", projectID)

	_, _, err = r.ValidateAPIKey("acme_bogus_key")
	assert.True(t, corerr.Is(err, corerr.Unauthorized))
}

func TestRegistry_RotateAPIKeysWithGracePeriod(t *testing.T) {
	r := project.NewRegistry(nil)
	_, oldKey, err := r.CreateProject("acme", "Acme", "", nil, project.Config{})
	require.NoError(t, err)

	newKey, err := r.RotateAPIKeys("acme", "", time.Hour)
	require.NoError(t, err)

	_, _, err = r.ValidateAPIKey(oldKey)
	assert.NoError(t, err, "old key still valid within grace period")

	_, _, err = r.ValidateAPIKey(newKey)
	assert.NoError(t, err)
}

func TestRegistry_RotateAPIKeysNoGraceExpiresImmediately(t *testing.T) {
	r := project.NewRegistry(nil)
	_, oldKey, err := r.CreateProject("acme", "Acme", "", nil, project.Config{})
	require.NoError(t, err)

	_, err = r.RotateAPIKeys("acme", "", 0)
	require.NoError(t, err)

	_, _, err = r.ValidateAPIKey(oldKey)
	assert.True(t, corerr.Is(err, corerr.Unauthorized))
}

type fakeCounter struct{ count int }

func (f fakeCounter) ActiveSessionCount(string) int { return f.count }

func TestRegistry_DeleteProjectRefusesWithActiveSessions(t *testing.T) {
	r := project.NewRegistry(fakeCounter{count: 2})
	_, _, err := r.CreateProject("acme", "Acme", "", nil, project.Config{})
	require.NoError(t, err)

	err = r.DeleteProject("acme")
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.Forbidden))
}
