package authtoken_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcomm/comm-server/internal/authtoken"
	"github.com/agentcomm/comm-server/internal/corerr"
	"github.com/agentcomm/comm-server/internal/project"
)

func signToken(t *testing.T, secret, userID string, expiresIn time.Duration) string {
	t.Helper()
	claims := authtoken.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestValidator_AuthenticatesValidJWT(t *testing.T) {
	v := authtoken.New("shh-secret", nil)
	tok := signToken(t, "shh-secret", "user-1", time.Hour)

	p, err := v.Authenticate("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.ID)
	assert.Equal(t, "user", p.Kind)
}

func TestValidator_RejectsExpiredJWT(t *testing.T) {
	v := authtoken.New("shh-secret", nil)
	tok := signToken(t, "shh-secret", "user-1", -time.Hour)

	_, err := v.Authenticate(tok)
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.Unauthorized))
}

func TestValidator_RejectsWrongSecret(t *testing.T) {
	v := authtoken.New("shh-secret", nil)
	tok := signToken(t, "a-different-secret", "user-1", time.Hour)

	_, err := v.Authenticate(tok)
	require.Error(t, err)
}

func TestValidator_FallsBackToAgentAPIKey(t *testing.T) {
	projects := project.NewRegistry(nil)
	p, key, err := projects.CreateProject("proj1", "Project One", "", nil, project.Config{})
	require.NoError(t, err)
	_ = p

	v := authtoken.New("shh-secret", projects)
	principal, err := v.Authenticate(key)
	require.NoError(t, err)
	assert.Equal(t, "agent", principal.Kind)
	assert.Equal(t, "proj1", principal.ProjectID)
}

func TestValidator_RejectsGarbageToken(t *testing.T) {
	v := authtoken.New("shh-secret", project.NewRegistry(nil))
	_, err := v.Authenticate("not-a-real-token")
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.Unauthorized))
}

func TestValidator_RejectsEmptyToken(t *testing.T) {
	v := authtoken.New("shh-secret", nil)
	_, err := v.Authenticate("")
	require.Error(t, err)
}
