package websocket

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcomm/comm-server/internal/authtoken"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret, userID string) string {
	t.Helper()
	claims := authtoken.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func contextWithQuery(query string) *gin.Context {
	req := httptest.NewRequest("GET", "/ws/status?"+query, nil)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	return c
}

func TestBearerToken_PrefersQueryParam(t *testing.T) {
	c := contextWithQuery("token=from-query")
	c.Request.Header.Set("Authorization", "Bearer from-header")

	assert.Equal(t, "from-query", bearerToken(c))
}

func TestBearerToken_FallsBackToAuthorizationHeader(t *testing.T) {
	c := contextWithQuery("")
	c.Request.Header.Set("Authorization", "Bearer from-header")

	assert.Equal(t, "from-header", bearerToken(c))
}

func TestAuthenticate_RequiredSucceedsWithValidToken(t *testing.T) {
	validator := authtoken.New("shh-secret", nil)
	tok := signToken(t, "shh-secret", "user-1")

	c := contextWithQuery("token=" + tok)
	id, ok := authenticate(c, validator, true)

	assert.True(t, ok)
	assert.Equal(t, "user-1", id)
}

func TestAuthenticate_RequiredFailsWithoutToken(t *testing.T) {
	validator := authtoken.New("shh-secret", nil)

	c := contextWithQuery("")
	_, ok := authenticate(c, validator, true)

	assert.False(t, ok)
}

func TestAuthenticate_OptionalFallsBackToGuestOnFailure(t *testing.T) {
	validator := authtoken.New("shh-secret", nil)

	c := contextWithQuery("")
	id, ok := authenticate(c, validator, false)

	assert.True(t, ok)
	assert.Equal(t, "", id)
}

func TestAuthenticate_NilValidatorHonorsRequireAuth(t *testing.T) {
	c := contextWithQuery("")

	_, ok := authenticate(c, nil, true)
	assert.False(t, ok)

	_, ok = authenticate(c, nil, false)
	assert.True(t, ok)
}
