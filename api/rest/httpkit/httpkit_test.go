package httpkit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/agentcomm/comm-server/api/rest/httpkit"
	"github.com/agentcomm/comm-server/internal/corerr"
)

func TestFail_MapsKindsToStatus(t *testing.T) {
	cases := []struct {
		kind   corerr.Kind
		status int
	}{
		{corerr.NotFound, http.StatusNotFound},
		{corerr.AlreadyExists, http.StatusConflict},
		{corerr.InvalidInput, http.StatusUnprocessableEntity},
		{corerr.Unauthorized, http.StatusUnauthorized},
		{corerr.Forbidden, http.StatusForbidden},
		{corerr.QueueFull, http.StatusServiceUnavailable},
		{corerr.RateLimited, http.StatusTooManyRequests},
		{corerr.InvalidPhase, http.StatusConflict},
		{corerr.Timeout, http.StatusGatewayTimeout},
		{corerr.Internal, http.StatusInternalServerError},
	}

	gin.SetMode(gin.TestMode)
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		httpkit.Fail(c, corerr.New(tc.kind, "op", "boom"))
		assert.Equal(t, tc.status, w.Code, "kind=%s", tc.kind)
	}
}
