// Package httpkit maps the core error vocabulary onto HTTP responses so
// every REST handler renders failures the same way, the way the teacher's
// handlers uniformly reach for gin.H{"error": ...} rather than ad hoc
// status codes per endpoint.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentcomm/comm-server/internal/corerr"
)

// statusFor maps a core error Kind to its HTTP status, per spec §7.
func statusFor(kind corerr.Kind) int {
	switch kind {
	case corerr.NotFound:
		return http.StatusNotFound
	case corerr.AlreadyExists:
		return http.StatusConflict
	case corerr.InvalidInput:
		return http.StatusUnprocessableEntity
	case corerr.Unauthorized:
		return http.StatusUnauthorized
	case corerr.Forbidden:
		return http.StatusForbidden
	case corerr.ProtocolMismatch:
		return http.StatusUnprocessableEntity
	case corerr.QueueFull:
		return http.StatusServiceUnavailable
	case corerr.RateLimited:
		return http.StatusTooManyRequests
	case corerr.InvalidPhase:
		return http.StatusConflict
	case corerr.Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Fail writes err as a JSON error body with the status its Kind maps to,
// and aborts the gin context.
func Fail(c *gin.Context, err error) {
	kind := corerr.KindOf(err)
	c.JSON(statusFor(kind), gin.H{
		"error": err.Error(),
		"kind":  string(kind),
	})
	c.Abort()
}
