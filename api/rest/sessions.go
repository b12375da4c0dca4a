package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentcomm/comm-server/api/rest/httpkit"
	"github.com/agentcomm/comm-server/internal/identify"
	"github.com/agentcomm/comm-server/internal/model"
	"github.com/agentcomm/comm-server/internal/session"
	"github.com/agentcomm/comm-server/internal/storage"
)

type registerSessionRequest struct {
	AgentName    string             `json:"agent_name" binding:"required"`
	Capabilities model.Capabilities `json:"capabilities"`
	QueueCap     int                `json:"queue_capacity"`
}

// RegisterSessionHandler registers a new agent session for the acting
// project. The WebSocket endpoints do not create sessions, so this is the
// route by which a session is registered (spec §6).
func RegisterSessionHandler(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		s, err := sessions.RegisterSession(c.Request.Context(), identify.ProjectID(c), req.AgentName, req.Capabilities, req.QueueCap)
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, s)
	}
}

// GetSessionHandler returns a single session by ID.
func GetSessionHandler(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sessions.GetSession(c.Request.Context(), identify.ProjectID(c), c.Param("sessionID"))
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

// ListSessionsHandler lists sessions for the acting project, optionally
// filtered by ?status=active|stale|disconnected.
func ListSessionsHandler(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := storage.SessionFilter{}
		if status := c.Query("status"); status != "" {
			filter.Status = model.Status(status)
		}

		list, err := sessions.ListSessions(c.Request.Context(), identify.ProjectID(c), filter)
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": list})
	}
}

// HeartbeatHandler renews a session's last-seen timestamp, resetting the
// stale/disconnect clock.
func HeartbeatHandler(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sessions.Heartbeat(c.Request.Context(), identify.ProjectID(c), c.Param("sessionID"))
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

// DeregisterSessionHandler ends a session immediately, bypassing the
// stale/disconnect sweeps.
func DeregisterSessionHandler(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := sessions.DeregisterSession(c.Request.Context(), identify.ProjectID(c), c.Param("sessionID"))
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
