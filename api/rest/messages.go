package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agentcomm/comm-server/api/rest/httpkit"
	"github.com/agentcomm/comm-server/internal/identify"
	"github.com/agentcomm/comm-server/internal/model"
	"github.com/agentcomm/comm-server/internal/router"
	"github.com/agentcomm/comm-server/internal/session"
)

type sendMessageRequest struct {
	FromSessionID     string            `json:"from_session_id" binding:"required"`
	ToSessionID       string            `json:"to_session_id" binding:"required"`
	ToProjectID       string            `json:"to_project_id"` // empty means same project
	Protocol          string            `json:"protocol" binding:"required"`
	Version           string            `json:"version" binding:"required"`
	Headers           map[string]string `json:"headers"`
	Payload           json.RawMessage   `json:"payload"`
}

// SendMessageHandler routes a point-to-point message, queueing it if the
// recipient is offline.
func SendMessageHandler(r *router.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		toProject := req.ToProjectID
		if toProject == "" {
			toProject = identify.ProjectID(c)
		}

		msg := &model.Message{
			Protocol: req.Protocol, Version: req.Version,
			Headers: req.Headers, Payload: req.Payload,
		}
		result, err := r.SendMessage(c.Request.Context(), identify.ProjectID(c), req.FromSessionID, toProject, req.ToSessionID, msg)
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type broadcastMessageRequest struct {
	FromSessionID string            `json:"from_session_id" binding:"required"`
	Protocol      string            `json:"protocol" binding:"required"`
	Version       string            `json:"version" binding:"required"`
	Headers       map[string]string `json:"headers"`
	Payload       json.RawMessage   `json:"payload"`
	FeatureFilter []string          `json:"feature_filter"`
}

// BroadcastMessageHandler fans a single message out to every other active
// session in the acting project that supports the given protocol (and, if
// given, every feature in FeatureFilter).
func BroadcastMessageHandler(r *router.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req broadcastMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		msg := &model.Message{
			Protocol: req.Protocol, Version: req.Version,
			Headers: req.Headers, Payload: req.Payload,
		}
		result, err := r.BroadcastMessage(c.Request.Context(), identify.ProjectID(c), req.FromSessionID, msg, req.FeatureFilter)
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// DequeueMessagesHandler drains up to ?limit= (default 50) queued messages
// for a session, skipping any whose ttl header has expired.
func DequeueMessagesHandler(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if q := c.Query("limit"); q != "" {
			if n, err := strconv.Atoi(q); err == nil && n > 0 {
				limit = n
			}
		}

		msgs, err := sessions.Dequeue(c.Request.Context(), identify.ProjectID(c), c.Param("sessionID"), limit)
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}

// DeadLettersHandler lists messages the router could not deliver or queue.
func DeadLettersHandler(r *router.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"dead_letters": r.DeadLetters()})
	}
}

// ClearDeadLettersHandler empties the dead letter queue.
func ClearDeadLettersHandler(r *router.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		r.ClearDeadLetters()
		c.Status(http.StatusNoContent)
	}
}
