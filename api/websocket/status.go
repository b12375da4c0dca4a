package websocket

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/agentcomm/comm-server/internal/authtoken"
	"github.com/agentcomm/comm-server/internal/hub"
	"github.com/agentcomm/comm-server/internal/logger"
)

type statusFrame struct {
	Type string `json:"type"`
}

// StatusConnectHandler upgrades /ws/status. Authentication is optional —
// callers who don't present a valid credential are connected as "Guest"
// rather than rejected, per spec §4.7.
func StatusConnectHandler(statusHub *hub.StatusHub, validator *authtoken.Validator, throttle *hub.IPThrottle) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rejectConnectRate(c, throttle, "status") {
			return
		}

		principalID, _ := authenticate(c, validator, false)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logUpgradeFailure(err, "status")
			return
		}
		wsc := newWSConn(conn)

		id := statusHub.Connect(wsc, principalID)
		defer statusHub.Disconnect(id)

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn("status websocket read error", "error", err)
				}
				return
			}

			var frame statusFrame
			if err := json.Unmarshal(payload, &frame); err != nil {
				continue
			}
			if frame.Type == "ping" {
				statusHub.SendPong(id) //nolint:errcheck
			}
		}
	}
}
