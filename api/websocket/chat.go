package websocket

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/agentcomm/comm-server/internal/authtoken"
	"github.com/agentcomm/comm-server/internal/hub"
	"github.com/agentcomm/comm-server/internal/logger"
)

type chatFrame struct {
	Type string `json:"type"`
	Body string `json:"body"`
}

// ChatConnectHandler upgrades /ws/chat/{roomID}, broadcasting messages and
// typing_start/typing_stop indicators to the room.
func ChatConnectHandler(chatHub *hub.ChatHub, validator *authtoken.Validator, throttle *hub.IPThrottle) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomID")

		if rejectConnectRate(c, throttle, roomID) {
			return
		}

		principalID, ok := authenticate(c, validator, true)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logUpgradeFailure(err, roomID)
			return
		}
		wsc := newWSConn(conn)

		if !ok {
			wsc.closeWithPolicyViolation("authentication required")
			return
		}

		id := chatHub.Connect(wsc, roomID, principalID)
		defer chatHub.Disconnect(id)

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn("chat websocket read error", "room_id", roomID, "error", err)
				}
				return
			}

			var frame chatFrame
			if err := json.Unmarshal(payload, &frame); err != nil {
				continue
			}

			switch frame.Type {
			case "message":
				chatHub.Message(roomID, principalID, frame.Body)
			case "typing_start":
				chatHub.SetTyping(roomID, principalID, true)
			case "typing_stop":
				chatHub.SetTyping(roomID, principalID, false)
			case "leave":
				return
			}
		}
	}
}
