package websocket

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/agentcomm/comm-server/internal/authtoken"
	"github.com/agentcomm/comm-server/internal/hub"
	"github.com/agentcomm/comm-server/internal/logger"
)

type meetingFrame struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// MeetingConnectHandler upgrades /ws/meetings/{meetingID} and drives the
// read loop that feeds opinion/consensus_vote frames into the Meeting Hub,
// which the Sequential Discussion Coordinator is waiting on.
func MeetingConnectHandler(meetingHub *hub.MeetingHub, validator *authtoken.Validator, throttle *hub.IPThrottle) gin.HandlerFunc {
	return func(c *gin.Context) {
		meetingID := c.Param("meetingID")

		if rejectConnectRate(c, throttle, meetingID) {
			return
		}

		principalID, ok := authenticate(c, validator, true)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logUpgradeFailure(err, meetingID)
			return
		}
		wsc := newWSConn(conn)

		if !ok {
			wsc.closeWithPolicyViolation("authentication required")
			return
		}

		id := meetingHub.Connect(wsc, meetingID, principalID)
		defer meetingHub.Disconnect(id)

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn("meeting websocket read error", "meeting_id", meetingID, "error", err)
				}
				return
			}

			var frame meetingFrame
			if err := json.Unmarshal(payload, &frame); err != nil {
				meetingHub.SendPersonal(id, hub.Event{Type: "error", Payload: "invalid frame"}) //nolint:errcheck
				continue
			}

			switch frame.Type {
			case "opinion":
				meetingHub.Resolve(meetingID, principalID, "opinion", frame.Value) //nolint:errcheck
			case "consensus_vote":
				meetingHub.Resolve(meetingID, principalID, "consensus_vote", frame.Value) //nolint:errcheck
			case "leave":
				return
			}
		}
	}
}
