// Package router implements the Message Router and Cross-Project Router
// (spec §4.6): point-to-point delivery, broadcast fan-out, dead-letter
// queueing, and cross-project consent/rate-limit gating. Grounded on the
// teacher's websocket hub send paths for the delivery loop, and on the
// retrieved pack's ulule/limiter usage for the cross-project rate cap.
package router

import (
	"time"

	"github.com/agentcomm/comm-server/internal/model"
)

// DeliveryResult is the outcome of a single send_message call.
type DeliveryResult struct {
	Success     bool
	Queued      bool
	DeliveredAt *time.Time
	QueueSize   int
	ErrorReason string
}

// BroadcastResult tallies a broadcast_message call across recipients.
type BroadcastResult struct {
	MessageID string
	Delivered int
	Failed    int
	Skipped   int
	Results   map[string]DeliveryResult // recipient session ID -> its result
}

// DLQEntry is a single dead-letter record.
type DLQEntry struct {
	Message     *model.Message
	FailedAt    time.Time
	Reason      string
	SenderID    string
	RecipientID string
	ProjectID   string
}
