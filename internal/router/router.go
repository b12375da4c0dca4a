package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentcomm/comm-server/internal/corerr"
	"github.com/agentcomm/comm-server/internal/logger"
	"github.com/agentcomm/comm-server/internal/model"
	"github.com/agentcomm/comm-server/internal/negotiator"
	"github.com/agentcomm/comm-server/internal/session"
	"github.com/agentcomm/comm-server/internal/storage"
)

// defaultDLQCapacity bounds the in-process dead-letter queue. The source
// this was derived from left it unbounded; capping it with an
// oldest-eviction policy is this implementation's resolution of that.
const defaultDLQCapacity = 1000

// Router is the Message Router.
type Router struct {
	sessions     *session.Manager
	crossProject *CrossProjectRouter

	mu       sync.Mutex
	dlq      []DLQEntry
	dlqCap   int
}

// New builds a Router. crossProject may be nil if cross-project messaging
// is not configured; cross-project sends then always fail Forbidden.
func New(sessions *session.Manager, crossProject *CrossProjectRouter) *Router {
	return &Router{
		sessions:     sessions,
		crossProject: crossProject,
		dlqCap:       defaultDLQCapacity,
	}
}

// SendMessage delivers msg from senderID to recipientID. senderProjectID and
// recipientProjectID may differ, in which case the send is routed through
// the Cross-Project Router first.
func (r *Router) SendMessage(ctx context.Context, senderProjectID, senderID, recipientProjectID, recipientID string, msg *model.Message) (*DeliveryResult, error) {
	sender, err := r.sessions.GetSession(ctx, senderProjectID, senderID)
	if err != nil {
		return nil, fmt.Errorf("router.SendMessage: %w", err)
	}

	if recipientProjectID != "" && recipientProjectID != senderProjectID {
		if r.crossProject == nil {
			err = corerr.New(corerr.Forbidden, "router.SendMessage", "cross-project messaging not configured")
		} else {
			err = r.crossProject.Authorize(ctx, senderProjectID, recipientProjectID, msg.Protocol)
		}
		if err != nil {
			if corerr.Is(err, corerr.Forbidden) {
				logger.Warn("cross-project send forbidden", "sender_project_id", senderProjectID, "sender_id", senderID,
					"recipient_project_id", recipientProjectID, "recipient_id", recipientID, "protocol", msg.Protocol, "error", err)
			}
			return nil, err
		}
	} else {
		recipientProjectID = senderProjectID
	}

	recipient, err := r.sessions.GetSession(ctx, recipientProjectID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("router.SendMessage: %w", err)
	}

	return r.deliver(ctx, senderProjectID, sender, recipientProjectID, recipient, msg)
}

func (r *Router) deliver(ctx context.Context, senderProjectID string, sender *model.Session, recipientProjectID string, recipient *model.Session, msg *model.Message) (*DeliveryResult, error) {
	neg := negotiator.Negotiate(sender.Capabilities, recipient.Capabilities, nil)
	if _, ok := neg.CommonProtocols[msg.Protocol]; !ok {
		return &DeliveryResult{Success: false, ErrorReason: "Protocol mismatch: no common version for '" + msg.Protocol + "'"}, nil
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.FromSession = sender.ID
	msg.SessionID = recipient.ID
	msg.ProjectID = recipientProjectID

	size, err := r.sessions.Enqueue(ctx, recipientProjectID, recipient.ID, msg)
	if err != nil {
		if corerr.Is(err, corerr.QueueFull) {
			r.deadLetter(msg, "queue_full", sender.ID, recipient.ID, recipientProjectID)
			return &DeliveryResult{Success: false, ErrorReason: "Queue full"}, nil
		}
		return nil, fmt.Errorf("router.deliver: %w", err)
	}

	now := time.Now()
	if recipient.Status == model.StatusDisconnected {
		return &DeliveryResult{Success: true, Queued: true, QueueSize: size}, nil
	}
	return &DeliveryResult{Success: true, Queued: recipient.Status != model.StatusActive, DeliveredAt: &now, QueueSize: size}, nil
}

// BroadcastMessage delivers msg to every active session in projectID except
// senderID, sharing one message_id across recipients.
func (r *Router) BroadcastMessage(ctx context.Context, projectID, senderID string, msg *model.Message, featureFilter []string) (*BroadcastResult, error) {
	sender, err := r.sessions.GetSession(ctx, projectID, senderID)
	if err != nil {
		return nil, fmt.Errorf("router.BroadcastMessage: %w", err)
	}

	sessions, err := r.sessions.ListSessions(ctx, projectID, storage.SessionFilter{Status: model.StatusActive})
	if err != nil {
		return nil, fmt.Errorf("router.BroadcastMessage: %w", err)
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	result := &BroadcastResult{MessageID: msg.ID, Results: make(map[string]DeliveryResult)}
	for _, recipient := range sessions {
		if recipient.ID == senderID {
			continue
		}
		if len(featureFilter) > 0 && !hasAllFeatures(recipient.Capabilities.Features, featureFilter) {
			result.Skipped++
			continue
		}

		neg := negotiator.Negotiate(sender.Capabilities, recipient.Capabilities, nil)
		if _, ok := neg.CommonProtocols[msg.Protocol]; !ok {
			result.Skipped++
			continue
		}

		cp := *msg
		dr, err := r.deliver(ctx, projectID, sender, projectID, recipient, &cp)
		if err != nil || !dr.Success {
			result.Failed++
			continue
		}
		result.Delivered++
		result.Results[recipient.ID] = *dr
	}

	return result, nil
}

func (r *Router) deadLetter(msg *model.Message, reason, senderID, recipientID, projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.dlq) >= r.dlqCap {
		r.dlq = r.dlq[1:]
	}
	r.dlq = append(r.dlq, DLQEntry{
		Message: msg, FailedAt: time.Now(), Reason: reason,
		SenderID: senderID, RecipientID: recipientID, ProjectID: projectID,
	})
	logger.Warn("message dead-lettered", "reason", reason, "sender_id", senderID, "recipient_id", recipientID, "project_id", projectID)
}

// DeadLetters returns a snapshot of the current dead-letter queue.
func (r *Router) DeadLetters() []DLQEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]DLQEntry, len(r.dlq))
	copy(out, r.dlq)
	return out
}

// ClearDeadLetters empties the dead-letter queue.
func (r *Router) ClearDeadLetters() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dlq = nil
}

func hasAllFeatures(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, f := range have {
		set[f] = true
	}
	for _, f := range want {
		if !set[f] {
			return false
		}
	}
	return true
}
