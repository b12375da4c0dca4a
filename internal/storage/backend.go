// Package storage defines the Storage Backend interface (spec §4.1) and two
// implementations: an in-memory default and a Redis-backed one grounded on
// the teacher's internal/buffer package. Neither implements relational
// persistence — that layer is explicitly delegated per spec §1.
package storage

import (
	"context"

	"github.com/agentcomm/comm-server/internal/model"
)

// DefaultProjectID is used by callers that never went through the Project
// Identification Middleware (internal jobs, tests).
const DefaultProjectID = "default"

// ProtocolFilter narrows ListProtocols results.
type ProtocolFilter struct {
	Name    string // exact match, empty means any
	Version string // exact match, empty means any
}

// SessionFilter narrows ListSessions results.
type SessionFilter struct {
	Status model.Status // zero value means any
}

// Backend is the storage contract every core component is written against.
// Every method is scoped by projectID so a single backend instance can serve
// every tenant without cross-tenant leakage.
type Backend interface {
	GetProtocol(ctx context.Context, projectID, name, version string) (*model.Definition, error)
	SaveProtocol(ctx context.Context, projectID string, def *model.Definition) error
	ListProtocols(ctx context.Context, projectID string, filter ProtocolFilter) ([]*model.Definition, error)
	DeleteProtocol(ctx context.Context, projectID, name, version string) error

	GetSession(ctx context.Context, projectID, sessionID string) (*model.Session, error)
	SaveSession(ctx context.Context, projectID string, s *model.Session) error
	ListSessions(ctx context.Context, projectID string, filter SessionFilter) ([]*model.Session, error)
	DeleteSession(ctx context.Context, projectID, sessionID string) error

	// EnqueueMessage appends msg to sessionID's queue and reports the queue
	// size after the push. Once the queue holds capacity messages it rejects
	// the push with QueueFull and leaves the queue unchanged; routing the
	// rejected message to a DLQ is the caller's concern, not storage's.
	EnqueueMessage(ctx context.Context, projectID, sessionID string, msg *model.Message, capacity int) (newSize int, err error)
	DequeueMessages(ctx context.Context, projectID, sessionID string, limit int) ([]*model.Message, error)
	GetQueueSize(ctx context.Context, projectID, sessionID string) (int, error)
	ClearQueue(ctx context.Context, projectID, sessionID string) error
}

func queueKey(projectID, sessionID string) string {
	return projectID + ":" + sessionID
}

func protocolKey(projectID, name, version string) string {
	return projectID + ":" + name + ":" + version
}

func sessionKey(projectID, sessionID string) string {
	return projectID + ":" + sessionID
}
