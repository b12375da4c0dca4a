// Package model holds the entity types shared across the storage, session,
// and protocol packages. Keeping them here (instead of in the packages that
// operate on them) avoids storage importing session/protocol for their types
// while session/protocol import storage for persistence.
package model

import "time"

// Status is a Session's position in the active -> stale -> disconnected
// lifecycle (spec §3, §4.4).
type Status string

const (
	StatusActive       Status = "active"
	StatusStale        Status = "stale"
	StatusDisconnected Status = "disconnected"
)

// Session is a registered agent's slot within a project.
type Session struct {
	ID           string
	ProjectID    string
	AgentName    string
	Capabilities Capabilities
	Status       Status
	QueueCap     int
	CreatedAt    time.Time
	LastSeenAt   time.Time
	Metadata     map[string]string
}

// Capabilities is the set of protocol name/version pairs and free-form
// features a session advertises at registration, consumed by the
// Capability Negotiator.
type Capabilities struct {
	Protocols map[string][]string // protocol name -> supported versions
	Features  []string
}

// Message is a single unit routed through a session's queue.
type Message struct {
	ID          string
	SessionID   string
	ProjectID   string
	FromSession string
	Protocol    string
	Version     string
	Headers     map[string]string
	Payload     []byte
	EnqueuedAt  time.Time
}
