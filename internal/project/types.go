// Package project implements the Project Registry (spec §4.2): project
// lifecycle, API-key issuance/validation/rotation, and per-project quotas.
// Grounded on the teacher's in-process registry style (a mutex-guarded map,
// as in internal/sessions.Manager) generalized to multi-tenant slugs instead
// of anonymous session IDs.
package project

import "time"

// Status is a project's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)

// DefaultProjectID is auto-provisioned on first reference, per spec §3:
// "the default project always exists after first reference."
const DefaultProjectID = "default"

// reservedSlugs may not be requested via CreateProject; "default" is among
// them because it is provisioned internally by the registry, not by callers.
var reservedSlugs = map[string]bool{
	"default": true,
	"system":  true,
	"admin":   true,
	"root":    true,
}

// Config carries per-project quotas and discoverability.
type Config struct {
	MaxSessions         int
	MaxProtocols        int
	MaxQueueSize        int
	Discoverable        bool
	CrossProjectAllowed bool
}

// Statistics are rolling counters updated via UpdateStatistics.
type Statistics struct {
	SessionsCreated  int64
	MessagesSent     int64
	MessagesReceived int64
}

// APIKey is a project's credential. Secret is never stored; only Hash and
// Prefix survive creation.
type APIKey struct {
	KeyID     string
	ProjectID string
	Hash      string // sha256 hex of the full plaintext key
	Prefix    string // first 20 chars of plaintext, for human identification
	CreatedAt time.Time
	ExpiresAt *time.Time
	Active    bool
}

// Project is a tenant namespace.
type Project struct {
	ID          string
	Name        string
	Description string
	Tags        []string
	APIKeys     []APIKey
	Config      Config
	Status      Status
	Statistics  Statistics
	CreatedAt   time.Time
}
