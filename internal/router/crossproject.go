package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/agentcomm/comm-server/internal/corerr"
)

// RelationshipStatus mirrors the Cross-Project Relationship entity (spec §3).
type RelationshipStatus string

const (
	RelationshipPending   RelationshipStatus = "pending"
	RelationshipActive    RelationshipStatus = "active"
	RelationshipSuspended RelationshipStatus = "suspended"
	RelationshipRevoked   RelationshipStatus = "revoked"
)

// DirectionConfig is one side of a cross-project relationship: what the
// source project is allowed to send to the target.
type DirectionConfig struct {
	AllowedProtocols  []string
	MessagesPerMinute int
}

// Relationship is a mutual-consent pairing between two distinct projects.
type Relationship struct {
	ProjectA    string
	ProjectB    string
	Status      RelationshipStatus
	AToB        DirectionConfig
	BToA        DirectionConfig
	InitiatedBy string
	CreatedAt   time.Time
}

func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// CrossProjectRouter enforces mutual-consent permissions and per-minute
// rate limits on cross-project sends, using the ulule/limiter sliding
// window the way the retrieved pack wires it for per-principal API limits.
type CrossProjectRouter struct {
	mu            sync.RWMutex
	relationships map[string]*Relationship
	store         limiter.Store
	limiters      map[string]*limiter.Limiter // "projectA->projectB" -> limiter instance
}

// NewCrossProjectRouter builds a router with an in-memory limiter store.
func NewCrossProjectRouter() *CrossProjectRouter {
	return &CrossProjectRouter{
		relationships: make(map[string]*Relationship),
		store:         memory.NewStore(),
		limiters:      make(map[string]*limiter.Limiter),
	}
}

// Propose registers a pending relationship between two distinct projects.
// A pair relates at most one relationship object.
func (c *CrossProjectRouter) Propose(a, b, initiatedBy string, aToB, bToA DirectionConfig) (*Relationship, error) {
	if a == b {
		return nil, corerr.New(corerr.InvalidInput, "router.Propose", "a project cannot relate to itself")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := pairKey(a, b)
	if _, exists := c.relationships[key]; exists {
		return nil, corerr.New(corerr.AlreadyExists, "router.Propose", "relationship already exists for this pair")
	}

	rel := &Relationship{
		ProjectA: a, ProjectB: b, Status: RelationshipPending,
		AToB: aToB, BToA: bToA, InitiatedBy: initiatedBy, CreatedAt: time.Now(),
	}
	c.relationships[key] = rel
	return rel, nil
}

// Activate transitions a pending relationship to active.
func (c *CrossProjectRouter) Activate(a, b string) error {
	return c.setStatus(a, b, RelationshipActive)
}

// Suspend transitions an active relationship to suspended.
func (c *CrossProjectRouter) Suspend(a, b string) error {
	return c.setStatus(a, b, RelationshipSuspended)
}

// Revoke transitions a relationship to revoked, terminally.
func (c *CrossProjectRouter) Revoke(a, b string) error {
	return c.setStatus(a, b, RelationshipRevoked)
}

func (c *CrossProjectRouter) setStatus(a, b string, status RelationshipStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rel, ok := c.relationships[pairKey(a, b)]
	if !ok {
		return corerr.New(corerr.NotFound, "router.setStatus", "no relationship for this pair")
	}
	if rel.Status == RelationshipRevoked && status != RelationshipRevoked {
		return corerr.New(corerr.InvalidInput, "router.setStatus", "relationship has been revoked")
	}
	rel.Status = status
	return nil
}

// Authorize checks that fromProject may send protocolName to toProject:
// the relationship must be active, the direction's protocol whitelist must
// include protocolName, and the direction's per-minute rate limit must not
// be exceeded.
func (c *CrossProjectRouter) Authorize(ctx context.Context, fromProject, toProject, protocolName string) error {
	c.mu.RLock()
	rel, ok := c.relationships[pairKey(fromProject, toProject)]
	c.mu.RUnlock()

	if !ok || rel.Status != RelationshipActive {
		return corerr.New(corerr.Forbidden, "router.Authorize", "no active cross-project relationship")
	}

	dir := rel.AToB
	if fromProject == rel.ProjectB {
		dir = rel.BToA
	}

	if !contains(dir.AllowedProtocols, protocolName) {
		return corerr.New(corerr.Forbidden, "router.Authorize", "protocol not permitted in this direction")
	}

	if dir.MessagesPerMinute > 0 {
		lim := c.limiterFor(fromProject, toProject, dir.MessagesPerMinute)
		ctxResult, err := lim.Get(ctx, fromProject+"->"+toProject)
		if err != nil {
			return fmt.Errorf("router.Authorize: rate limit check failed: %w", err)
		}
		if ctxResult.Reached {
			return corerr.New(corerr.RateLimited, "router.Authorize", "cross-project rate limit exceeded")
		}
	}

	return nil
}

func (c *CrossProjectRouter) limiterFor(fromProject, toProject string, perMinute int) *limiter.Limiter {
	key := fmt.Sprintf("%s->%s", fromProject, toProject)

	c.mu.Lock()
	defer c.mu.Unlock()

	if lim, ok := c.limiters[key]; ok {
		return lim
	}

	rate := limiter.Rate{Period: time.Minute, Limit: int64(perMinute)}
	lim := limiter.New(c.store, rate)
	c.limiters[key] = lim
	return lim
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
