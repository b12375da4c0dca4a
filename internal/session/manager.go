// Package session implements the Session Manager (spec §4.4): registration,
// lookup, heartbeat renewal, and the active -> stale -> disconnected
// lifecycle. Grounded on the teacher's internal/sessions.Manager, generalized
// from a single in-process map to a Backend-delegated, per-project store.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/agentcomm/comm-server/internal/corerr"
	"github.com/agentcomm/comm-server/internal/logger"
	"github.com/agentcomm/comm-server/internal/model"
	"github.com/agentcomm/comm-server/internal/storage"
)

// QueueWarningFunc is invoked when a session's queue crosses the configured
// warning threshold, so callers can surface it (metrics, logs, a hub
// broadcast) without the Manager knowing what "surfacing" means.
type QueueWarningFunc func(projectID, sessionID string, size, capacity int)

// queueWarningRate and queueWarningBurst throttle repeat warnings for the
// same session the way the teacher's internal/llm clients throttle outbound
// API calls with rate.NewLimiter — a session sitting above the threshold
// across many Enqueue calls should log once every few seconds, not once per
// message.
const (
	queueWarningRate  = rate.Limit(1.0 / 10.0) // one warning per 10s per session
	queueWarningBurst = 1
)

// Manager is the Session Manager. One instance is shared across every
// project; all lookups are scoped by projectID.
type Manager struct {
	backend          storage.Backend
	defaultQueueCap  int
	queueWarningFrac float64
	onQueueWarning   QueueWarningFunc

	warningLimitersMu sync.Mutex
	warningLimiters   map[string]*rate.Limiter // sessionID -> limiter
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithQueueWarning registers a callback fired when an enqueue leaves a
// session's queue at or above frac of its capacity, at most once per 10s
// per session.
func WithQueueWarning(frac float64, fn QueueWarningFunc) Option {
	return func(m *Manager) {
		m.queueWarningFrac = frac
		m.onQueueWarning = fn
	}
}

// NewManager builds a Manager backed by b. defaultQueueCap bounds a new
// session's message queue unless RegisterSession overrides it.
func NewManager(b storage.Backend, defaultQueueCap int, opts ...Option) *Manager {
	m := &Manager{
		backend:         b,
		defaultQueueCap: defaultQueueCap,
		warningLimiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterSession creates a new active session for agentName under
// projectID, advertising the given capabilities.
func (m *Manager) RegisterSession(ctx context.Context, projectID, agentName string, caps model.Capabilities, queueCap int) (*model.Session, error) {
	if agentName == "" {
		return nil, corerr.New(corerr.InvalidInput, "session.RegisterSession", "agent_name is required")
	}

	if queueCap <= 0 {
		queueCap = m.defaultQueueCap
	}

	now := nowFunc()
	s := &model.Session{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		AgentName:    agentName,
		Capabilities: caps,
		Status:       model.StatusActive,
		QueueCap:     queueCap,
		CreatedAt:    now,
		LastSeenAt:   now,
		Metadata:     map[string]string{},
	}

	if err := m.backend.SaveSession(ctx, projectID, s); err != nil {
		return nil, fmt.Errorf("session.RegisterSession: %w", err)
	}

	logger.Info("session registered", "project_id", projectID, "session_id", s.ID, "agent_name", agentName)
	return s, nil
}

// GetSession looks up a session by ID within projectID.
func (m *Manager) GetSession(ctx context.Context, projectID, sessionID string) (*model.Session, error) {
	s, err := m.backend.GetSession(ctx, projectID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session.GetSession: %w", err)
	}
	return s, nil
}

// ListSessions returns every session under projectID matching filter.
func (m *Manager) ListSessions(ctx context.Context, projectID string, filter storage.SessionFilter) ([]*model.Session, error) {
	sessions, err := m.backend.ListSessions(ctx, projectID, filter)
	if err != nil {
		return nil, fmt.Errorf("session.ListSessions: %w", err)
	}
	return sessions, nil
}

// ActiveSessionCount reports how many active sessions exist under
// projectID, satisfying project.SessionCounter so the Project Registry can
// refuse to delete a project still in use.
func (m *Manager) ActiveSessionCount(projectID string) int {
	sessions, err := m.backend.ListSessions(context.Background(), projectID, storage.SessionFilter{Status: model.StatusActive})
	if err != nil {
		return 0
	}
	return len(sessions)
}

// Heartbeat renews a session's LastSeenAt and, if it had gone stale,
// restores it to active. Heartbeating a disconnected session fails with
// InvalidPhase: a disconnected session must be re-registered.
func (m *Manager) Heartbeat(ctx context.Context, projectID, sessionID string) (*model.Session, error) {
	s, err := m.backend.GetSession(ctx, projectID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session.Heartbeat: %w", err)
	}

	if s.Status == model.StatusDisconnected {
		return nil, corerr.New(corerr.InvalidPhase, "session.Heartbeat", "session is disconnected, re-register instead")
	}

	s.Status = model.StatusActive
	s.LastSeenAt = nowFunc()

	if err := m.backend.SaveSession(ctx, projectID, s); err != nil {
		return nil, fmt.Errorf("session.Heartbeat: %w", err)
	}
	return s, nil
}

// DeregisterSession removes a session and its queue outright, regardless of
// status. Used for explicit client disconnects, distinct from the sweep's
// inactivity-driven transitions.
func (m *Manager) DeregisterSession(ctx context.Context, projectID, sessionID string) error {
	if err := m.backend.DeleteSession(ctx, projectID, sessionID); err != nil {
		return fmt.Errorf("session.DeregisterSession: %w", err)
	}

	m.warningLimitersMu.Lock()
	delete(m.warningLimiters, sessionID)
	m.warningLimitersMu.Unlock()

	logger.Info("session deregistered", "project_id", projectID, "session_id", sessionID)
	return nil
}

// Enqueue pushes msg onto sessionID's queue, rejecting with QueueFull once
// the session's configured capacity is reached, and fires the queue warning
// callback (rate-limited per session) once the resulting size crosses the
// configured fraction of capacity.
func (m *Manager) Enqueue(ctx context.Context, projectID, sessionID string, msg *model.Message) (int, error) {
	s, err := m.backend.GetSession(ctx, projectID, sessionID)
	if err != nil {
		return 0, fmt.Errorf("session.Enqueue: %w", err)
	}

	capacity := s.QueueCap
	if capacity <= 0 {
		capacity = m.defaultQueueCap
	}

	size, err := m.backend.EnqueueMessage(ctx, projectID, sessionID, msg, capacity)
	if err != nil {
		if corerr.Is(err, corerr.QueueFull) {
			return size, err
		}
		return 0, fmt.Errorf("session.Enqueue: %w", err)
	}

	if m.onQueueWarning != nil && m.queueWarningFrac > 0 && capacity > 0 {
		if float64(size) >= m.queueWarningFrac*float64(capacity) && m.warningLimiterFor(sessionID).Allow() {
			m.onQueueWarning(projectID, sessionID, size, capacity)
		}
	}

	return size, nil
}

// warningLimiterFor returns sessionID's queue-warning limiter, creating one
// on first use.
func (m *Manager) warningLimiterFor(sessionID string) *rate.Limiter {
	m.warningLimitersMu.Lock()
	defer m.warningLimitersMu.Unlock()

	lim, ok := m.warningLimiters[sessionID]
	if !ok {
		lim = rate.NewLimiter(queueWarningRate, queueWarningBurst)
		m.warningLimiters[sessionID] = lim
	}
	return lim
}

// Dequeue pops up to limit queued messages for sessionID (limit <= 0 means
// all of them). Messages whose ttl header has elapsed relative to their
// enqueue time are dropped rather than returned, per the queue's ttl
// invariant.
func (m *Manager) Dequeue(ctx context.Context, projectID, sessionID string, limit int) ([]*model.Message, error) {
	msgs, err := m.backend.DequeueMessages(ctx, projectID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("session.Dequeue: %w", err)
	}

	out := msgs[:0]
	now := nowFunc()
	for _, msg := range msgs {
		if ttlExpired(msg, now) {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func ttlExpired(msg *model.Message, now time.Time) bool {
	raw, ok := msg.Headers["ttl"]
	if !ok {
		return false
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil || ttl <= 0 {
		return false
	}
	return now.Sub(msg.EnqueuedAt) > ttl
}

// QueueSize reports how many messages are currently queued for sessionID.
func (m *Manager) QueueSize(ctx context.Context, projectID, sessionID string) (int, error) {
	n, err := m.backend.GetQueueSize(ctx, projectID, sessionID)
	if err != nil {
		return 0, fmt.Errorf("session.QueueSize: %w", err)
	}
	return n, nil
}

// nowFunc is a seam for tests; production always uses wall-clock time.
var nowFunc = defaultNow
