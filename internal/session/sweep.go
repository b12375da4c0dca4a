package session

import (
	"context"
	"time"

	"github.com/agentcomm/comm-server/internal/logger"
	"github.com/agentcomm/comm-server/internal/model"
	"github.com/agentcomm/comm-server/internal/storage"
)

func defaultNow() time.Time { return time.Now() }

// DisconnectFunc is invoked when a session transitions to disconnected, so
// callers can tear down any hub connection still attached to it.
type DisconnectFunc func(projectID, sessionID string)

// Sweeper runs the two background sweeps that drive the session lifecycle:
// active sessions go stale after staleAfter of silence, and stale sessions
// are disconnected (and removed) after disconnectAfter more. Grounded on the
// teacher's algorave/sessions.CleanupService ticker loop, generalized to two
// independent intervals instead of one.
type Sweeper struct {
	backend           storage.Backend
	staleAfter        time.Duration
	disconnectAfter   time.Duration
	staleInterval     time.Duration
	disconnectInterval time.Duration
	onDisconnect      DisconnectFunc
	projects          ProjectLister
}

// ProjectLister supplies the set of project IDs a Sweeper must scan. The
// Project Registry satisfies this without the session package importing it.
type ProjectLister interface {
	ProjectIDs() []string
}

// NewSweeper builds a Sweeper. onDisconnect may be nil.
func NewSweeper(b storage.Backend, projects ProjectLister, staleAfter, disconnectAfter, staleInterval, disconnectInterval time.Duration, onDisconnect DisconnectFunc) *Sweeper {
	return &Sweeper{
		backend:            b,
		staleAfter:         staleAfter,
		disconnectAfter:    disconnectAfter,
		staleInterval:      staleInterval,
		disconnectInterval: disconnectInterval,
		onDisconnect:       onDisconnect,
		projects:           projects,
	}
}

// Start runs both sweep loops until ctx is canceled. Call it from a
// goroutine; it blocks.
func (s *Sweeper) Start(ctx context.Context) {
	logger.Info("starting session sweeper",
		"stale_after", s.staleAfter, "disconnect_after", s.disconnectAfter,
	)

	staleTicker := time.NewTicker(s.staleInterval)
	defer staleTicker.Stop()
	disconnectTicker := time.NewTicker(s.disconnectInterval)
	defer disconnectTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("session sweeper stopped")
			return
		case <-staleTicker.C:
			s.sweepStale(ctx)
		case <-disconnectTicker.C:
			s.sweepDisconnect(ctx)
		}
	}
}

func (s *Sweeper) sweepStale(ctx context.Context) {
	cutoff := time.Now().Add(-s.staleAfter)
	for _, projectID := range s.projects.ProjectIDs() {
		sessions, err := s.backend.ListSessions(ctx, projectID, storage.SessionFilter{Status: model.StatusActive})
		if err != nil {
			logger.ErrorErr(err, "sweep stale: list sessions failed", "project_id", projectID)
			continue
		}
		for _, sess := range sessions {
			if sess.LastSeenAt.After(cutoff) {
				continue
			}
			sess.Status = model.StatusStale
			if err := s.backend.SaveSession(ctx, projectID, sess); err != nil {
				logger.ErrorErr(err, "sweep stale: save session failed", "session_id", sess.ID)
				continue
			}
			logger.Info("session went stale", "project_id", projectID, "session_id", sess.ID)
		}
	}
}

func (s *Sweeper) sweepDisconnect(ctx context.Context) {
	cutoff := time.Now().Add(-s.staleAfter - s.disconnectAfter)
	for _, projectID := range s.projects.ProjectIDs() {
		sessions, err := s.backend.ListSessions(ctx, projectID, storage.SessionFilter{Status: model.StatusStale})
		if err != nil {
			logger.ErrorErr(err, "sweep disconnect: list sessions failed", "project_id", projectID)
			continue
		}
		for _, sess := range sessions {
			if sess.LastSeenAt.After(cutoff) {
				continue
			}
			if s.onDisconnect != nil {
				s.onDisconnect(projectID, sess.ID)
			}
			if err := s.backend.DeleteSession(ctx, projectID, sess.ID); err != nil {
				logger.ErrorErr(err, "sweep disconnect: delete session failed", "session_id", sess.ID)
				continue
			}
			logger.Info("session disconnected", "project_id", projectID, "session_id", sess.ID)
		}
	}
}
