package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/agentcomm/comm-server/internal/authtoken"
	"github.com/agentcomm/comm-server/internal/config"
	"github.com/agentcomm/comm-server/internal/discussion"
	"github.com/agentcomm/comm-server/internal/hub"
	"github.com/agentcomm/comm-server/internal/logger"
	"github.com/agentcomm/comm-server/internal/project"
	"github.com/agentcomm/comm-server/internal/protocol"
	"github.com/agentcomm/comm-server/internal/router"
	"github.com/agentcomm/comm-server/internal/session"
	"github.com/agentcomm/comm-server/internal/storage"

	"golang.org/x/time/rate"
)

// defaultQueueCapacity bounds a session's message queue when RegisterSession
// is not given an explicit per-session capacity.
const defaultQueueCapacity = 1000

// wsConnectRate and wsConnectBurst bound how fast one remote address may
// open new hub connections, per spec §4.7's per-IP connect throttle.
const (
	wsConnectRate  = rate.Limit(5)
	wsConnectBurst = 10
)

// NewServer wires every core component together from cfg, grounded on the
// teacher's NewServer: build the storage layer first, then the components
// that depend on it, then the hubs, then the HTTP layer.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	sessions := session.NewManager(backend, defaultQueueCapacity,
		session.WithQueueWarning(cfg.Session.QueueWarningThreshold, func(projectID, sessionID string, size, capacity int) {
			logger.Warn("session queue nearing capacity", "project_id", projectID, "session_id", sessionID, "size", size, "capacity", capacity)
		}),
	)

	projects := project.NewRegistry(sessions)
	protocols := protocol.NewRegistry(backend)
	crossProject := router.NewCrossProjectRouter()
	messages := router.New(sessions, crossProject)
	validator := authtoken.New(cfg.JWT.Secret, projects)

	sweeper := session.NewSweeper(backend, projects,
		cfg.Session.StaleThreshold, cfg.Session.DisconnectThreshold,
		cfg.Session.StaleSweepInterval, cfg.Session.DisconnectSweepInterval,
		nil,
	)

	gin.SetMode(ginMode(cfg))
	engine := gin.New()
	engine.Use(gin.Recovery())

	srv := &Server{
		config:       cfg,
		router:       engine,
		backend:      backend,
		projects:     projects,
		sessions:     sessions,
		protocols:    protocols,
		sweeper:      sweeper,
		messages:     messages,
		crossProject: crossProject,
		validator:    validator,
		meetingHub:   hub.NewMeetingHub(),
		chatHub:      hub.NewChatHub(),
		statusHub:    hub.NewStatusHub(),
		wsThrottle:   hub.NewIPThrottle(wsConnectRate, wsConnectBurst),
		discussions:  make(map[string]*discussion.Coordinator),
	}

	RegisterRoutes(engine, srv)
	return srv, nil
}

func newBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	if cfg.Database.RedisURL == "" {
		return storage.NewMemoryBackend(), nil
	}
	return storage.NewRedisBackend(ctx, cfg.Database.RedisURL)
}

func ginMode(cfg *config.Config) string {
	if cfg.Server.Environment == "production" {
		return gin.ReleaseMode
	}
	return gin.DebugMode
}
