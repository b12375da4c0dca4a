package main

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentcomm/comm-server/internal/authtoken"
	"github.com/agentcomm/comm-server/internal/config"
	"github.com/agentcomm/comm-server/internal/discussion"
	"github.com/agentcomm/comm-server/internal/hub"
	"github.com/agentcomm/comm-server/internal/project"
	"github.com/agentcomm/comm-server/internal/protocol"
	"github.com/agentcomm/comm-server/internal/router"
	"github.com/agentcomm/comm-server/internal/session"
	"github.com/agentcomm/comm-server/internal/storage"
)

// Server holds every wired dependency the API layer needs, the way the
// teacher's cmd/server.Server bundles repos, hubs, and background services
// behind one struct passed into RegisterRoutes.
type Server struct {
	config *config.Config
	router *gin.Engine

	backend  storage.Backend
	projects *project.Registry
	sessions *session.Manager
	protocols *protocol.Registry
	sweeper  *session.Sweeper
	messages *router.Router
	crossProject *router.CrossProjectRouter
	validator *authtoken.Validator

	meetingHub *hub.MeetingHub
	chatHub    *hub.ChatHub
	statusHub  *hub.StatusHub
	wsThrottle *hub.IPThrottle

	discussionsMu sync.Mutex
	discussions   map[string]*discussion.Coordinator
}

// discussionFor returns the Coordinator for meetingID, creating one the
// first time a meeting is referenced.
func (s *Server) discussionFor(meetingID string) *discussion.Coordinator {
	s.discussionsMu.Lock()
	defer s.discussionsMu.Unlock()

	if c, ok := s.discussions[meetingID]; ok {
		return c
	}

	timeout := time.Duration(s.config.Discussion.DefaultTimeoutSeconds) * time.Second
	c := discussion.New(meetingID, s.meetingHub, s.meetingHub, timeout, s.config.Discussion.ConsensusThreshold)
	s.discussions[meetingID] = c
	return c
}
