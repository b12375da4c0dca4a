package main

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/agentcomm/comm-server/api/rest"
	apiws "github.com/agentcomm/comm-server/api/websocket"
	"github.com/agentcomm/comm-server/internal/identify"
)

// RegisterRoutes wires every REST and WebSocket route onto engine, grouped
// the way the teacher's RegisterRoutes groups each domain package under
// /api/v1.
func RegisterRoutes(engine *gin.Engine, s *Server) {
	engine.Use(corsMiddleware(s))
	engine.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	v1 := engine.Group("/api/v1")
	v1.Use(identify.Middleware(s.projects, s.projects))

	projects := v1.Group("/projects")
	{
		projects.POST("", rest.CreateProjectHandler(s.projects))
		projects.GET("", rest.ListProjectsHandler(s.projects))
		projects.GET("/:projectID", rest.GetProjectHandler(s.projects))
		projects.PATCH("/:projectID", rest.UpdateProjectHandler(s.projects))
		projects.POST("/:projectID/archive", rest.ArchiveProjectHandler(s.projects))
		projects.POST("/:projectID/restore", rest.RestoreProjectHandler(s.projects))
		projects.DELETE("/:projectID", rest.DeleteProjectHandler(s.projects))
		projects.POST("/:projectID/api-keys/rotate", rest.RotateAPIKeyHandler(s.projects))

		projects.POST("/:projectID/relationships", rest.ProposeRelationshipHandler(s.crossProject))
		projects.POST("/:projectID/relationships/:otherProjectID/activate", rest.ActivateRelationshipHandler(s.crossProject))
		projects.POST("/:projectID/relationships/:otherProjectID/suspend", rest.SuspendRelationshipHandler(s.crossProject))
		projects.DELETE("/:projectID/relationships/:otherProjectID", rest.RevokeRelationshipHandler(s.crossProject))
	}

	protocols := v1.Group("/protocols")
	{
		protocols.POST("", rest.RegisterProtocolHandler(s.protocols))
		protocols.GET("", rest.ListProtocolsHandler(s.protocols))
		protocols.GET("/:name/:version", rest.GetProtocolHandler(s.protocols))
		protocols.POST("/:name/:version/deprecate", rest.DeprecateProtocolHandler(s.protocols))
		protocols.DELETE("/:name/:version", rest.DeleteProtocolHandler(s.protocols))
		protocols.POST("/:name/:version/validate", rest.ValidatePayloadHandler(s.protocols))
	}

	sessions := v1.Group("/sessions")
	{
		sessions.POST("", rest.RegisterSessionHandler(s.sessions))
		sessions.GET("", rest.ListSessionsHandler(s.sessions))
		sessions.GET("/:sessionID", rest.GetSessionHandler(s.sessions))
		sessions.POST("/:sessionID/heartbeat", rest.HeartbeatHandler(s.sessions))
		sessions.DELETE("/:sessionID", rest.DeregisterSessionHandler(s.sessions))
		sessions.GET("/:sessionID/messages", rest.DequeueMessagesHandler(s.sessions))
	}

	messages := v1.Group("/messages")
	{
		messages.POST("/send", rest.SendMessageHandler(s.messages))
		messages.POST("/broadcast", rest.BroadcastMessageHandler(s.messages))
		messages.GET("/dead-letters", rest.DeadLettersHandler(s.messages))
		messages.DELETE("/dead-letters", rest.ClearDeadLettersHandler(s.messages))
	}

	ws := engine.Group("/ws")
	{
		ws.GET("/meetings/:meetingID", apiws.MeetingConnectHandler(s.meetingHub, s.validator, s.wsThrottle))
		ws.GET("/chat/:roomID", apiws.ChatConnectHandler(s.chatHub, s.validator, s.wsThrottle))
		ws.GET("/status", apiws.StatusConnectHandler(s.statusHub, s.validator, s.wsThrottle))
	}
}

// corsMiddleware builds one server-wide CORS policy from the configured
// CORS.AllowedOrigins (all origins when empty), using gin-contrib/cors the way the teacher's own
// CORSMiddleware wires it for its SPA frontend.
func corsMiddleware(s *Server) gin.HandlerFunc {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = s.config.CORS.AllowedOrigins
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowCredentials = !corsCfg.AllowAllOrigins
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-Project-ID", "X-API-Key")
	return cors.New(corsCfg)
}
