package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentcomm/comm-server/api/rest/httpkit"
	"github.com/agentcomm/comm-server/internal/identify"
	"github.com/agentcomm/comm-server/internal/model"
	"github.com/agentcomm/comm-server/internal/protocol"
	"github.com/agentcomm/comm-server/internal/storage"
)

type registerProtocolRequest struct {
	Name        string          `json:"name" binding:"required"`
	Version     string          `json:"version" binding:"required"`
	Schema      json.RawMessage `json:"schema" binding:"required"`
	Description string          `json:"description"`
}

// RegisterProtocolHandler registers or overwrites a protocol's schema for
// the acting project.
func RegisterProtocolHandler(registry *protocol.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerProtocolRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		def := &model.Definition{
			ProjectID:   identify.ProjectID(c),
			Name:        req.Name,
			Version:     req.Version,
			Schema:      req.Schema,
			Description: req.Description,
		}
		if err := registry.Register(c.Request.Context(), def.ProjectID, def); err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, def)
	}
}

// GetProtocolHandler returns one protocol definition by name/version.
func GetProtocolHandler(registry *protocol.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		def, err := registry.Get(c.Request.Context(), identify.ProjectID(c), c.Param("name"), c.Param("version"))
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, def)
	}
}

// ListProtocolsHandler lists protocols registered for the acting project,
// optionally filtered by name and/or version.
func ListProtocolsHandler(registry *protocol.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := storage.ProtocolFilter{Name: c.Query("name"), Version: c.Query("version")}
		defs, err := registry.List(c.Request.Context(), identify.ProjectID(c), filter)
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"protocols": defs})
	}
}

// DeprecateProtocolHandler marks a protocol version as deprecated without
// removing it.
func DeprecateProtocolHandler(registry *protocol.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := registry.Deprecate(c.Request.Context(), identify.ProjectID(c), c.Param("name"), c.Param("version"))
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// DeleteProtocolHandler removes a protocol definition outright.
func DeleteProtocolHandler(registry *protocol.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := registry.Delete(c.Request.Context(), identify.ProjectID(c), c.Param("name"), c.Param("version"))
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type validatePayloadRequest struct {
	Payload json.RawMessage `json:"payload" binding:"required"`
}

// ValidatePayloadHandler checks payload against a protocol's registered
// JSON Schema without routing it anywhere.
func ValidatePayloadHandler(registry *protocol.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req validatePayloadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := registry.Validate(c.Request.Context(), identify.ProjectID(c), c.Param("name"), c.Param("version"), req.Payload)
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
