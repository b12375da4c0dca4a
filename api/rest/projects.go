// Package rest adapts the core packages (project, protocol, session,
// router, negotiator) to gin HTTP handlers. Grounded on the teacher's
// api/rest/<domain>/handlers.go shape: one gin.HandlerFunc-returning
// constructor per endpoint, closing over the dependencies it needs.
package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentcomm/comm-server/api/rest/httpkit"
	"github.com/agentcomm/comm-server/internal/project"
)

type createProjectRequest struct {
	ID          string         `json:"id" binding:"required"`
	Name        string         `json:"name" binding:"required"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
	Config      project.Config `json:"config"`
}

// CreateProjectHandler registers a new project and returns its issued
// default API key, which is shown to the caller exactly once.
func CreateProjectHandler(registry *project.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		p, apiKey, err := registry.CreateProject(req.ID, req.Name, req.Description, req.Tags, req.Config)
		if err != nil {
			httpkit.Fail(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"project": p, "api_key": apiKey})
	}
}

// GetProjectHandler returns a single project by slug.
func GetProjectHandler(registry *project.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := registry.GetProject(c.Param("projectID"))
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// ListProjectsHandler lists discoverable projects, adding inactive ones when
// ?include_inactive=true. Non-discoverable projects are listed only when a
// ?name filter is given.
func ListProjectsHandler(registry *project.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		includeInactive := c.Query("include_inactive") == "true"
		nameFilter := c.Query("name")
		c.JSON(http.StatusOK, gin.H{"projects": registry.ListProjects(includeInactive, nameFilter)})
	}
}

type updateProjectRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Tags        []string        `json:"tags"`
	Config      *project.Config `json:"config"`
}

// UpdateProjectHandler patches mutable project fields.
func UpdateProjectHandler(registry *project.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		p, err := registry.UpdateProject(c.Param("projectID"), func(p *project.Project) {
			if req.Name != nil {
				p.Name = *req.Name
			}
			if req.Description != nil {
				p.Description = *req.Description
			}
			if req.Tags != nil {
				p.Tags = req.Tags
			}
			if req.Config != nil {
				p.Config = *req.Config
			}
		})
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// ArchiveProjectHandler soft-deletes a project.
func ArchiveProjectHandler(registry *project.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := registry.Archive(c.Param("projectID")); err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// RestoreProjectHandler reactivates an archived project.
func RestoreProjectHandler(registry *project.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := registry.Restore(c.Param("projectID")); err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// DeleteProjectHandler permanently removes a project with no active
// sessions.
func DeleteProjectHandler(registry *project.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := registry.DeleteProject(c.Param("projectID")); err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type rotateKeysRequest struct {
	KeyID          string `json:"key_id" binding:"required"`
	GraceSeconds   int    `json:"grace_period_seconds"`
}

// RotateAPIKeyHandler issues a replacement API key, leaving the old one
// valid for the requested grace period.
func RotateAPIKeyHandler(registry *project.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req rotateKeysRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		grace := time.Duration(req.GraceSeconds) * time.Second
		newKey, err := registry.RotateAPIKeys(c.Param("projectID"), req.KeyID, grace)
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"api_key": newKey})
	}
}
