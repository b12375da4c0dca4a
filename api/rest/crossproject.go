package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentcomm/comm-server/api/rest/httpkit"
	"github.com/agentcomm/comm-server/internal/identify"
	"github.com/agentcomm/comm-server/internal/router"
)

type proposeRelationshipRequest struct {
	TargetProjectID string                  `json:"target_project_id" binding:"required"`
	AToB            router.DirectionConfig  `json:"a_to_b"`
	BToA            router.DirectionConfig  `json:"b_to_a"`
}

// ProposeRelationshipHandler registers a pending cross-project
// relationship initiated by the acting project.
func ProposeRelationshipHandler(cp *router.CrossProjectRouter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req proposeRelationshipRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		from := identify.ProjectID(c)
		rel, err := cp.Propose(from, req.TargetProjectID, from, req.AToB, req.BToA)
		if err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, rel)
	}
}

// ActivateRelationshipHandler accepts a pending relationship.
func ActivateRelationshipHandler(cp *router.CrossProjectRouter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := cp.Activate(identify.ProjectID(c), c.Param("otherProjectID")); err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// SuspendRelationshipHandler temporarily halts an active relationship.
func SuspendRelationshipHandler(cp *router.CrossProjectRouter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := cp.Suspend(identify.ProjectID(c), c.Param("otherProjectID")); err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// RevokeRelationshipHandler permanently terminates a relationship.
func RevokeRelationshipHandler(cp *router.CrossProjectRouter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := cp.Revoke(identify.ProjectID(c), c.Param("otherProjectID")); err != nil {
			httpkit.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
