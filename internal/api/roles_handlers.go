// internal/api/roles_handlers.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "hackathon-portal/internal/common/errors"
)

// handleListRoles serves everyone holding at least one role.
func (s *Server) handleListRoles(c *gin.Context) {
	users, err := s.roles.ListUsersWithRoles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type grantRoleRequest struct {
	SubmitterID string `json:"submitterId" binding:"required"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role" binding:"required"`
}

func (s *Server) handleGrantRole(c *gin.Context) {
	var req grantRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError("submitterId and role are required"))
		return
	}

	if err := s.roles.GrantRole(c.Request.Context(), req.SubmitterID, req.Email, req.Name, req.Role); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type revokeRoleRequest struct {
	SubmitterID string `json:"submitterId" binding:"required"`
	Role        string `json:"role" binding:"required"`
}

func (s *Server) handleRevokeRole(c *gin.Context) {
	var req revokeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError("submitterId and role are required"))
		return
	}

	if err := s.roles.RevokeRole(c.Request.Context(), req.SubmitterID, req.Role); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
