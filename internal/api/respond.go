// internal/api/respond.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "hackathon-portal/internal/common/errors"
)

// respondError renders any error as the portal's error envelope. Non-portal
// errors are masked as a generic 500 so internals never leak to clients.
func respondError(c *gin.Context, err error) {
	perr, ok := apperrors.AsPortalError(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL", "message": "Internal server error"},
		})
		return
	}
	c.JSON(perr.HTTPStatus(), gin.H{"error": perr})
}
