// internal/api/checkin_handlers.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "hackathon-portal/internal/common/errors"
)

type checkInRequest struct {
	UserID    string `json:"userId" binding:"required"`
	EventType string `json:"eventType" binding:"required"`
	FormKey   string `json:"formKey"`
}

// handleCheckIn records one scan for one event slot.
func (s *Server) handleCheckIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError("userId and eventType are required"))
		return
	}
	if req.FormKey == "" {
		req.FormKey = s.currentFormKey
	}

	log, err := s.checkin.CheckIn(c.Request.Context(), req.FormKey, req.UserID, req.EventType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"checkIn": log})
}

// handleListCheckIns serves the scan log, optionally for one event slot.
func (s *Server) handleListCheckIns(c *gin.Context) {
	logs, err := s.checkin.ListLogs(c.Request.Context(), c.Query("eventType"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkIns": logs, "count": len(logs)})
}

// handleDeleteCheckIn undoes a mistaken scan.
func (s *Server) handleDeleteCheckIn(c *gin.Context) {
	if err := s.checkin.DeleteLog(c.Request.Context(), c.Param("logId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
