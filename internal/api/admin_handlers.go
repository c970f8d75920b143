// internal/api/admin_handlers.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "hackathon-portal/internal/common/errors"
)

// handleAuthCheck confirms the caller is an admin and opens a fresh review
// session, superseding any previous one for the same identity.
func (s *Server) handleAuthCheck(c *gin.Context) {
	identity := identityFrom(c)

	granted, err := s.roles.RolesFor(c.Request.Context(), identity.Subject)
	if err != nil {
		respondError(c, err)
		return
	}
	allRoles := mergeRoles(identity.Roles, granted)

	sess, err := s.sessions.StartSession(c.Request.Context(), identity.Subject)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isAdmin": true, "roles": allRoles, "session": sess})
}

func mergeRoles(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, r := range append(append([]string{}, a...), b...) {
		if !seen[r] {
			seen[r] = true
			merged = append(merged, r)
		}
	}
	return merged
}

// handlePing keeps the session alive while the review tab stays open.
func (s *Server) handlePing(c *gin.Context) {
	identity := identityFrom(c)

	if err := s.sessions.Ping(c.Request.Context(), identity.Subject, c.GetHeader(sessionHeader)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleLogout ends the session and releases its locks.
func (s *Server) handleLogout(c *gin.Context) {
	identity := identityFrom(c)

	if err := s.sessions.EndSession(c.Request.Context(), identity.Subject, c.GetHeader(sessionHeader)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleListApplications serves the applicant table with optional status
// filter and search.
func (s *Server) handleListApplications(c *gin.Context) {
	formKey := c.DefaultQuery("formKey", s.currentFormKey)

	items, err := s.review.List(c.Request.Context(), formKey, c.Query("status"), c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": items, "count": len(items)})
}

// handleGetApplication serves one application with its lock annotation.
// Viewing does not take the lock.
func (s *Server) handleGetApplication(c *gin.Context) {
	identity := identityFrom(c)

	view, err := s.review.Get(c.Request.Context(), identity.Subject, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type acquireLockRequest struct {
	ApplicationID string `json:"applicationId" binding:"required"`
}

// handleAcquireLock is the explicit edit-intent call: the admin opened the
// record for judging, not just viewing.
func (s *Server) handleAcquireLock(c *gin.Context) {
	identity := identityFrom(c)

	var req acquireLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError("applicationId is required"))
		return
	}

	if err := s.review.AcquireLock(c.Request.Context(), identity.Subject, sessionIDFrom(c), req.ApplicationID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleNextApplication pulls the next undecided application off the queue.
func (s *Server) handleNextApplication(c *gin.Context) {
	identity := identityFrom(c)
	formKey := c.DefaultQuery("formKey", s.currentFormKey)

	view, err := s.review.NextPending(c.Request.Context(), identity.Subject, sessionIDFrom(c), formKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type decisionRequest struct {
	ApplicationID string `json:"applicationId" binding:"required"`
	Decision      string `json:"decision" binding:"required"`
}

// handleDecision records accept/reject/pending on a locked application.
func (s *Server) handleDecision(c *gin.Context) {
	identity := identityFrom(c)

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError("applicationId and decision are required"))
		return
	}

	app, err := s.review.Decide(c.Request.Context(), identity.Subject, sessionIDFrom(c), req.ApplicationID, req.Decision)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": app})
}

type releaseLockRequest struct {
	ApplicationID string `json:"applicationId" binding:"required"`
}

// handleReleaseLock gives up the lock on one application without deciding.
func (s *Server) handleReleaseLock(c *gin.Context) {
	identity := identityFrom(c)

	var req releaseLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError("applicationId is required"))
		return
	}

	if err := s.sessions.ReleaseLock(c.Request.Context(), identity.Subject, sessionIDFrom(c), req.ApplicationID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleReleaseLocksBeacon is the page-unload path. Browsers send beacons as
// form posts with no custom headers, so this takes only the session id and
// skips auth; holding a session id proves enough for releasing locks.
func (s *Server) handleReleaseLocksBeacon(c *gin.Context) {
	sessionID := c.PostForm("session_id")
	if sessionID == "" {
		respondError(c, apperrors.NewBadRequestError("session_id is required"))
		return
	}

	released, err := s.sessions.ReleaseAllLocks(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": released})
}

// handleStats serves judging progress with the caller's own counts.
func (s *Server) handleStats(c *gin.Context) {
	identity := identityFrom(c)
	formKey := c.DefaultQuery("formKey", s.currentFormKey)

	stats, err := s.review.Stats(c.Request.Context(), identity.Subject, formKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
