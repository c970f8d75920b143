// internal/api/intake_handlers.go
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "hackathon-portal/internal/common/errors"
	"hackathon-portal/internal/intake"
)

// maxResumeBytes caps resume uploads at 10 MiB.
const maxResumeBytes = 10 << 20

// handleSubmit accepts a multipart submission: a "form_data" JSON field plus
// an optional "resume" file part.
func (s *Server) handleSubmit(c *gin.Context) {
	identity := identityFrom(c)
	formKey := c.Param("formKey")

	raw := c.PostForm("form_data")
	if raw == "" {
		respondError(c, apperrors.NewBadRequestError("form_data field is required"))
		return
	}
	var formData map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &formData); err != nil {
		respondError(c, apperrors.NewBadRequestError("form_data is not valid JSON"))
		return
	}

	req := intake.SubmitRequest{
		FormKey:     formKey,
		SubmitterID: identity.Subject,
		Email:       identity.Email,
		FormData:    formData,
	}

	if fileHeader, err := c.FormFile("resume"); err == nil {
		if fileHeader.Size > maxResumeBytes {
			respondError(c, apperrors.NewBadRequestError("resume exceeds 10MB limit"))
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			respondError(c, apperrors.NewBadRequestError("resume file unreadable"))
			return
		}
		defer file.Close()
		req.Resume = &intake.ResumeUpload{
			Filename:    fileHeader.Filename,
			Size:        fileHeader.Size,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Reader:      file,
		}
	}

	app, err := s.intake.Submit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"application": app})
}

// handleApplicationStatus returns the caller's own submission state.
func (s *Server) handleApplicationStatus(c *gin.Context) {
	identity := identityFrom(c)

	app, err := s.intake.GetStatus(c.Request.Context(), c.Param("formKey"), identity.Subject)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": app})
}

// handleFormStatus reports whether the form is open for this caller. The
// allow-list override keys off the token email.
func (s *Server) handleFormStatus(c *gin.Context) {
	identity := identityFrom(c)

	open, err := s.intake.FormStatus(c.Request.Context(), c.Param("formKey"), identity.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"formKey": c.Param("formKey"), "open": open})
}
