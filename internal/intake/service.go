// internal/intake/service.go
package intake

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/lib/pq"

	apperrors "hackathon-portal/internal/common/errors"
	"hackathon-portal/internal/common/logger"
	"hackathon-portal/internal/common/metrics"
	"hackathon-portal/internal/common/storage"
	"hackathon-portal/internal/forms"
	"hackathon-portal/internal/models"
)

// Service handles applicant-facing intake: submission, status lookup, and
// the public form open/closed probe.
type Service struct {
	db    *sql.DB
	blobs storage.BlobStore
	reg   *forms.Registry
	log   logger.Logger
}

func NewService(db *sql.DB, blobs storage.BlobStore, reg *forms.Registry, log logger.Logger) *Service {
	return &Service{db: db, blobs: blobs, reg: reg, log: log}
}

// ResumeUpload is the optional resume file attached to a submission.
type ResumeUpload struct {
	Filename    string
	Size        int64
	ContentType string
	Reader      io.Reader
}

// SubmitRequest is one submission attempt by an authenticated applicant.
type SubmitRequest struct {
	FormKey     string
	SubmitterID string
	Email       string
	FormData    map[string]interface{}
	Resume      *ResumeUpload
}

// Submit validates and stores one application. The resume upload happens
// before the row insert; if the insert then fails the blob is deleted
// best-effort so storage does not accumulate orphans.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Application, error) {
	// Unknown form keys are rejected before any store round trip.
	if !s.reg.Known(req.FormKey) {
		return nil, apperrors.NewNotFoundError("Form")
	}

	form, err := s.reg.Policy(ctx, req.FormKey)
	if err != nil {
		return nil, err
	}
	if !forms.IsOpenFor(form, req.Email) {
		metrics.SubmissionsTotal.WithLabelValues(req.FormKey, "closed").Inc()
		return nil, apperrors.NewFormClosedError(req.FormKey)
	}

	if err := s.reg.Validate(req.FormKey, req.FormData); err != nil {
		metrics.SubmissionsTotal.WithLabelValues(req.FormKey, "invalid").Inc()
		return nil, err
	}

	dup, err := s.hasExisting(ctx, req.FormKey, req.SubmitterID, req.Email)
	if err != nil {
		return nil, err
	}
	if dup {
		metrics.SubmissionsTotal.WithLabelValues(req.FormKey, "duplicate").Inc()
		return nil, apperrors.NewAlreadySubmittedError(req.FormKey)
	}

	appID := uuid.New().String()

	resumeKey := ""
	if req.Resume != nil {
		resumeKey = fmt.Sprintf("%s/%s/%s/%s",
			req.FormKey, req.SubmitterID, appID, path.Base(req.Resume.Filename))
		if err := s.blobs.Upload(ctx, resumeKey, req.Resume.Reader, req.Resume.Size, req.Resume.ContentType); err != nil {
			return nil, apperrors.NewUpstreamFailureError("blobstore", err)
		}
	}

	app, err := s.insert(ctx, appID, req, resumeKey)
	if err != nil {
		if resumeKey != "" {
			if delErr := s.blobs.Delete(ctx, resumeKey); delErr != nil {
				s.log.Warn("failed to clean up resume after insert failure", map[string]interface{}{
					"resume_key": resumeKey,
					"error":      delErr.Error(),
				})
			}
		}
		return nil, err
	}

	metrics.SubmissionsTotal.WithLabelValues(req.FormKey, "accepted").Inc()
	s.log.Info("application submitted", map[string]interface{}{
		"application_id": app.ID,
		"form_key":       app.FormKey,
	})
	return app, nil
}

func (s *Service) hasExisting(ctx context.Context, formKey, submitterID, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM applications
			WHERE form_key = $1 AND (submitter_id = $2 OR lower(email) = lower($3))
		)`, formKey, submitterID, email).Scan(&exists)
	if err != nil {
		return false, apperrors.NewUpstreamFailureError("postgres", err)
	}
	return exists, nil
}

func (s *Service) insert(ctx context.Context, appID string, req SubmitRequest, resumeKey string) (*models.Application, error) {
	payload, err := json.Marshal(req.FormData)
	if err != nil {
		return nil, apperrors.NewBadRequestError("form data not serializable")
	}

	app := &models.Application{
		ID:          appID,
		FormKey:     req.FormKey,
		SubmitterID: req.SubmitterID,
		Email:       req.Email,
		FormData:    req.FormData,
		ResumeKey:   resumeKey,
		Status:      models.StatusPending,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO applications (id, form_key, submitter_id, email, form_data, resume_key, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		app.ID, app.FormKey, app.SubmitterID, app.Email, payload, app.ResumeKey, app.Status).
		Scan(&app.CreatedAt)
	if err != nil {
		// Two tabs racing past the duplicate probe land here.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			metrics.SubmissionsTotal.WithLabelValues(req.FormKey, "duplicate").Inc()
			return nil, apperrors.NewAlreadySubmittedError(req.FormKey)
		}
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}

	return app, nil
}

// GetStatus returns the caller's own application for the form, answers
// included so the status page can show what was submitted. NOT_FOUND means
// not yet submitted.
func (s *Service) GetStatus(ctx context.Context, formKey, submitterID string) (*models.Application, error) {
	var app models.Application
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, form_key, submitter_id, email, form_data, status, created_at, decided_at
		FROM applications
		WHERE form_key = $1 AND submitter_id = $2`, formKey, submitterID).
		Scan(&app.ID, &app.FormKey, &app.SubmitterID, &app.Email, &payload, &app.Status, &app.CreatedAt, &app.DecidedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("Application")
	}
	if err != nil {
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &app.FormData); err != nil {
			return nil, apperrors.NewUpstreamFailureError("postgres", err)
		}
	}
	return &app, nil
}

// FormStatus reports whether the form accepts submissions for this caller,
// allow-list override included. The email may be empty for anonymous probes.
func (s *Service) FormStatus(ctx context.Context, formKey, email string) (bool, error) {
	if !s.reg.Known(formKey) {
		return false, apperrors.NewNotFoundError("Form")
	}

	form, err := s.reg.Policy(ctx, formKey)
	if err != nil {
		return false, err
	}
	return forms.IsOpenFor(form, email), nil
}
