// internal/review/service.go
package review

import (
	"context"
	"database/sql"
	"encoding/json"

	apperrors "hackathon-portal/internal/common/errors"
	"hackathon-portal/internal/common/logger"
	"hackathon-portal/internal/common/metrics"
	"hackathon-portal/internal/common/storage"
	"hackathon-portal/internal/models"
	"hackathon-portal/internal/notify"
	"hackathon-portal/internal/session"
)

// Decision values accepted by Decide. "pending" is the deferral decision:
// it clears any prior decision and sends the application to the back of the
// judging queue.
const (
	DecisionAccepted = models.StatusAccepted
	DecisionRejected = models.StatusRejected
	DecisionPending  = models.StatusPending
)

// Service is the admin review surface: the applicant table, the one-at-a-time
// judging queue, and decision recording. All mutations on a single
// application go through the Redis review lock.
type Service struct {
	db     *sql.DB
	locks  *session.Manager
	blobs  storage.BlobStore
	mailer notify.Mailer
	log    logger.Logger
}

func NewService(db *sql.DB, locks *session.Manager, blobs storage.BlobStore, mailer notify.Mailer, log logger.Logger) *Service {
	return &Service{db: db, locks: locks, blobs: blobs, mailer: mailer, log: log}
}

// ApplicationView is one application with its live lock annotation, as shown
// on the single-application review page.
type ApplicationView struct {
	Application *models.Application `json:"application"`
	Lock        *models.LockState   `json:"lock"`
	LockedByMe  bool                `json:"lockedByMe"`
}

// nextCandidateLimit bounds how many queue heads one NextPending call will
// race other admins for before giving up.
const nextCandidateLimit = 20

// List returns the applicant table for a form, optionally filtered by status
// and by a case-insensitive search over name, email, school, major, and
// country. Newest first.
func (s *Service) List(ctx context.Context, formKey, status, search string) ([]models.ApplicationListItem, error) {
	if status != "" && !models.ValidStatus(status) {
		return nil, apperrors.NewBadRequestError("unknown status filter: " + status)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, created_at, decided_by, email,
		       form_data->>'first_name', form_data->>'last_name', form_data->>'pref_name',
		       form_data->>'university', form_data->>'major',
		       form_data->>'graduation_year', form_data->>'country'
		FROM applications
		WHERE form_key = $1
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR
		       form_data->>'first_name' ILIKE '%' || $3 || '%' OR
		       form_data->>'last_name'  ILIKE '%' || $3 || '%' OR
		       form_data->>'pref_name'  ILIKE '%' || $3 || '%' OR
		       email                    ILIKE '%' || $3 || '%' OR
		       form_data->>'university' ILIKE '%' || $3 || '%' OR
		       form_data->>'major'      ILIKE '%' || $3 || '%' OR
		       form_data->>'country'    ILIKE '%' || $3 || '%')
		ORDER BY created_at DESC`, formKey, status, search)
	if err != nil {
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}
	defer rows.Close()

	items := make([]models.ApplicationListItem, 0)
	for rows.Next() {
		var (
			item      models.ApplicationListItem
			createdAt sql.NullTime
			decidedBy, firstName, lastName, prefName,
			university, major, gradYear, country sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.Status, &createdAt, &decidedBy, &item.Email,
			&firstName, &lastName, &prefName, &university, &major, &gradYear, &country); err != nil {
			return nil, apperrors.NewUpstreamFailureError("postgres", err)
		}
		if createdAt.Valid {
			item.CreatedAt = createdAt.Time.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		item.DecidedBy = decidedBy.String
		item.FirstName = firstName.String
		item.LastName = lastName.String
		item.PrefName = prefName.String
		item.University = university.String
		item.Major = major.String
		item.GraduationYear = gradYear.String
		item.Country = country.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}
	return items, nil
}

// Get loads one application for review with its lock annotation. Viewing
// never takes the lock; AcquireLock is the explicit edit-intent call.
func (s *Service) Get(ctx context.Context, identity, appID string) (*ApplicationView, error) {
	app, err := s.load(ctx, appID)
	if err != nil {
		return nil, err
	}

	state, err := s.locks.LockState(ctx, appID)
	if err != nil {
		return nil, err
	}

	s.attachResumeURL(ctx, app)
	return &ApplicationView{
		Application: app,
		Lock:        state,
		LockedByMe:  state.Locked && state.HolderIdentity == identity,
	}, nil
}

// AcquireLock takes the review lock on one application for editing.
func (s *Service) AcquireLock(ctx context.Context, identity, sessionID, appID string) error {
	err := s.locks.AcquireLock(ctx, identity, sessionID, appID)
	if apperrors.IsCode(err, apperrors.ErrCodeLockConflict) {
		metrics.LockConflictsTotal.Inc()
	}
	return err
}

// NextPending hands the caller the oldest undecided application no other
// live session is reviewing, taking the lock on it. Deferred applications
// sort behind never-touched ones. NOT_FOUND means the queue is drained.
func (s *Service) NextPending(ctx context.Context, identity, sessionID, formKey string) (*ApplicationView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM applications
		WHERE form_key = $1 AND status = $2
		ORDER BY locked_at ASC NULLS FIRST, created_at ASC
		LIMIT $3`, formKey, models.StatusPending, nextCandidateLimit)
	if err != nil {
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}
	defer rows.Close()

	var candidates []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewUpstreamFailureError("postgres", err)
		}
		candidates = append(candidates, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}

	for _, id := range candidates {
		err := s.locks.AcquireLock(ctx, identity, sessionID, id)
		if apperrors.IsCode(err, apperrors.ErrCodeLockConflict) {
			metrics.LockConflictsTotal.Inc()
			continue
		}
		if err != nil {
			return nil, err
		}

		app, err := s.load(ctx, id)
		if err != nil {
			// Decided out from under us between the query and the lock.
			if relErr := s.locks.ReleaseLock(ctx, identity, sessionID, id); relErr != nil {
				s.log.Warn("failed to release lock on vanished application", map[string]interface{}{
					"application_id": id,
					"error":          relErr.Error(),
				})
			}
			if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
				continue
			}
			return nil, err
		}

		s.attachResumeURL(ctx, app)
		return &ApplicationView{
			Application: app,
			Lock:        &models.LockState{Locked: true, HolderIdentity: identity},
			LockedByMe:  true,
		}, nil
	}

	return nil, apperrors.NewNotFoundError("Pending application")
}

// Decide records a decision on a locked application and releases the lock.
// "pending" defers: the decision fields clear and the application re-enters
// the queue behind everything else.
func (s *Service) Decide(ctx context.Context, identity, sessionID, appID, decision string) (*models.Application, error) {
	switch decision {
	case DecisionAccepted, DecisionRejected, DecisionPending:
	default:
		return nil, apperrors.NewBadRequestError("unknown decision: " + decision)
	}

	// Taking the lock first makes decide safe to call without a prior Get.
	if err := s.locks.AcquireLock(ctx, identity, sessionID, appID); err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeLockConflict) {
			metrics.LockConflictsTotal.Inc()
		}
		return nil, err
	}

	var res sql.Result
	var err error
	if decision == DecisionPending {
		res, err = s.db.ExecContext(ctx, `
			UPDATE applications
			SET status = $2, decided_by = NULL, decided_at = NULL, locked_at = now()
			WHERE id = $1`, appID, models.StatusPending)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE applications
			SET status = $2, decided_by = $3, decided_at = now()
			WHERE id = $1`, appID, decision, identity)
	}
	if err != nil {
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.NewNotFoundError("Application")
	}

	if err := s.locks.ReleaseLock(ctx, identity, sessionID, appID); err != nil {
		s.log.Warn("failed to release lock after decision", map[string]interface{}{
			"application_id": appID,
			"error":          err.Error(),
		})
	}

	metrics.DecisionsTotal.WithLabelValues(decision).Inc()
	s.log.Info("decision recorded", map[string]interface{}{
		"application_id": appID,
		"decision":       decision,
		"decided_by":     identity,
	})

	app, err := s.load(ctx, appID)
	if err != nil {
		return nil, err
	}

	// Mail is best-effort; a provider outage must not undo the decision.
	if decision != DecisionPending {
		name, _ := app.FormData["first_name"].(string)
		if mailErr := s.mailer.SendDecisionEmail(ctx, app.Email, name, app.FormKey, decision); mailErr != nil {
			s.log.Warn("failed to send decision email", map[string]interface{}{
				"application_id": appID,
				"error":          mailErr.Error(),
			})
		}
	}

	return app, nil
}

// Stats aggregates judging progress for a form, with the caller's own
// accept/reject counts broken out. Confirmed applicants count as accepted.
func (s *Service) Stats(ctx context.Context, identity, formKey string) (*models.ReviewStats, error) {
	var stats models.ReviewStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status IN ('accepted', 'confirmed')),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE status IN ('accepted', 'confirmed') AND decided_by = $2),
			COUNT(*) FILTER (WHERE status = 'rejected' AND decided_by = $2)
		FROM applications
		WHERE form_key = $1`, formKey, identity).
		Scan(&stats.TotalPending, &stats.TotalAccepted, &stats.TotalRejected,
			&stats.UserAccepted, &stats.UserRejected)
	if err != nil {
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}
	return &stats, nil
}

func (s *Service) load(ctx context.Context, appID string) (*models.Application, error) {
	var (
		app       models.Application
		payload   []byte
		resumeKey sql.NullString
		decidedBy sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, form_key, submitter_id, email, form_data, resume_key, status,
		       decided_by, decided_at, created_at
		FROM applications
		WHERE id = $1`, appID).
		Scan(&app.ID, &app.FormKey, &app.SubmitterID, &app.Email, &payload, &resumeKey,
			&app.Status, &decidedBy, &app.DecidedAt, &app.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("Application")
	}
	if err != nil {
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}

	app.ResumeKey = resumeKey.String
	app.DecidedBy = decidedBy.String
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &app.FormData); err != nil {
			return nil, apperrors.NewUpstreamFailureError("postgres", err)
		}
	}
	return &app, nil
}

// attachResumeURL signs a download link for the stored resume. A signing
// failure degrades to no link rather than failing the whole view.
func (s *Service) attachResumeURL(ctx context.Context, app *models.Application) {
	if app.ResumeKey == "" {
		return
	}
	url, err := s.blobs.PresignedURL(ctx, app.ResumeKey)
	if err != nil {
		s.log.Warn("failed to presign resume URL", map[string]interface{}{
			"application_id": app.ID,
			"error":          err.Error(),
		})
		return
	}
	app.ResumeURL = url
}
