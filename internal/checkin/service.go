// internal/checkin/service.go
package checkin

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	apperrors "hackathon-portal/internal/common/errors"
	"hackathon-portal/internal/common/logger"
	"hackathon-portal/internal/models"
)

// EventTypeMain is the arrival scan. It is the one that flips an accepted
// application to confirmed; meal and workshop scans do not.
const EventTypeMain = "event"

// Service handles day-of check-in scans. One scan per applicant per event
// slot; repeats are refused so a meal line cannot be gamed by rescanning.
type Service struct {
	db  *sql.DB
	log logger.Logger
}

func NewService(db *sql.DB, log logger.Logger) *Service {
	return &Service{db: db, log: log}
}

// CheckIn records a scan of the applicant for one event slot. The applicant
// must have an application on the form; the main event scan confirms an
// accepted application.
func (s *Service) CheckIn(ctx context.Context, formKey, submitterID, eventType string) (*models.CheckInLog, error) {
	if eventType == "" {
		return nil, apperrors.NewBadRequestError("eventType is required")
	}

	var (
		appID  string
		status string
		name   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, status,
		       trim(concat_ws(' ', coalesce(nullif(form_data->>'pref_name', ''), form_data->>'first_name'),
		                           form_data->>'last_name'))
		FROM applications
		WHERE form_key = $1 AND submitter_id = $2`, formKey, submitterID).
		Scan(&appID, &status, &name)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("Application")
	}
	if err != nil {
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}

	log := &models.CheckInLog{
		ID:          uuid.New().String(),
		SubmitterID: submitterID,
		Name:        name.String,
		EventType:   eventType,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO check_in_logs (id, submitter_id, name, event_type)
		VALUES ($1, $2, $3, $4)
		RETURNING check_in_time`,
		log.ID, log.SubmitterID, log.Name, log.EventType).
		Scan(&log.CheckInTime)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, apperrors.NewAlreadyCheckedInError(eventType)
		}
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}

	if eventType == EventTypeMain && status == models.StatusAccepted {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE applications SET status = $2 WHERE id = $1`,
			appID, models.StatusConfirmed); err != nil {
			return nil, apperrors.NewUpstreamFailureError("postgres", err)
		}
	}

	s.log.Info("applicant checked in", map[string]interface{}{
		"submitter_id": submitterID,
		"event_type":   eventType,
	})
	return log, nil
}

// ListLogs returns scans for one event slot, or all scans when eventType is
// empty. Newest first.
func (s *Service) ListLogs(ctx context.Context, eventType string) ([]models.CheckInLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submitter_id, name, event_type, check_in_time
		FROM check_in_logs
		WHERE ($1 = '' OR event_type = $1)
		ORDER BY check_in_time DESC`, eventType)
	if err != nil {
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}
	defer rows.Close()

	logs := make([]models.CheckInLog, 0)
	for rows.Next() {
		var l models.CheckInLog
		if err := rows.Scan(&l.ID, &l.SubmitterID, &l.Name, &l.EventType, &l.CheckInTime); err != nil {
			return nil, apperrors.NewUpstreamFailureError("postgres", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}
	return logs, nil
}

// DeleteLog removes one scan, for undoing a mistaken check-in. It does not
// un-confirm the application.
func (s *Service) DeleteLog(ctx context.Context, logID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM check_in_logs WHERE id = $1`, logID)
	if err != nil {
		return apperrors.NewUpstreamFailureError("postgres", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("Check-in log")
	}
	return nil
}
