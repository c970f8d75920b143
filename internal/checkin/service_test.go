// internal/checkin/service_test.go
package checkin

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "hackathon-portal/internal/common/errors"
	"hackathon-portal/internal/common/logger"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewService(db, logger.NewTestLogger(t)), mock
}

func expectApplicationLookup(mock sqlmock.Sqlmock, status string) {
	mock.ExpectQuery("SELECT id, status").
		WithArgs("2026-cfg-application", "auth0|abc123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "name"}).
			AddRow("app-1", status, "Ada Lovelace"))
}

func TestCheckInMainEventConfirmsAccepted(t *testing.T) {
	svc, mock := newTestService(t)

	expectApplicationLookup(mock, "accepted")
	mock.ExpectQuery("INSERT INTO check_in_logs").
		WillReturnRows(sqlmock.NewRows([]string{"check_in_time"}).AddRow(time.Now()))
	mock.ExpectExec("UPDATE applications").
		WithArgs("app-1", "confirmed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	log, err := svc.CheckIn(context.Background(), "2026-cfg-application", "auth0|abc123", EventTypeMain)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", log.Name)
	assert.Equal(t, EventTypeMain, log.EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInMealDoesNotTouchStatus(t *testing.T) {
	svc, mock := newTestService(t)

	expectApplicationLookup(mock, "confirmed")
	mock.ExpectQuery("INSERT INTO check_in_logs").
		WillReturnRows(sqlmock.NewRows([]string{"check_in_time"}).AddRow(time.Now()))

	_, err := svc.CheckIn(context.Background(), "2026-cfg-application", "auth0|abc123", "dinner")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "no status update expected for meal scans")
}

func TestCheckInDuplicateScanRefused(t *testing.T) {
	svc, mock := newTestService(t)

	expectApplicationLookup(mock, "confirmed")
	mock.ExpectQuery("INSERT INTO check_in_logs").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := svc.CheckIn(context.Background(), "2026-cfg-application", "auth0|abc123", "dinner")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAlreadySubmitted))
}

func TestCheckInUnknownApplicant(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("SELECT id, status").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "name"}))

	_, err := svc.CheckIn(context.Background(), "2026-cfg-application", "auth0|nobody", EventTypeMain)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestCheckInRequiresEventType(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CheckIn(context.Background(), "2026-cfg-application", "auth0|abc123", "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBadRequest))
}

func TestListLogs(t *testing.T) {
	svc, mock := newTestService(t)

	rows := sqlmock.NewRows([]string{"id", "submitter_id", "name", "event_type", "check_in_time"}).
		AddRow("log-1", "auth0|abc123", "Ada Lovelace", "dinner", time.Now()).
		AddRow("log-2", "auth0|def456", "Bob", "dinner", time.Now())
	mock.ExpectQuery("SELECT id, submitter_id, name, event_type, check_in_time").
		WithArgs("dinner").
		WillReturnRows(rows)

	logs, err := svc.ListLogs(context.Background(), "dinner")
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestDeleteLog(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec("DELETE FROM check_in_logs").
		WithArgs("log-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, svc.DeleteLog(context.Background(), "log-1"))
}

func TestDeleteLogNotFound(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec("DELETE FROM check_in_logs").
		WithArgs("log-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.DeleteLog(context.Background(), "log-404")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}
