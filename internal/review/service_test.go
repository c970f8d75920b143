// internal/review/service_test.go
package review

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "hackathon-portal/internal/common/errors"
	"hackathon-portal/internal/common/logger"
	"hackathon-portal/internal/notify"
	"hackathon-portal/internal/session"
)

type fakeBlobStore struct{}

func (fakeBlobStore) Upload(context.Context, string, io.Reader, int64, string) error { return nil }
func (fakeBlobStore) PresignedURL(_ context.Context, key string) (string, error) {
	return "https://blobs.test/" + key + "?sig=abc", nil
}
func (fakeBlobStore) Delete(context.Context, string) error { return nil }

type testEnv struct {
	svc   *Service
	mock  sqlmock.Sqlmock
	locks *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	locks := session.NewManager(rdb, 30*time.Minute, 15*time.Minute)

	return &testEnv{
		svc:   NewService(db, locks, fakeBlobStore{}, notify.NoopMailer{}, logger.NewTestLogger(t)),
		mock:  mock,
		locks: locks,
	}
}

func (e *testEnv) startSession(t *testing.T, identity string) string {
	t.Helper()
	sess, err := e.locks.StartSession(context.Background(), identity)
	require.NoError(t, err)
	return sess.SessionID
}

func appColumns() []string {
	return []string{"id", "form_key", "submitter_id", "email", "form_data", "resume_key",
		"status", "decided_by", "decided_at", "created_at"}
}

func appRow(id, status, resumeKey string) *sqlmock.Rows {
	return sqlmock.NewRows(appColumns()).
		AddRow(id, "2026-cfg-application", "auth0|"+id, id+"@duke.edu",
			[]byte(`{"first_name":"Ada","university":"Duke University"}`),
			resumeKey, status, nil, nil, time.Now())
}

func TestListWithSearchAndStatusFilter(t *testing.T) {
	env := newTestEnv(t)

	rows := sqlmock.NewRows([]string{"id", "status", "created_at", "decided_by", "email",
		"first_name", "last_name", "pref_name", "university", "major", "graduation_year", "country"}).
		AddRow("app-1", "pending", time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC), nil,
			"ada@duke.edu", "Ada", "Lovelace", nil, "Duke University", "CS", "2027", "United States")
	env.mock.ExpectQuery("SELECT id, status, created_at, decided_by, email").
		WithArgs("2026-cfg-application", "pending", "duke").
		WillReturnRows(rows)

	items, err := env.svc.List(context.Background(), "2026-cfg-application", "pending", "duke")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Ada", items[0].FirstName)
	assert.Equal(t, "Duke University", items[0].University)
	assert.Empty(t, items[0].PrefName)
	assert.Equal(t, "2026-01-10T12:00:00Z", items[0].CreatedAt)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestListRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.List(context.Background(), "2026-cfg-application", "archived", "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBadRequest))
}

func TestGetDoesNotTakeLock(t *testing.T) {
	env := newTestEnv(t)
	env.startSession(t, "alice")

	env.mock.ExpectQuery("SELECT id, form_key, submitter_id, email, form_data").
		WithArgs("app-1").
		WillReturnRows(appRow("app-1", "pending", "2026-cfg-application/auth0|app-1/x/resume.pdf"))

	view, err := env.svc.Get(context.Background(), "alice", "app-1")
	require.NoError(t, err)
	assert.False(t, view.Lock.Locked, "viewing must not acquire the lock")
	assert.False(t, view.LockedByMe)
	assert.Contains(t, view.Application.ResumeURL, "resume.pdf")
	assert.Equal(t, "Ada", view.Application.FormData["first_name"])

	state, err := env.locks.LockState(context.Background(), "app-1")
	require.NoError(t, err)
	assert.False(t, state.Locked)
}

func TestGetAnnotatesOwnLock(t *testing.T) {
	env := newTestEnv(t)
	sid := env.startSession(t, "alice")
	require.NoError(t, env.svc.AcquireLock(context.Background(), "alice", sid, "app-1"))

	env.mock.ExpectQuery("SELECT id, form_key, submitter_id, email, form_data").
		WithArgs("app-1").
		WillReturnRows(appRow("app-1", "pending", ""))

	view, err := env.svc.Get(context.Background(), "alice", "app-1")
	require.NoError(t, err)
	assert.True(t, view.Lock.Locked)
	assert.True(t, view.LockedByMe)
}

func TestGetLockedByOtherIsReadOnly(t *testing.T) {
	env := newTestEnv(t)
	aliceSID := env.startSession(t, "alice")
	env.startSession(t, "bob")
	require.NoError(t, env.locks.AcquireLock(context.Background(), "alice", aliceSID, "app-1"))

	env.mock.ExpectQuery("SELECT id, form_key, submitter_id, email, form_data").
		WithArgs("app-1").
		WillReturnRows(appRow("app-1", "pending", ""))

	view, err := env.svc.Get(context.Background(), "bob", "app-1")
	require.NoError(t, err)
	assert.False(t, view.LockedByMe)
	assert.True(t, view.Lock.Locked)
	assert.Equal(t, "alice", view.Lock.HolderIdentity)
}

func TestAcquireLockConflict(t *testing.T) {
	env := newTestEnv(t)
	aliceSID := env.startSession(t, "alice")
	bobSID := env.startSession(t, "bob")

	require.NoError(t, env.svc.AcquireLock(context.Background(), "alice", aliceSID, "app-1"))
	err := env.svc.AcquireLock(context.Background(), "bob", bobSID, "app-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeLockConflict))
}

func TestGetUnknownApplication(t *testing.T) {
	env := newTestEnv(t)
	env.startSession(t, "alice")

	env.mock.ExpectQuery("SELECT id, form_key, submitter_id, email, form_data").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(appColumns()))

	_, err := env.svc.Get(context.Background(), "alice", "nope")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestNextPendingSkipsLockedCandidates(t *testing.T) {
	env := newTestEnv(t)
	aliceSID := env.startSession(t, "alice")
	bobSID := env.startSession(t, "bob")

	// Alice is already judging the head of the queue.
	require.NoError(t, env.locks.AcquireLock(context.Background(), "alice", aliceSID, "app-1"))

	env.mock.ExpectQuery("SELECT id FROM applications").
		WithArgs("2026-cfg-application", "pending", nextCandidateLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("app-1").AddRow("app-2"))
	env.mock.ExpectQuery("SELECT id, form_key, submitter_id, email, form_data").
		WithArgs("app-2").
		WillReturnRows(appRow("app-2", "pending", ""))

	view, err := env.svc.NextPending(context.Background(), "bob", bobSID, "2026-cfg-application")
	require.NoError(t, err)
	assert.Equal(t, "app-2", view.Application.ID)
	assert.True(t, view.LockedByMe)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestNextPendingQueueDrained(t *testing.T) {
	env := newTestEnv(t)
	sid := env.startSession(t, "alice")

	env.mock.ExpectQuery("SELECT id FROM applications").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := env.svc.NextPending(context.Background(), "alice", sid, "2026-cfg-application")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestDecideAcceptReleasesLock(t *testing.T) {
	env := newTestEnv(t)
	sid := env.startSession(t, "alice")
	require.NoError(t, env.locks.AcquireLock(context.Background(), "alice", sid, "app-1"))

	env.mock.ExpectExec("UPDATE applications").
		WithArgs("app-1", "accepted", "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	decided := sqlmock.NewRows(appColumns()).
		AddRow("app-1", "2026-cfg-application", "auth0|app-1", "app-1@duke.edu",
			[]byte(`{}`), "", "accepted", "alice", time.Now(), time.Now())
	env.mock.ExpectQuery("SELECT id, form_key, submitter_id, email, form_data").
		WithArgs("app-1").
		WillReturnRows(decided)

	app, err := env.svc.Decide(context.Background(), "alice", sid, "app-1", DecisionAccepted)
	require.NoError(t, err)
	assert.Equal(t, "accepted", app.Status)
	assert.Equal(t, "alice", app.DecidedBy)

	state, err := env.locks.LockState(context.Background(), "app-1")
	require.NoError(t, err)
	assert.False(t, state.Locked)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestDecidePendingDefersToBackOfQueue(t *testing.T) {
	env := newTestEnv(t)
	sid := env.startSession(t, "alice")

	env.mock.ExpectExec("UPDATE applications").
		WithArgs("app-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectQuery("SELECT id, form_key, submitter_id, email, form_data").
		WithArgs("app-1").
		WillReturnRows(appRow("app-1", "pending", ""))

	app, err := env.svc.Decide(context.Background(), "alice", sid, "app-1", DecisionPending)
	require.NoError(t, err)
	assert.Equal(t, "pending", app.Status)
	assert.Empty(t, app.DecidedBy)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestDecideRefusedWhenLockedByOther(t *testing.T) {
	env := newTestEnv(t)
	aliceSID := env.startSession(t, "alice")
	bobSID := env.startSession(t, "bob")
	require.NoError(t, env.locks.AcquireLock(context.Background(), "alice", aliceSID, "app-1"))

	_, err := env.svc.Decide(context.Background(), "bob", bobSID, "app-1", DecisionAccepted)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeLockConflict))
}

func TestDecideRejectsUnknownDecision(t *testing.T) {
	env := newTestEnv(t)
	sid := env.startSession(t, "alice")

	_, err := env.svc.Decide(context.Background(), "alice", sid, "app-1", "waitlisted")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBadRequest))
}

func TestDecideUnknownApplication(t *testing.T) {
	env := newTestEnv(t)
	sid := env.startSession(t, "alice")

	env.mock.ExpectExec("UPDATE applications").
		WithArgs("nope", "accepted", "alice").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := env.svc.Decide(context.Background(), "alice", sid, "nope", DecisionAccepted)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(`SELECT\s+COUNT`).
		WithArgs("2026-cfg-application", "alice").
		WillReturnRows(sqlmock.NewRows(
			[]string{"pending", "accepted", "rejected", "user_accepted", "user_rejected"}).
			AddRow(40, 25, 10, 7, 3))

	stats, err := env.svc.Stats(context.Background(), "alice", "2026-cfg-application")
	require.NoError(t, err)
	assert.Equal(t, 40, stats.TotalPending)
	assert.Equal(t, 25, stats.TotalAccepted)
	assert.Equal(t, 10, stats.TotalRejected)
	assert.Equal(t, 7, stats.UserAccepted)
	assert.Equal(t, 3, stats.UserRejected)
}
