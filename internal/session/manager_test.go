// internal/session/manager_test.go
package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "hackathon-portal/internal/common/errors"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewManager(rdb, 30*time.Minute, 15*time.Minute), mr
}

func TestStartSessionSupersedesPrevious(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.StartSession(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, m.AcquireLock(ctx, "alice", first.SessionID, "app-1"))

	second, err := m.StartSession(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	// Old session is dead and its lock is gone.
	err = m.Validate(ctx, "alice", first.SessionID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSessionInvalid))
	assert.NoError(t, m.Validate(ctx, "alice", second.SessionID))

	state, err := m.LockState(ctx, "app-1")
	require.NoError(t, err)
	assert.False(t, state.Locked)
}

func TestAcquireLockMutualExclusion(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	alice, err := m.StartSession(ctx, "alice")
	require.NoError(t, err)
	bob, err := m.StartSession(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, m.AcquireLock(ctx, "alice", alice.SessionID, "app-1"))

	err = m.AcquireLock(ctx, "bob", bob.SessionID, "app-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeLockConflict))

	// Re-acquiring your own lock is fine.
	assert.NoError(t, m.AcquireLock(ctx, "alice", alice.SessionID, "app-1"))

	state, err := m.LockState(ctx, "app-1")
	require.NoError(t, err)
	assert.True(t, state.Locked)
	assert.Equal(t, "alice", state.HolderIdentity)
}

func TestAcquireLockStealsFromDeadSession(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	alice, err := m.StartSession(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, m.AcquireLock(ctx, "alice", alice.SessionID, "app-1"))

	// Alice's session expires; her lock record is still there but stale.
	mr.FastForward(31 * time.Minute)

	bob, err := m.StartSession(ctx, "bob")
	require.NoError(t, err)
	assert.NoError(t, m.AcquireLock(ctx, "bob", bob.SessionID, "app-1"))

	state, err := m.LockState(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "bob", state.HolderIdentity)
}

func TestLockExpiryReadsAsUnlocked(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	alice, err := m.StartSession(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, m.AcquireLock(ctx, "alice", alice.SessionID, "app-1"))

	mr.FastForward(16 * time.Minute)

	state, err := m.LockState(ctx, "app-1")
	require.NoError(t, err)
	assert.False(t, state.Locked)
}

func TestReleaseLockIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	alice, err := m.StartSession(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, m.AcquireLock(ctx, "alice", alice.SessionID, "app-1"))

	assert.NoError(t, m.ReleaseLock(ctx, "alice", alice.SessionID, "app-1"))
	assert.NoError(t, m.ReleaseLock(ctx, "alice", alice.SessionID, "app-1"))

	state, err := m.LockState(ctx, "app-1")
	require.NoError(t, err)
	assert.False(t, state.Locked)
}

func TestReleaseLockDoesNotTouchOthersLock(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	alice, err := m.StartSession(ctx, "alice")
	require.NoError(t, err)
	bob, err := m.StartSession(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, m.AcquireLock(ctx, "alice", alice.SessionID, "app-1"))

	// Bob releasing a lock he never held is a no-op.
	assert.NoError(t, m.ReleaseLock(ctx, "bob", bob.SessionID, "app-1"))

	state, err := m.LockState(ctx, "app-1")
	require.NoError(t, err)
	assert.True(t, state.Locked)
	assert.Equal(t, "alice", state.HolderIdentity)
}

func TestReleaseAllLocksBeacon(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	alice, err := m.StartSession(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, m.AcquireLock(ctx, "alice", alice.SessionID, "app-1"))
	require.NoError(t, m.AcquireLock(ctx, "alice", alice.SessionID, "app-2"))

	// Beacon path: session id only, no identity.
	released, err := m.ReleaseAllLocks(ctx, alice.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, released)

	for _, id := range []string{"app-1", "app-2"} {
		state, err := m.LockState(ctx, id)
		require.NoError(t, err)
		assert.False(t, state.Locked)
	}

	// Second beacon is harmless.
	released, err = m.ReleaseAllLocks(ctx, alice.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, released)
}

func TestPingRefreshesSessionWindow(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	alice, err := m.StartSession(ctx, "alice")
	require.NoError(t, err)

	mr.FastForward(20 * time.Minute)
	require.NoError(t, m.Ping(ctx, "alice", alice.SessionID))

	// 20 + 20 > 30, but the ping reset the clock.
	mr.FastForward(20 * time.Minute)
	assert.NoError(t, m.Validate(ctx, "alice", alice.SessionID))

	mr.FastForward(31 * time.Minute)
	err = m.Validate(ctx, "alice", alice.SessionID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSessionInvalid))
}

func TestPingRejectsSupersededSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.StartSession(ctx, "alice")
	require.NoError(t, err)
	_, err = m.StartSession(ctx, "alice")
	require.NoError(t, err)

	err = m.Ping(ctx, "alice", first.SessionID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSessionInvalid))
}

func TestEndSessionReleasesLocks(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	alice, err := m.StartSession(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, m.AcquireLock(ctx, "alice", alice.SessionID, "app-1"))

	require.NoError(t, m.EndSession(ctx, "alice", alice.SessionID))

	err = m.Validate(ctx, "alice", alice.SessionID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSessionInvalid))

	state, err := m.LockState(ctx, "app-1")
	require.NoError(t, err)
	assert.False(t, state.Locked)
}

func TestEndSessionWithStaleIDKeepsLiveSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.StartSession(ctx, "alice")
	require.NoError(t, err)
	second, err := m.StartSession(ctx, "alice")
	require.NoError(t, err)

	// Logging out a superseded tab must not kill the live session.
	require.NoError(t, m.EndSession(ctx, "alice", first.SessionID))
	assert.NoError(t, m.Validate(ctx, "alice", second.SessionID))
}

func TestHeldByOther(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	alice, err := m.StartSession(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, m.AcquireLock(ctx, "alice", alice.SessionID, "app-1"))

	other, err := m.HeldByOther(ctx, "bob", "app-1")
	require.NoError(t, err)
	assert.True(t, other)

	other, err = m.HeldByOther(ctx, "alice", "app-1")
	require.NoError(t, err)
	assert.False(t, other)

	other, err = m.HeldByOther(ctx, "bob", "app-2")
	require.NoError(t, err)
	assert.False(t, other)
}

func TestRedisCommandErrorsSurfaceAsUpstreamFailure(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	t.Cleanup(func() { _ = rdb.Close() })
	m := NewManager(rdb, 30*time.Minute, 15*time.Minute)
	ctx := context.Background()

	// A lock script failing mid-flight is an upstream error, not a conflict.
	mock.ExpectEvalSha(acquireScript.Hash(),
		[]string{lockKey("app-1"), sessionLocksKey("sid-1")},
		"alice", "sid-1", 900, "app-1").
		SetErr(errors.New("broken pipe"))
	err := m.AcquireLock(ctx, "alice", "sid-1", "app-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUpstreamFailure))
	assert.False(t, apperrors.IsCode(err, apperrors.ErrCodeLockConflict))

	mock.ExpectGet(sessionKey("alice")).SetErr(errors.New("connection reset"))
	err = m.Validate(ctx, "alice", "sid-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUpstreamFailure))

	mock.ExpectGet(lockKey("app-1")).SetErr(errors.New("connection reset"))
	_, err = m.LockState(ctx, "app-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUpstreamFailure))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisDownSurfacesUpstreamFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	m := NewManager(rdb, 30*time.Minute, 15*time.Minute)

	mr.Close()

	_, err := m.StartSession(context.Background(), "alice")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUpstreamFailure))
}
