// internal/session/manager.go
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "hackathon-portal/internal/common/errors"
	"hackathon-portal/internal/models"
)

// Key layout. All state is TTL-bounded so a crashed tab or server never
// leaves a permanent lock behind.
//
//	portal:session:<identity>        -> current session_id (session window TTL)
//	portal:lock:<app_id>             -> "<identity>|<session_id>" (lock window TTL)
//	portal:session_locks:<session_id> -> set of app ids held by that session
const (
	sessionKeyPrefix      = "portal:session:"
	lockKeyPrefix         = "portal:lock:"
	sessionLocksKeyPrefix = "portal:session_locks:"
)

func sessionKey(identity string) string { return sessionKeyPrefix + identity }

func lockKey(appID string) string { return lockKeyPrefix + appID }

func sessionLocksKey(sessionID string) string { return sessionLocksKeyPrefix + sessionID }

// acquireScript grants the lock when it is free, already held by the caller,
// or held by a session that is no longer the holder's live session (stale).
// Single round trip so two admins racing for the same application cannot
// both win.
var acquireScript = redis.NewScript(`
local val = redis.call('GET', KEYS[1])
if val then
	local sep = string.find(val, '|', 1, true)
	local holder = string.sub(val, 1, sep - 1)
	local holderSession = string.sub(val, sep + 1)
	if holder ~= ARGV[1] then
		local live = redis.call('GET', 'portal:session:' .. holder)
		if live == holderSession then
			return {0, holder}
		end
		redis.call('SREM', 'portal:session_locks:' .. holderSession, ARGV[4])
	end
end
redis.call('SET', KEYS[1], ARGV[1] .. '|' .. ARGV[2], 'EX', ARGV[3])
redis.call('SADD', KEYS[2], ARGV[4])
redis.call('EXPIRE', KEYS[2], ARGV[3])
return {1, ARGV[1]}
`)

// releaseScript deletes the lock only if the caller still holds it.
// Releasing a lock you no longer hold is a no-op, not an error.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	redis.call('DEL', KEYS[1])
end
redis.call('SREM', KEYS[2], ARGV[2])
return 1
`)

// releaseAllScript drops every lock the session still holds. Used on logout,
// on session supersession, and by the page-unload beacon.
var releaseAllScript = redis.NewScript(`
local released = 0
for _, id in ipairs(redis.call('SMEMBERS', KEYS[1])) do
	local key = 'portal:lock:' .. id
	local val = redis.call('GET', key)
	if val then
		local sep = string.find(val, '|', 1, true)
		if sep and string.sub(val, sep + 1) == ARGV[1] then
			redis.call('DEL', key)
			released = released + 1
		end
	end
end
redis.call('DEL', KEYS[1])
return released
`)

// Manager owns admin sessions and per-application review locks in Redis.
type Manager struct {
	rdb           *redis.Client
	sessionWindow time.Duration
	lockWindow    time.Duration
}

func NewManager(rdb *redis.Client, sessionWindow, lockWindow time.Duration) *Manager {
	return &Manager{
		rdb:           rdb,
		sessionWindow: sessionWindow,
		lockWindow:    lockWindow,
	}
}

// StartSession opens a fresh session for the identity, superseding any
// previous one and releasing its locks. One live session per admin.
func (m *Manager) StartSession(ctx context.Context, identity string) (*models.AdminSession, error) {
	prev, err := m.rdb.Get(ctx, sessionKey(identity)).Result()
	if err != nil && err != redis.Nil {
		return nil, apperrors.NewUpstreamFailureError("redis", err)
	}
	if prev != "" {
		if _, err := m.ReleaseAllLocks(ctx, prev); err != nil {
			return nil, err
		}
	}

	sessionID := uuid.New().String()
	if err := m.rdb.Set(ctx, sessionKey(identity), sessionID, m.sessionWindow).Err(); err != nil {
		return nil, apperrors.NewUpstreamFailureError("redis", err)
	}

	return &models.AdminSession{
		SessionID:     sessionID,
		AdminIdentity: identity,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Validate checks that sessionID is still the identity's live session.
func (m *Manager) Validate(ctx context.Context, identity, sessionID string) error {
	live, err := m.rdb.Get(ctx, sessionKey(identity)).Result()
	if err == redis.Nil {
		return apperrors.NewSessionInvalidError()
	}
	if err != nil {
		return apperrors.NewUpstreamFailureError("redis", err)
	}
	if live != sessionID {
		return apperrors.NewSessionInvalidError()
	}
	return nil
}

// Ping validates the session and pushes its expiry out by a full window.
func (m *Manager) Ping(ctx context.Context, identity, sessionID string) error {
	if err := m.Validate(ctx, identity, sessionID); err != nil {
		return err
	}
	if err := m.rdb.Expire(ctx, sessionKey(identity), m.sessionWindow).Err(); err != nil {
		return apperrors.NewUpstreamFailureError("redis", err)
	}
	return nil
}

// AcquireLock takes the review lock on appID for the session. Returns
// LOCK_CONFLICT when another live session holds it; re-acquiring your own
// lock refreshes its TTL.
func (m *Manager) AcquireLock(ctx context.Context, identity, sessionID, appID string) error {
	ttl := int(m.lockWindow.Seconds())
	res, err := acquireScript.Run(ctx, m.rdb,
		[]string{lockKey(appID), sessionLocksKey(sessionID)},
		identity, sessionID, ttl, appID).Slice()
	if err != nil {
		return apperrors.NewUpstreamFailureError("redis", err)
	}
	if len(res) != 2 {
		return apperrors.NewUpstreamFailureError("redis", fmt.Errorf("unexpected acquire reply: %v", res))
	}
	if granted, _ := res[0].(int64); granted == 1 {
		return nil
	}
	return apperrors.NewLockConflictError(appID)
}

// ReleaseLock drops the lock on appID if this session still holds it.
// Idempotent.
func (m *Manager) ReleaseLock(ctx context.Context, identity, sessionID, appID string) error {
	err := releaseScript.Run(ctx, m.rdb,
		[]string{lockKey(appID), sessionLocksKey(sessionID)},
		identity+"|"+sessionID, appID).Err()
	if err != nil {
		return apperrors.NewUpstreamFailureError("redis", err)
	}
	return nil
}

// ReleaseAllLocks drops every lock held by the session. Keyed by session id
// alone so the page-unload beacon can call it without an auth header.
func (m *Manager) ReleaseAllLocks(ctx context.Context, sessionID string) (int, error) {
	released, err := releaseAllScript.Run(ctx, m.rdb,
		[]string{sessionLocksKey(sessionID)}, sessionID).Int()
	if err != nil {
		return 0, apperrors.NewUpstreamFailureError("redis", err)
	}
	return released, nil
}

// LockState reports who holds the lock on appID, treating locks whose
// holder session is no longer live as unlocked.
func (m *Manager) LockState(ctx context.Context, appID string) (*models.LockState, error) {
	val, err := m.rdb.Get(ctx, lockKey(appID)).Result()
	if err == redis.Nil {
		return &models.LockState{}, nil
	}
	if err != nil {
		return nil, apperrors.NewUpstreamFailureError("redis", err)
	}

	holder, holderSession, ok := strings.Cut(val, "|")
	if !ok {
		return &models.LockState{}, nil
	}
	live, err := m.rdb.Get(ctx, sessionKey(holder)).Result()
	if err == redis.Nil || (err == nil && live != holderSession) {
		return &models.LockState{}, nil
	}
	if err != nil {
		return nil, apperrors.NewUpstreamFailureError("redis", err)
	}

	return &models.LockState{Locked: true, HolderIdentity: holder}, nil
}

// HeldByOther reports whether another live session holds the lock on appID.
func (m *Manager) HeldByOther(ctx context.Context, identity, appID string) (bool, error) {
	state, err := m.LockState(ctx, appID)
	if err != nil {
		return false, err
	}
	return state.Locked && state.HolderIdentity != identity, nil
}

// EndSession releases the session's locks and deletes the session key if it
// still belongs to the caller.
func (m *Manager) EndSession(ctx context.Context, identity, sessionID string) error {
	if _, err := m.ReleaseAllLocks(ctx, sessionID); err != nil {
		return err
	}
	live, err := m.rdb.Get(ctx, sessionKey(identity)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return apperrors.NewUpstreamFailureError("redis", err)
	}
	if live == sessionID {
		if err := m.rdb.Del(ctx, sessionKey(identity)).Err(); err != nil {
			return apperrors.NewUpstreamFailureError("redis", err)
		}
	}
	return nil
}
