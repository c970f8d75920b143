// internal/api/middleware.go
package api

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hackathon-portal/internal/common/auth"
	apperrors "hackathon-portal/internal/common/errors"
	"hackathon-portal/internal/common/logger"
	"hackathon-portal/internal/common/metrics"
	"hackathon-portal/internal/roles"
)

// sessionValidator is the slice of the session manager the middleware needs.
type sessionValidator interface {
	Validate(ctx context.Context, identity, sessionID string) error
}

const (
	ctxIdentityKey  = "identity"
	ctxSessionIDKey = "sessionID"

	sessionHeader = "X-Session-Id"
)

// RequestID tags every request, echoing a caller-provided id when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("requestID", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// RequestLogger logs one line per request and records HTTP metrics.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		metrics.HTTPRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route, c.Request.Method).Observe(elapsed.Seconds())

		log.Info("request handled", map[string]interface{}{
			"request_id": c.GetString("requestID"),
			"method":     c.Request.Method,
			"route":      route,
			"status":     status,
			"elapsed_ms": elapsed.Milliseconds(),
		})
	}
}

// Authenticate verifies the bearer token and stashes the caller identity.
func Authenticate(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := verifier.VerifyHeader(c.GetHeader("Authorization"))
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		c.Set(ctxIdentityKey, identity)
		c.Next()
	}
}

// RequireRole gates a route on a granted role. The role store is
// authoritative; a role claim in the token short-circuits the lookup.
func RequireRole(store *roles.Store, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := identityFrom(c)
		if identity == nil {
			respondError(c, apperrors.NewUnauthenticatedError("no identity"))
			c.Abort()
			return
		}
		if identity.HasRole(role) {
			c.Next()
			return
		}
		has, err := store.HasRole(c.Request.Context(), identity.Subject, role)
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		if !has {
			respondError(c, apperrors.NewUnauthorizedError("requires role: "+role))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireSession validates the admin session header against the caller's
// live session and stashes the session id. A superseded tab gets
// SESSION_INVALID, not a generic 403.
func RequireSession(sessions sessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := identityFrom(c)
		if identity == nil {
			respondError(c, apperrors.NewUnauthenticatedError("no identity"))
			c.Abort()
			return
		}
		sid := c.GetHeader(sessionHeader)
		if sid == "" {
			respondError(c, apperrors.NewSessionInvalidError())
			c.Abort()
			return
		}
		if err := sessions.Validate(c.Request.Context(), identity.Subject, sid); err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		c.Set(ctxSessionIDKey, sid)
		c.Next()
	}
}

func identityFrom(c *gin.Context) *auth.Identity {
	v, ok := c.Get(ctxIdentityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*auth.Identity)
	return identity
}

func sessionIDFrom(c *gin.Context) string {
	return c.GetString(ctxSessionIDKey)
}
