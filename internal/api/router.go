// internal/api/router.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hackathon-portal/internal/checkin"
	"hackathon-portal/internal/common/auth"
	"hackathon-portal/internal/common/logger"
	"hackathon-portal/internal/intake"
	"hackathon-portal/internal/models"
	"hackathon-portal/internal/review"
	"hackathon-portal/internal/roles"
	"hackathon-portal/internal/session"
)

// Server wires the HTTP surface to the portal services.
type Server struct {
	verifier       *auth.Verifier
	sessions       *session.Manager
	roles          *roles.Store
	intake         *intake.Service
	review         *review.Service
	checkin        *checkin.Service
	currentFormKey string
	log            logger.Logger
}

func NewServer(
	verifier *auth.Verifier,
	sessions *session.Manager,
	roleStore *roles.Store,
	intakeSvc *intake.Service,
	reviewSvc *review.Service,
	checkinSvc *checkin.Service,
	currentFormKey string,
	log logger.Logger,
) *Server {
	return &Server{
		verifier:       verifier,
		sessions:       sessions,
		roles:          roleStore,
		intake:         intakeSvc,
		review:         reviewSvc,
		checkin:        checkinSvc,
		currentFormKey: currentFormKey,
		log:            log,
	}
}

// Router builds the gin engine with all portal routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(s.log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Applicant surface.
	applicant := api.Group("/application", Authenticate(s.verifier))
	applicant.POST("/:formKey/submit", s.handleSubmit)
	applicant.GET("/:formKey/status", s.handleApplicationStatus)
	api.GET("/form-status/:formKey", Authenticate(s.verifier), s.handleFormStatus)

	// Admin review surface. The beacon route skips auth on purpose: browsers
	// send unload beacons without custom headers.
	admin := api.Group("/admin")
	admin.POST("/release-locks", s.handleReleaseLocksBeacon)

	adminAuthed := admin.Group("", Authenticate(s.verifier), RequireRole(s.roles, models.RoleAdmin))
	adminAuthed.POST("/auth/check", s.handleAuthCheck)
	adminAuthed.POST("/ping", s.handlePing)
	adminAuthed.POST("/logout", s.handleLogout)

	adminSession := adminAuthed.Group("", RequireSession(s.sessions))
	adminSession.GET("/applications", s.handleListApplications)
	adminSession.GET("/stats", s.handleStats)
	adminSession.GET("/application/:id", s.handleGetApplication)
	adminSession.GET("/next-application", s.handleNextApplication)
	adminSession.POST("/acquire-lock", s.handleAcquireLock)
	adminSession.POST("/decision", s.handleDecision)
	adminSession.POST("/release-lock", s.handleReleaseLock)

	// Check-in scanner surface.
	scanner := api.Group("/check-in", Authenticate(s.verifier), RequireRole(s.roles, models.RoleCheckIn))
	scanner.POST("", s.handleCheckIn)
	scanner.GET("/logs", s.handleListCheckIns)
	scanner.DELETE("/:logId", s.handleDeleteCheckIn)

	// Role administration.
	roleAdmin := api.Group("/roles", Authenticate(s.verifier), RequireRole(s.roles, models.RoleAdmin))
	roleAdmin.GET("", s.handleListRoles)
	roleAdmin.POST("/grant", s.handleGrantRole)
	roleAdmin.POST("/revoke", s.handleRevokeRole)

	return r
}
