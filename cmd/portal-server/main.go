// cmd/portal-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hackathon-portal/internal/api"
	"hackathon-portal/internal/checkin"
	"hackathon-portal/internal/common/auth"
	"hackathon-portal/internal/common/config"
	"hackathon-portal/internal/common/database"
	"hackathon-portal/internal/common/logger"
	"hackathon-portal/internal/common/storage"
	"hackathon-portal/internal/forms"
	"hackathon-portal/internal/intake"
	"hackathon-portal/internal/notify"
	"hackathon-portal/internal/review"
	"hackathon-portal/internal/roles"
	"hackathon-portal/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting portal server", map[string]interface{}{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		log.Error("failed to open postgres", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer pg.Close()
	if err := retryWithBackoff(ctx, 5, func() error { return pg.Ping(ctx) }); err != nil {
		log.Error("postgres unreachable", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		log.Error("failed to open redis", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer rdb.Close()
	if err := retryWithBackoff(ctx, 5, func() error { return rdb.Ping(ctx) }); err != nil {
		log.Error("redis unreachable", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	blobs, err := storage.NewMinioStore(cfg.Storage, cfg.PresignTTL())
	if err != nil {
		log.Error("failed to create blob store", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		log.Error("failed to ensure bucket", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	registry, err := forms.NewRegistry(pg.GetDB())
	if err != nil {
		log.Error("failed to build form registry", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	mailer, err := notify.NewMailer(ctx, cfg, log)
	if err != nil {
		log.Error("failed to create mailer", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	sessions := session.NewManager(rdb.GetClient(), cfg.SessionWindow(), cfg.LockWindow())
	roleStore := roles.NewStore(pg.GetDB())
	intakeSvc := intake.NewService(pg.GetDB(), blobs, registry, log)
	reviewSvc := review.NewService(pg.GetDB(), sessions, blobs, mailer, log)
	checkinSvc := checkin.NewService(pg.GetDB(), log)

	server := api.NewServer(
		auth.NewVerifier(cfg.Auth),
		sessions,
		roleStore,
		intakeSvc,
		reviewSvc,
		checkinSvc,
		cfg.Forms.CurrentKey,
		log,
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}

	go func() {
		log.Info("listening", map[string]interface{}{"port": cfg.Server.Port})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", map[string]interface{}{"error": err.Error()})
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	log.Info("stopped", nil)
}

// retryWithBackoff retries op with doubling delays, starting at one second.
func retryWithBackoff(ctx context.Context, attempts int, op func() error) error {
	var err error
	delay := time.Second
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
