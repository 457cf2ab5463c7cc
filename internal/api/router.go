package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/scolarix/scolarix/internal/app"
	iauth "github.com/scolarix/scolarix/internal/auth"
	"github.com/scolarix/scolarix/internal/handlers"
	"github.com/scolarix/scolarix/internal/middleware"
	"github.com/scolarix/scolarix/internal/services"
	"github.com/scolarix/scolarix/pkg/mail"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// NewRouter builds the Gin engine, wires middleware and registers all routes.
// The mailer may be nil when outbound email is disabled.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, mailer mail.Mailer) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	directory, err := services.NewDirectoryService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise directory service: %w", err)
	}

	invitationOpts := []services.InvitationOption{}
	if mailer != nil {
		invitationOpts = append(invitationOpts, services.WithInvitationMailer(mailer))
	}
	invitations, err := services.NewInvitationService(db, directory, invitationOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise invitation service: %w", err)
	}

	results, err := services.NewResultService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise result service: %w", err)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	if cfg.Monitoring.Health.Enabled {
		healthHandler := handlers.NewHealthHandler(db, Version)
		r.GET("/health", healthHandler.Check)
	}

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(db, directory, jwt)
	invitationHandler := handlers.NewInvitationHandler(invitations)
	directoryHandler := handlers.NewDirectoryHandler(directory)
	resultHandler := handlers.NewResultHandler(results)

	// Public routes: login and the invitation request form.
	auth := r.Group("/api/auth")
	{
		auth.POST("/login", authHandler.Login)
	}
	r.POST("/api/invitations/request", invitationHandler.Request)

	// Administrator routes: authenticated and restricted to the configured
	// admin identity.
	admin := r.Group("/api/admin")
	admin.Use(middleware.Auth(jwt))
	admin.Use(middleware.AdminOnly(cfg.Auth.AdminEmail))
	{
		admin.GET("/invitations", invitationHandler.List)
		admin.POST("/invitations/:id/approve", invitationHandler.Approve)
		admin.POST("/invitations/:id/reject", invitationHandler.Reject)
		admin.POST("/invitations/:id/notify", invitationHandler.MarkNotified)

		admin.GET("/users", directoryHandler.ListUsers)
		admin.PUT("/users/:id/subject", directoryHandler.SetSubject)

		admin.POST("/results/import", resultHandler.Import)
		admin.GET("/results", resultHandler.List)
		admin.GET("/results/statistics", resultHandler.Statistics)
		admin.GET("/results/snapshot", resultHandler.LatestSnapshot)
	}

	return r, nil
}
