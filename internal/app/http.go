package app

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"cms-admin-service/internal/access"
	"cms-admin-service/internal/admin"
	"cms-admin-service/internal/auth"
	authhandler "cms-admin-service/internal/auth/handler"
	"cms-admin-service/internal/config"
	"cms-admin-service/internal/identity"
	"cms-admin-service/internal/logger"
	"cms-admin-service/internal/middleware"
	"cms-admin-service/internal/profile"
	"cms-admin-service/internal/provision"
	"cms-admin-service/internal/session"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	profiles := profile.NewPostgresStore(infra.DB)
	gate := access.NewGate(profiles)
	sessionStore := session.NewRedisStore(infra.Redis.Client)

	// The privileged client only exists when the service key is
	// present; flows refuse to run without it.
	var provisioner identity.Provisioner
	if cfg.ProvisioningConfigured() {
		provisioner = identity.NewClient(cfg.ProviderURL, cfg.ProviderServiceKey)
	} else {
		logger.Warn("provisioning disabled: no service key", nil)
	}

	flows := provision.NewService(gate, provisioner, profiles, cfg.SiteBaseURL)

	verifier, err := auth.NewVerifier(
		ctx,
		cfg.ProviderIssuer,
		cfg.ProviderClientID,
		cfg.SiteBaseURL+"/auth/callback",
	)
	if err != nil {
		return nil, nil, err
	}

	waiter := session.NewProfileWaiter(profiles)

	loginHandler := authhandler.NewHandler(verifier, sessionStore, waiter)
	adminHandler := admin.NewHandler(flows, gate, profiles)
	authMiddleware := middleware.NewAuthMiddleware(sessionStore)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	loginHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireSession(authMiddleware))

	api.GET("/me", func(c *gin.Context) {
		userID := c.GetString("userID")
		p, err := profiles.Get(c.Request.Context(), userID)
		if err != nil {
			c.JSON(200, gin.H{"user_id": userID})
			return
		}
		c.JSON(200, gin.H{
			"user_id":   userID,
			"email":     p.Email,
			"full_name": p.FullName,
			"role":      string(p.Role),
		})
	})

	// One-shot profile completion after the invite link is consumed.
	api.POST("/setup", func(c *gin.Context) {
		var req struct {
			FullName string `json:"full_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "invalid request"})
			return
		}

		err := profiles.CompleteSetup(c.Request.Context(), c.GetString("userID"), req.FullName)
		switch {
		case errors.Is(err, profile.ErrNotFound):
			c.JSON(404, gin.H{"error": "profile not found"})
		case errors.Is(err, profile.ErrNameAlreadySet):
			c.JSON(409, gin.H{"error": "setup already completed"})
		case err != nil:
			c.JSON(500, gin.H{"error": "failed to save profile"})
		default:
			c.JSON(200, gin.H{"success": true})
		}
	})

	adminHandler.RegisterRoutes(api.Group("/admin"))

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		return infra.DB.Close()
	}, nil
}
