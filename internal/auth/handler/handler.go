package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cms-admin-service/internal/access"
	"cms-admin-service/internal/auth"
	"cms-admin-service/internal/logger"
	"cms-admin-service/internal/profile"
	"cms-admin-service/internal/session"
)

const sessionTTL = 24 * time.Hour

type Handler struct {
	verifier     *auth.Verifier
	sessionStore session.Store
	waiter       *session.ProfileWaiter
}

func NewHandler(
	verifier *auth.Verifier,
	sessionStore session.Store,
	waiter *session.ProfileWaiter,
) *Handler {
	return &Handler{
		verifier:     verifier,
		sessionStore: sessionStore,
		waiter:       waiter,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/auth/login", h.login)
	r.GET("/auth/callback", h.callback)
	r.POST("/auth/logout", h.logout)
}

func (h *Handler) login(c *gin.Context) {
	state := newState(c)
	codeChallenge := newPKCE(c)

	c.Redirect(http.StatusFound, h.verifier.AuthCodeURL(state, codeChallenge))
}

func (h *Handler) callback(c *gin.Context) {
	if !checkState(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid state"})
		return
	}

	if errParam := c.Query("error"); errParam != "" {
		logger.Warn("oidc callback returned error", map[string]any{
			"error": errParam,
			"desc":  c.Query("error_description"),
		})
		c.Redirect(http.StatusFound, "/auth/login")
		return
	}

	code := c.Query("code")
	if code == "" {
		logger.Error("oidc callback missing code and error", nil)
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	codeVerifier := pkceVerifier(c)
	if codeVerifier == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing pkce verifier"})
		return
	}

	login, err := h.verifier.Exchange(c.Request.Context(), code, codeVerifier)
	if err != nil {
		logger.Error("oidc exchange failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	// A freshly invited account may not have its profile row yet; the
	// waiter tolerates the projection lag before giving up.
	p, err := h.waiter.Wait(c.Request.Context(), login.Subject)
	if err != nil {
		logger.Info("login without profile, routing to default", map[string]any{
			"user_id": login.Subject,
		})
	}
	destination := loginDestination(p)

	sessionID, err := session.GenerateID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	now := time.Now()
	expiresAt := now.Add(sessionTTL)

	sess := session.Session{
		SessionID: sessionID,
		UserID:    login.Subject,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}

	if err := h.sessionStore.Create(c.Request.Context(), sess); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist session"})
		return
	}

	session.SetCookie(c.Writer, sessionID, expiresAt, session.CookieOptions{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	logger.Info("login succeeded", map[string]any{
		"user_id": login.Subject,
		"ip":      c.ClientIP(),
	})

	c.Redirect(http.StatusFound, destination)
}

// loginDestination routes by the profile that survived the wait. No
// profile means the default, non-privileged destination.
func loginDestination(p *profile.Profile) string {
	if p == nil {
		return "/"
	}
	if p.Role == access.RoleAdmin || p.Role == access.RoleEditor {
		return "/admin"
	}
	return "/"
}

func (h *Handler) logout(c *gin.Context) {
	cookie, err := c.Request.Cookie(session.CookieName)
	if err == nil && cookie.Value != "" {
		// Best-effort store cleanup; the cookie is cleared regardless.
		_ = h.sessionStore.Delete(c.Request.Context(), cookie.Value)
	}

	session.ClearCookie(c.Writer, session.CookieOptions{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	c.Status(http.StatusNoContent)
}
