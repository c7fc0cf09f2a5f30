package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cms-admin-service/internal/access"
	"cms-admin-service/internal/identity"
	"cms-admin-service/internal/profile"
	"cms-admin-service/internal/provision"
)

// writeError maps the tagged provisioning taxonomy to HTTP. The
// "nothing happened" errors and the "partially happened" errors must
// stay distinguishable on the wire.
func writeError(c *gin.Context, err error) {
	var syncErr *provision.SyncError
	var providerErr *identity.ProviderError

	switch {
	case errors.Is(err, access.ErrNoSession):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no session"})

	case errors.Is(err, access.ErrUnauthorized),
		errors.Is(err, access.ErrProfileNotFound):
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized"})

	case errors.Is(err, provision.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "identity provider credentials not configured",
		})

	case errors.As(err, &syncErr):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "user created but profile sync failed",
			"partial": true,
			"detail":  syncErr.Error(),
		})

	case errors.Is(err, profile.ErrNotFound),
		errors.Is(err, identity.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})

	case errors.As(err, &providerErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": providerErr.Message})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
