package handler

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// The OAuth round-trip secrets ride in short-lived __Host- cookies,
// one per concern. Their TTL bounds how long a login attempt may
// dangle between redirect and callback.
const (
	stateCookieName = "__Host-oauth_state"
	pkceCookieName  = "__Host-oauth_pkce"
	flowCookieTTL   = 5 * time.Minute
)

func setFlowCookie(c *gin.Context, name, value string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/", // required for __Host-
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(flowCookieTTL.Seconds()),
	})
}

func flowCookie(c *gin.Context, name string) string {
	cookie, err := c.Request.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func randomToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// newState issues the CSRF state for an authorization redirect.
func newState(c *gin.Context) string {
	state := randomToken()
	setFlowCookie(c, stateCookieName, state)
	return state
}

// checkState compares the callback's state query against the cookie
// issued at redirect time.
func checkState(c *gin.Context) bool {
	got := c.Query("state")
	return got != "" && got == flowCookie(c, stateCookieName)
}

// newPKCE stores a fresh code verifier and returns its S256
// challenge for the authorization URL.
func newPKCE(c *gin.Context) (challenge string) {
	verifier := randomToken()
	setFlowCookie(c, pkceCookieName, verifier)

	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

func pkceVerifier(c *gin.Context) string {
	return flowCookie(c, pkceCookieName)
}
