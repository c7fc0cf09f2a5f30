package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinRequireSession adapts the net/http session middleware to Gin and
// mirrors the resolved caller id into the gin context.
func GinRequireSession(auth *AuthMiddleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			if id, ok := UserIDFromContext(r.Context()); ok {
				c.Set("userID", id)
			}
			c.Next()
		})

		auth.RequireSession(next).ServeHTTP(c.Writer, c.Request)

		// If the middleware already wrote a response, stop the chain.
		if c.Writer.Written() && !c.IsAborted() {
			c.Abort()
		}
	}
}
