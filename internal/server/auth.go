package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const tokenCookieName = "fg_token"

// authMiddleware accepts the token as a bearer header, a query param or a
// cookie. A valid query token is moved into a cookie and the request is
// redirected without it.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if bearer, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
			if bearer != s.token {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			c.Next()
			return
		}

		// Check query param
		if queryToken := c.Query("token"); queryToken != "" {
			if queryToken != s.token {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(tokenCookieName, s.token, int(24*time.Hour/time.Second), "/", "", false, true)

			// Redirect to same path without token param
			newURL := *c.Request.URL
			q := newURL.Query()
			q.Del("token")
			newURL.RawQuery = q.Encode()
			c.Redirect(http.StatusFound, newURL.String())
			c.Abort()
			return
		}

		// Check cookie
		cookie, err := c.Cookie(tokenCookieName)
		if err != nil || cookie != s.token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Next()
	}
}
