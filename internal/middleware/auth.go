package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klass-lk/postboard"
)

// Authenticate requires a valid bearer token signed with secret and stores the
// caller id and scopes on the request for postboard.Context.GetAuthContext.
func Authenticate(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			postboard.SendError(c, postboard.ErrUnauthenticated)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			postboard.SendError(c, postboard.ErrUnauthenticated)
			return
		}

		claims, err := postboard.ParseAccessToken(secret, strings.TrimSpace(parts[1]))
		if err != nil {
			postboard.SendError(c, postboard.ErrUnauthenticated)
			return
		}
		userID, err := postboard.ExtractUserID(claims)
		if err != nil {
			postboard.SendError(c, postboard.ErrUnauthenticated)
			return
		}

		c.Set(postboard.UserIDKey, userID)
		c.Set(postboard.ScopesKey, claims.Scopes)
		c.Next()
	}
}

// RequireScopes rejects callers missing any of scopes. It must run after Authenticate.
func RequireScopes(scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth, err := postboard.NewContext(c).GetAuthContext()
		if err != nil {
			return
		}
		for _, scope := range scopes {
			if !auth.HasScope(scope) {
				postboard.SendError(c, postboard.ErrInvalidScope)
				return
			}
		}
		c.Next()
	}
}
