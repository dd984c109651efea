package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fenwick-labs/gatehouse/internal/models"
)

const currentUserKey = "currentUser"

// CurrentUser returns the user the Protect or IsLoggedIn middleware resolved
// for this request, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(currentUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

// Protect guards a route: it requires a valid session token, a still-existing
// user, and a password unchanged since the token was issued.
func (h *Handler) Protect() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortUnauthorized(c, "you are not logged in; please log in to get access")
			return
		}

		user, ok := h.resolveUser(c, token)
		if !ok {
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// IsLoggedIn resolves the user behind the session cookie when there is one,
// and passes through silently otherwise. It never rejects a request.
func (h *Handler) IsLoggedIn() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookie)
		if err != nil || token == "" {
			c.Next()
			return
		}

		claims, err := h.auth.VerifyToken(token)
		if err != nil {
			c.Next()
			return
		}

		user, err := h.users.FindByID(c.Request.Context(), claims.Subject)
		if err != nil {
			c.Next()
			return
		}

		if claims.IssuedAt != nil && user.ChangedPasswordAfter(claims.IssuedAt.Time) {
			c.Next()
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// RestrictTo allows only users whose role appears in the given set. It must
// run after Protect.
func (h *Handler) RestrictTo(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abortUnauthorized(c, "you are not logged in; please log in to get access")
			return
		}

		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}

		respondError(c, http.StatusForbidden, "you do not have permission to perform this action")
		c.Abort()
	}
}

func (h *Handler) resolveUser(c *gin.Context, token string) (*models.User, bool) {
	claims, err := h.auth.VerifyToken(token)
	if err != nil {
		abortUnauthorized(c, "invalid or expired token; please log in again")
		return nil, false
	}

	user, err := h.users.FindByID(c.Request.Context(), claims.Subject)
	if err != nil {
		abortUnauthorized(c, "the user belonging to this token no longer exists")
		return nil, false
	}

	if claims.IssuedAt != nil && user.ChangedPasswordAfter(claims.IssuedAt.Time) {
		abortUnauthorized(c, "password was changed recently; please log in again")
		return nil, false
	}

	return user, true
}

// extractToken prefers the Authorization bearer header over the session
// cookie.
func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}

	token, err := c.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return token
}

func abortUnauthorized(c *gin.Context, message string) {
	respondError(c, http.StatusUnauthorized, message)
	c.Abort()
}
