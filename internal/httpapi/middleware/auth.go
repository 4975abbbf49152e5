package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/travel-assistant/internal/auth"
	"github.com/suPer8Hu/travel-assistant/internal/common"
)

const (
	UserIDKey   = "user_id"
	UsernameKey = "username"
)

// AuthRequired accepts "Authorization: Bearer <jwt>" and stores the user id
// under UserIDKey.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			common.Fail(c, http.StatusUnauthorized, 40100, "missing token")
			return
		}

		claims, err := auth.ParseJWT(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), secret)
		if errors.Is(err, common.ErrUnauthorized) {
			common.Fail(c, http.StatusUnauthorized, 40101, "invalid token")
			return
		}
		if err != nil {
			common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Subject)
		c.Next()
	}
}
