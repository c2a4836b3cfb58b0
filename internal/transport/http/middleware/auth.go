package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layoffproof/layoff-tracker/internal/reqctx"
)

const (
	errUnauthorized = "Unauthorized"

	// UserIDKey is the gin context key holding the authenticated user id.
	UserIDKey = "userID"
)

// Unauthorized is the one response every authorization failure produces. The
// client reacts to reauthenticate by sending the user back to sign-in.
func Unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", `Bearer realm="layoffproof"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":          errUnauthorized,
		"reauthenticate": true,
	})
}

// Auth validates a Bearer JWT and sets UserIDKey in the gin context.
func Auth(jwtKey []byte) gin.HandlerFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			Unauthorized(c)
			return
		}
		rawToken := strings.TrimPrefix(header, "Bearer ")

		token, err := parser.Parse(rawToken, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return jwtKey, nil
		})
		if err != nil || !token.Valid {
			Unauthorized(c)
			return
		}

		userID, err := token.Claims.GetSubject()
		if err != nil || userID == "" {
			Unauthorized(c)
			return
		}

		c.Set(UserIDKey, userID)
		c.Request = c.Request.WithContext(reqctx.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}
