package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layoffproof/layoff-tracker/internal/domain"
)

// UserFinder is satisfied by repository.UserRepository.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// EnsureUser runs after Auth. A valid token whose user no longer exists is
// treated like any other authorization failure.
func EnsureUser(users UserFinder, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, err := users.FindByID(c.Request.Context(), c.GetString(UserIDKey))
		if errors.Is(err, domain.ErrUserNotFound) {
			Unauthorized(c)
			return
		}
		if err != nil {
			logger.ErrorContext(c.Request.Context(), "ensure user", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				gin.H{"error": "Internal server error"})
			return
		}
		c.Next()
	}
}
