package middleware

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/layoffproof/layoff-tracker/internal/reqctx"
)

// ReportErrors sends errors attached with c.Error to Sentry when the response
// is a server error. It expects sentrygin's middleware earlier in the chain
// and does nothing when Sentry is not initialised.
func ReportErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < http.StatusInternalServerError || len(c.Errors) == 0 {
			return
		}
		hub := sentrygin.GetHubFromContext(c)
		if hub == nil {
			return
		}
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("route", c.FullPath())
			scope.SetTag("request_id", reqctx.RequestID(c.Request.Context()))
			if userID := c.GetString(UserIDKey); userID != "" {
				scope.SetUser(sentry.User{ID: userID})
			}
			for _, e := range c.Errors {
				hub.CaptureException(e.Err)
			}
		})
	}
}
