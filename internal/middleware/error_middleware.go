package middleware

import (
	"net/http"

	"chatify-realtime/internal/transport/httpdto"
	chatify_errors "chatify-realtime/pkg/errors"
	"chatify-realtime/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error a handler attached with c.Error as a
// structured response. Handlers that already wrote a body are left alone.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := httpdto.StatusFor(err)
		if l != nil && status >= http.StatusInternalServerError {
			l.Ctx(c.Request.Context()).Error("request failed",
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
		if c.Writer.Written() {
			return
		}
		c.JSON(status, httpdto.NewErrorResponse(chatify_errors.PublicMessage(err), chatify_errors.Code(err)))
	}
}
