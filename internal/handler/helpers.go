package handler

import (
	"net/http"

	"chatify-realtime/internal/services"
	"chatify-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// fail hands err to middleware.ErrorHandler, which picks status and code.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(msg, "INVALID_REQUEST"))
}

func requireUser(c *gin.Context) (services.AccessClaims, bool) {
	claims, ok := services.ClaimsFromContext(c.Request.Context())
	if !ok || claims.UserID() == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return services.AccessClaims{}, false
	}
	return claims, true
}
