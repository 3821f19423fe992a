package handler

import (
	"net/http"

	"chatify-realtime/internal/scheduler"
	"chatify-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	runner *scheduler.Runner
}

func NewAdminHandler(runner *scheduler.Runner) *AdminHandler {
	return &AdminHandler{runner: runner}
}

// TriggerScheduler runs one dispatch cycle synchronously and reports its
// outcome.
func (h *AdminHandler) TriggerScheduler(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	res, err := h.runner.Trigger(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}
