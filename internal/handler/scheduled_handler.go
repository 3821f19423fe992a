package handler

import (
	"net/http"

	"chatify-realtime/internal/domain"
	"chatify-realtime/internal/domain/schedule"
	"chatify-realtime/internal/services"
	"chatify-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type ScheduledHandler struct {
	service *services.ScheduledService
}

func NewScheduledHandler(service *services.ScheduledService) *ScheduledHandler {
	return &ScheduledHandler{service: service}
}

func (h *ScheduledHandler) Create(c *gin.Context) {
	var req httpdto.CreateScheduledMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "required fields: room_id, message, scheduled_time")
		return
	}
	kind, err := domain.ParseMessageKind(req.MessageType)
	if err != nil {
		badRequest(c, "invalid message_type")
		return
	}
	recurrence, err := schedule.ParseRecurrence(req.Recurrence)
	if err != nil {
		badRequest(c, "invalid recurring_pattern")
		return
	}
	claims, ok := requireUser(c)
	if !ok {
		return
	}

	rec, err := h.service.Create(c.Request.Context(), claims.UserID(), services.ScheduleInput{
		RoomID: req.RoomID,
		Payload: schedule.Payload{
			Kind:        kind,
			Body:        req.Message,
			FileName:    req.FileName,
			DisplayName: claims.Name,
			PhotoURL:    claims.Picture,
		},
		ScheduledAt: req.ScheduledAt,
		Recurrence:  recurrence,
		Timezone:    req.Timezone,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(rec))
}

func (h *ScheduledHandler) ListMine(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	items, err := h.service.ListByOwner(c.Request.Context(), claims.UserID(), c.Query("room_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(items))
}

func (h *ScheduledHandler) ListByRoom(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	items, err := h.service.ListByRoom(c.Request.Context(), claims.UserID(), c.Param("roomId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(items))
}

func (h *ScheduledHandler) Update(c *gin.Context) {
	var req httpdto.UpdateScheduledMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	update := services.ScheduleUpdate{
		Body:        req.Message,
		ScheduledAt: req.ScheduledAt,
		Timezone:    req.Timezone,
	}
	if req.Recurrence != nil {
		recurrence, err := schedule.ParseRecurrence(*req.Recurrence)
		if err != nil {
			badRequest(c, "invalid recurring_pattern")
			return
		}
		update.Recurrence = &recurrence
	}
	claims, ok := requireUser(c)
	if !ok {
		return
	}

	rec, err := h.service.Update(c.Request.Context(), claims.UserID(), c.Param("id"), update)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(rec))
}

func (h *ScheduledHandler) Cancel(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.service.Cancel(c.Request.Context(), claims.UserID(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": schedule.StatusCancelled}))
}

func (h *ScheduledHandler) Delete(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims.UserID(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"deleted": true}))
}
