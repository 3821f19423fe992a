package handler

import (
	"net/http"

	"chatify-realtime/internal/domain"
	"chatify-realtime/internal/services"
	"chatify-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// RoomHandler exposes the room operations over HTTP. Every successful
// mutation is also broadcast to the room's websocket subscribers.
type RoomHandler struct {
	chat *services.ChatService
}

func NewRoomHandler(chat *services.ChatService) *RoomHandler {
	return &RoomHandler{chat: chat}
}

func (h *RoomHandler) Join(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	res, err := h.chat.JoinRoom(c.Request.Context(), claims.UserID(), c.Param("roomId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}

func (h *RoomHandler) LoadPage(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	page, err := h.chat.LoadPage(c.Request.Context(), claims.UserID(), c.Param("roomId"), c.Query("before"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(page))
}

func (h *RoomHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	kind, err := domain.ParseMessageKind(req.Type)
	if err != nil {
		badRequest(c, "invalid message type")
		return
	}
	claims, ok := requireUser(c)
	if !ok {
		return
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), claims.UserID(), c.Param("roomId"), services.SendInput{
		MessageID:   req.ID,
		Kind:        kind,
		Body:        req.Message,
		FileName:    req.FileName,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(msg))
}

func (h *RoomHandler) ToggleReaction(c *gin.Context) {
	var req httpdto.ToggleReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	claims, ok := requireUser(c)
	if !ok {
		return
	}

	msg, err := h.chat.ToggleReaction(c.Request.Context(), c.Param("roomId"), services.ReactionInput{
		MessageID:   c.Param("messageId"),
		PageID:      c.Param("pageId"),
		Kind:        req.Reaction,
		UserID:      claims.UserID(),
		DisplayName: claims.Name,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

func (h *RoomHandler) Edit(c *gin.Context) {
	var req httpdto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	claims, ok := requireUser(c)
	if !ok {
		return
	}

	msg, err := h.chat.EditMessage(c.Request.Context(), claims.UserID(), c.Param("roomId"), c.Param("pageId"), c.Param("messageId"), req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

func (h *RoomHandler) Delete(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	msg, err := h.chat.DeleteMessage(c.Request.Context(), claims.UserID(), c.Param("roomId"), c.Param("pageId"), c.Param("messageId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

func (h *RoomHandler) ToggleSaved(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	msg, err := h.chat.ToggleSaved(c.Request.Context(), claims.UserID(), c.Param("roomId"), c.Param("pageId"), c.Param("messageId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

func (h *RoomHandler) Saved(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	saved, err := h.chat.SavedMessages(c.Request.Context(), claims.UserID(), c.Param("roomId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(saved))
}
