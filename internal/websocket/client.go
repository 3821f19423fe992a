package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"chatify-realtime/internal/domain"
	"chatify-realtime/internal/events"
	"chatify-realtime/internal/services"
	chatify_errors "chatify-realtime/pkg/errors"
	"chatify-realtime/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBuffer     = 256
)

// Client is one authenticated websocket connection.
type Client struct {
	ID          string
	UserID      string
	DisplayName string
	PhotoURL    string
	Send        chan []byte

	conn    *websocket.Conn
	hub     *Hub
	chat    *services.ChatService
	limiter *rate.Limiter
	logger  *WebSocketLogger

	mu        sync.RWMutex
	channels  map[string]bool
	closed    bool
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, claims services.AccessClaims, hub *Hub, chat *services.ChatService, limiter *rate.Limiter, log *WebSocketLogger) *Client {
	return &Client{
		ID:          uuid.New().String(),
		UserID:      claims.UserID(),
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
		Send:        make(chan []byte, sendBuffer),
		conn:        conn,
		hub:         hub,
		chat:        chat,
		limiter:     limiter,
		logger:      log,
		channels:    make(map[string]bool),
	}
}

func (c *Client) subscribe(channel string) {
	c.mu.Lock()
	c.channels[channel] = true
	c.mu.Unlock()
}

func (c *Client) unsubscribe(channel string) {
	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()
}

func (c *Client) IsSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

// Channels returns a copy of all subscribed channels
func (c *Client) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	return channels
}

// SendMessage queues msg without blocking. A full queue drops the message.
func (c *Client) SendMessage(msg []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- msg:
	default:
		c.logger.Warn("send buffer full", c.UserID, c.ID)
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.Send)
		c.mu.Unlock()
	})
}

func (c *Client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("marshal frame", c.UserID, c.ID, err)
		return
	}
	c.SendMessage(data)
}

// ReadPump reads frames until the connection fails, then unregisters the
// client and lets the registry re-evaluate every room it had joined.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		rooms := c.hub.Unregister(c)
		for _, channel := range rooms {
			if roomID, ok := events.RoomIDFromChannel(channel); ok {
				c.chat.LeaveRoom(ctx, roomID)
			}
		}
		_ = c.conn.Close()
		c.logger.Info("disconnected", c.UserID, c.ID, zap.Int("rooms", len(rooms)))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("unexpected close", c.UserID, c.ID, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.sendJSON(c.handleFrame(ctx, data))
	}
}

func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleFrame(ctx context.Context, data []byte) Ack {
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return errorAck("", fmt.Errorf("malformed frame: %w", chatify_errors.ErrInvalidInput))
	}
	if c.limiter != nil && !c.limiter.Allow() {
		c.logger.Warn("rate limit exceeded", c.UserID, c.ID, zap.String("frame", frame.Type))
		return errorAck(frame.Ref, chatify_errors.ErrRateLimited)
	}

	ctx = context.WithValue(ctx, logger.RequestIdKey, frame.Ref)
	result, err := c.dispatch(ctx, frame)
	if err != nil {
		if chatify_errors.Code(err) == "INTERNAL_ERROR" || chatify_errors.Code(err) == "STORE_UNAVAILABLE" {
			c.logger.Error("frame failed", c.UserID, c.ID, err, zap.String("frame", frame.Type))
		}
		return errorAck(frame.Ref, err)
	}
	return successAck(frame.Ref, result)
}

func (c *Client) dispatch(ctx context.Context, frame InboundFrame) (any, error) {
	switch frame.Type {
	case FramePing:
		return "pong", nil

	case FrameJoinRoom:
		var req roomRequest
		if err := decode(frame.Data, &req); err != nil {
			return nil, err
		}
		if err := c.chat.Authorize(ctx, c.UserID, req.RoomID); err != nil {
			return nil, err
		}
		// Subscribe before the page load so no event in between is missed.
		channel := events.RoomChannel(req.RoomID)
		c.hub.Subscribe(c, channel)
		res, err := c.chat.JoinRoom(ctx, c.UserID, req.RoomID)
		if err != nil {
			c.hub.Unsubscribe(c, channel)
			return nil, err
		}
		return res, nil

	case FrameLeaveRoom:
		var req roomRequest
		if err := decode(frame.Data, &req); err != nil {
			return nil, err
		}
		c.hub.Unsubscribe(c, events.RoomChannel(req.RoomID))
		c.chat.LeaveRoom(ctx, req.RoomID)
		return nil, nil

	case FrameLoadPage:
		var req loadPageRequest
		if err := decode(frame.Data, &req); err != nil {
			return nil, err
		}
		return c.chat.LoadPage(ctx, c.UserID, req.RoomID, req.Before)

	case FrameSendMessage:
		var req sendMessageRequest
		if err := decode(frame.Data, &req); err != nil {
			return nil, err
		}
		kind, err := domain.ParseMessageKind(req.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", chatify_errors.ErrInvalidInput, err)
		}
		return c.chat.SendMessage(ctx, c.UserID, req.RoomID, services.SendInput{
			MessageID:   req.ID,
			Kind:        kind,
			Body:        req.Message,
			FileName:    req.FileName,
			DisplayName: c.DisplayName,
			PhotoURL:    c.PhotoURL,
		})

	case FrameToggleReaction:
		var req reactionRequest
		if err := decode(frame.Data, &req); err != nil {
			return nil, err
		}
		return c.chat.ToggleReaction(ctx, req.RoomID, services.ReactionInput{
			MessageID:   req.MessageID,
			PageID:      req.PageID,
			Kind:        req.Reaction,
			UserID:      c.UserID,
			DisplayName: c.DisplayName,
		})

	case FrameEditMessage:
		var req editRequest
		if err := decode(frame.Data, &req); err != nil {
			return nil, err
		}
		return c.chat.EditMessage(ctx, c.UserID, req.RoomID, req.PageID, req.MessageID, req.Message)

	case FrameDeleteMessage:
		var req messageRequest
		if err := decode(frame.Data, &req); err != nil {
			return nil, err
		}
		return c.chat.DeleteMessage(ctx, c.UserID, req.RoomID, req.PageID, req.MessageID)

	case FrameToggleSaved:
		var req messageRequest
		if err := decode(frame.Data, &req); err != nil {
			return nil, err
		}
		return c.chat.ToggleSaved(ctx, c.UserID, req.RoomID, req.PageID, req.MessageID)

	default:
		return nil, fmt.Errorf("unknown frame type %q: %w", frame.Type, chatify_errors.ErrInvalidInput)
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("missing data: %w", chatify_errors.ErrInvalidInput)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("malformed data: %w", chatify_errors.ErrInvalidInput)
	}
	return nil
}
