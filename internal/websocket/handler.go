package websocket

import (
	"context"
	"net/http"
	"strings"

	"chatify-realtime/internal/services"
	"chatify-realtime/internal/transport/httpdto"
	chatify_errors "chatify-realtime/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Limits configures the per-connection token bucket for inbound frames.
type Limits struct {
	EventsPerSecond float64
	Burst           int
}

type Handler struct {
	auth     *services.AuthService
	hub      *Hub
	chat     *services.ChatService
	limits   Limits
	logger   *WebSocketLogger
	upgrader websocket.Upgrader
	baseCtx  context.Context
}

// NewHandler builds the upgrade endpoint. Connections live until the peer
// goes away or baseCtx is cancelled.
func NewHandler(baseCtx context.Context, auth *services.AuthService, hub *Hub, chat *services.ChatService, limits Limits, allowedOrigins []string, log *WebSocketLogger) *Handler {
	return &Handler{
		auth:    auth,
		hub:     hub,
		chat:    chat,
		limits:  limits,
		logger:  log,
		baseCtx: baseCtx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *Handler) Connect(c *gin.Context) {
	token := extractToken(c)
	claims, err := h.auth.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", chatify_errors.Code(chatify_errors.ErrUnauthorized)))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade failed", claims.UserID(), "", err)
		return
	}

	var limiter *rate.Limiter
	if h.limits.EventsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.limits.EventsPerSecond), max(h.limits.Burst, 1))
	}
	client := NewClient(conn, claims, h.hub, h.chat, limiter, h.logger)
	h.hub.Register(client)
	h.logger.Info("connected", client.UserID, client.ID)

	ctx, cancel := context.WithCancel(services.WithClaims(h.baseCtx, claims))
	defer cancel()

	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return ""
}

// originChecker allows requests without an Origin header and those whose
// origin is listed. A "*" entry allows everything.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
