package websocket

import (
	"chatify-realtime/pkg/logger"

	"go.uber.org/zap"
)

// WebSocketLogger provides structured logging for WebSocket events
type WebSocketLogger struct {
	logger *zap.Logger
}

func NewWebSocketLogger(l *logger.Logger) *WebSocketLogger {
	if l == nil {
		l = logger.NewNop()
	}
	return &WebSocketLogger{
		logger: l.Logger.With(zap.String("component", "websocket")),
	}
}

func (l *WebSocketLogger) Info(event, userID, clientID string, fields ...zap.Field) {
	l.logger.Info("websocket_event", l.fields(event, userID, clientID, fields)...)
}

func (l *WebSocketLogger) Error(event, userID, clientID string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	l.logger.Error("websocket_error", l.fields(event, userID, clientID, fields)...)
}

func (l *WebSocketLogger) Warn(event, userID, clientID string, fields ...zap.Field) {
	l.logger.Warn("websocket_warning", l.fields(event, userID, clientID, fields)...)
}

func (l *WebSocketLogger) fields(event, userID, clientID string, extra []zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID),
		zap.String("client_id", clientID),
	}, extra...)
}
