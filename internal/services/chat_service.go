package services

import (
	"context"
	"errors"

	"chatify-realtime/internal/domain"
	"chatify-realtime/internal/domain/message"
	"chatify-realtime/internal/domain/room"
	"chatify-realtime/internal/repository"
	chatify_errors "chatify-realtime/pkg/errors"

	"github.com/google/uuid"
)

// ChatService is the client-facing API over the room registry. It checks room
// membership and routes every call through RoomRegistry.Do.
type ChatService struct {
	registry *RoomRegistry
	rooms    repository.RoomRepository
}

func NewChatService(registry *RoomRegistry, rooms repository.RoomRepository) *ChatService {
	return &ChatService{registry: registry, rooms: rooms}
}

func (s *ChatService) Registry() *RoomRegistry {
	return s.registry
}

// JoinResult is returned to a client joining a room. Page is nil for a room
// without messages.
type JoinResult struct {
	Room room.Metadata `json:"room"`
	Page *room.Page    `json:"page"`
}

type SendInput struct {
	MessageID   string
	Kind        domain.MessageKind
	Body        string
	FileName    string
	DisplayName string
	PhotoURL    string
}

// withMember runs fn when userID belongs to roomID. A session loaded only to
// reject a non-member is evicted again unless somebody is connected to it.
func (s *ChatService) withMember(ctx context.Context, userID, roomID string, fn func(*RoomSession) error) error {
	err := s.registry.Do(ctx, roomID, func(rs *RoomSession) error {
		if !rs.HasMember(userID) {
			return chatify_errors.ErrForbidden
		}
		return fn(rs)
	})
	if errors.Is(err, chatify_errors.ErrForbidden) {
		s.registry.EvictIfIdle(ctx, roomID)
	}
	return err
}

// Authorize returns ErrForbidden when userID is not a member of roomID.
func (s *ChatService) Authorize(ctx context.Context, userID, roomID string) error {
	return s.withMember(ctx, userID, roomID, func(*RoomSession) error { return nil })
}

func (s *ChatService) JoinRoom(ctx context.Context, userID, roomID string) (JoinResult, error) {
	var res JoinResult
	err := s.withMember(ctx, userID, roomID, func(rs *RoomSession) error {
		page, err := rs.LoadOlderPage(ctx, "")
		switch {
		case err == nil:
			res.Page = &page
		case errors.Is(err, chatify_errors.ErrNoSuchPage):
		default:
			return err
		}
		res.Room = rs.Metadata()
		return nil
	})
	return res, err
}

func (s *ChatService) LoadPage(ctx context.Context, userID, roomID, beforePageID string) (room.Page, error) {
	var page room.Page
	err := s.withMember(ctx, userID, roomID, func(rs *RoomSession) error {
		var err error
		page, err = rs.LoadOlderPage(ctx, beforePageID)
		return err
	})
	return page, err
}

// SendMessage appends a member's message. A missing message id is generated.
func (s *ChatService) SendMessage(ctx context.Context, userID, roomID string, in SendInput) (message.Message, error) {
	if in.MessageID == "" {
		in.MessageID = uuid.New().String()
	}
	var msg message.Message
	err := s.withMember(ctx, userID, roomID, func(rs *RoomSession) error {
		var err error
		msg, err = rs.SendMessage(ctx, message.Draft{
			ID:                in.MessageID,
			AuthorID:          userID,
			Kind:              in.Kind,
			Body:              in.Body,
			FileName:          in.FileName,
			AuthorDisplayName: in.DisplayName,
			AuthorPhotoURL:    in.PhotoURL,
		})
		return err
	})
	return msg, err
}

func (s *ChatService) ToggleReaction(ctx context.Context, roomID string, in ReactionInput) (message.Message, error) {
	var msg message.Message
	err := s.withMember(ctx, in.UserID, roomID, func(rs *RoomSession) error {
		var err error
		msg, err = rs.ToggleReaction(ctx, in)
		return err
	})
	return msg, err
}

func (s *ChatService) EditMessage(ctx context.Context, userID, roomID, pageID, messageID, body string) (message.Message, error) {
	var msg message.Message
	err := s.withMember(ctx, userID, roomID, func(rs *RoomSession) error {
		var err error
		msg, err = rs.EditMessage(ctx, messageID, pageID, body)
		return err
	})
	return msg, err
}

func (s *ChatService) DeleteMessage(ctx context.Context, userID, roomID, pageID, messageID string) (message.Message, error) {
	var msg message.Message
	err := s.withMember(ctx, userID, roomID, func(rs *RoomSession) error {
		var err error
		msg, err = rs.DeleteMessage(ctx, messageID, pageID)
		return err
	})
	return msg, err
}

func (s *ChatService) ToggleSaved(ctx context.Context, userID, roomID, pageID, messageID string) (message.Message, error) {
	var msg message.Message
	err := s.withMember(ctx, userID, roomID, func(rs *RoomSession) error {
		var err error
		msg, err = rs.ToggleSaved(ctx, messageID, pageID)
		return err
	})
	return msg, err
}

// SavedMessages reads the saved set straight from the room record; it does not
// need a session.
func (s *ChatService) SavedMessages(ctx context.Context, userID, roomID string) ([]message.Message, error) {
	rm, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !rm.HasMember(userID) {
		return nil, chatify_errors.ErrForbidden
	}
	if rm.SavedMessages == nil {
		return []message.Message{}, nil
	}
	return rm.SavedMessages, nil
}

// LeaveRoom is called when a member stops listening to a room on this
// instance.
func (s *ChatService) LeaveRoom(ctx context.Context, roomID string) {
	s.registry.OnMemberDisconnected(ctx, roomID)
}
