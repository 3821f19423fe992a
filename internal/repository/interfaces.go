package repository

import (
	"context"
	"time"

	"chatify-realtime/internal/domain/message"
	"chatify-realtime/internal/domain/room"
	"chatify-realtime/internal/domain/schedule"
)

// RoomRepository reads room records and maintains their saved-message set.
// Room creation and membership changes belong to an external service; Create
// exists for provisioning and tests.
type RoomRepository interface {
	Create(ctx context.Context, r room.Room) error
	GetRoom(ctx context.Context, roomID string) (room.Room, error)

	AddSavedMessage(ctx context.Context, roomID string, m message.Message) error
	RemoveSavedMessage(ctx context.Context, roomID, messageID string) error
}

type ScheduledMessageRepository interface {
	Create(ctx context.Context, s *schedule.ScheduledMessage) error
	GetByID(ctx context.Context, id string) (schedule.ScheduledMessage, error)
	Update(ctx context.Context, s schedule.ScheduledMessage) error
	Delete(ctx context.Context, id string) error

	ListDue(ctx context.Context, now time.Time) ([]schedule.ScheduledMessage, error)
	ListByOwner(ctx context.Context, ownerID string) ([]schedule.ScheduledMessage, error)
	ListPendingByRoom(ctx context.Context, roomID string) ([]schedule.ScheduledMessage, error)

	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	Cancel(ctx context.Context, id string) error
}
