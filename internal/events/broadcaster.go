package events

import (
	"context"
	"fmt"
	"time"

	chatify_errors "chatify-realtime/pkg/errors"
)

// Broadcaster publishes room events and reports how many members are
// connected to a room on this instance.
type Broadcaster interface {
	Publish(ctx context.Context, roomID, event string, payload any) error
	ConnectedCount(roomID string) int
}

// HubBroadcaster delivers straight to the in-process hub. Used when a single
// instance serves every client.
type HubBroadcaster struct {
	hub   Fanout
	clock func() time.Time
}

func NewHubBroadcaster(hub Fanout) *HubBroadcaster {
	return &HubBroadcaster{hub: hub, clock: time.Now}
}

func (b *HubBroadcaster) Publish(ctx context.Context, roomID, event string, payload any) error {
	data, err := NewEnvelope(event, roomID, payload, b.clock())
	if err != nil {
		return fmt.Errorf("%w: %w", chatify_errors.ErrPublishFailed, err)
	}
	b.hub.Broadcast(RoomChannel(roomID), data)
	return nil
}

func (b *HubBroadcaster) ConnectedCount(roomID string) int {
	return b.hub.SubscriberCount(RoomChannel(roomID))
}

// RedisBroadcaster publishes through Redis so that every instance's hub gets
// the event through its bridge, this one included. Connected counts remain
// local to this instance.
type RedisBroadcaster struct {
	publisher Publisher
	hub       Fanout
	clock     func() time.Time
}

func NewRedisBroadcaster(publisher Publisher, hub Fanout) *RedisBroadcaster {
	return &RedisBroadcaster{publisher: publisher, hub: hub, clock: time.Now}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, roomID, event string, payload any) error {
	data, err := NewEnvelope(event, roomID, payload, b.clock())
	if err != nil {
		return fmt.Errorf("%w: %w", chatify_errors.ErrPublishFailed, err)
	}
	if err := b.publisher.Publish(ctx, RoomChannel(roomID), data); err != nil {
		return fmt.Errorf("%w: %w", chatify_errors.ErrPublishFailed, err)
	}
	return nil
}

func (b *RedisBroadcaster) ConnectedCount(roomID string) int {
	return b.hub.SubscriberCount(RoomChannel(roomID))
}
