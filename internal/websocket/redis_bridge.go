package websocket

import (
	"context"

	"chatify-realtime/internal/events"
)

// RedisBridge feeds room events published by any instance into the local hub.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (b *RedisBridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, []string{events.ChannelPrefixRoom + "*"}, func(channel string, payload []byte) {
		if _, ok := events.RoomIDFromChannel(channel); !ok {
			return
		}
		b.hub.Broadcast(channel, payload)
	})
}
