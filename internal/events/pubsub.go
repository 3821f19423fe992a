package events

import "context"

// Publisher pushes a serialized envelope onto a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error
}

// Fanout is the local delivery side: the websocket hub.
type Fanout interface {
	Broadcast(channel string, payload []byte)
	SubscriberCount(channel string) int
}
