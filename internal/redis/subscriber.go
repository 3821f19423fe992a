package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Subscriber delivers messages of every channel matching the given patterns,
// in the order Redis emits them, until ctx is cancelled.
type Subscriber struct {
	client *redis.Client

	// OnReady, when set, is called once the pattern subscription is confirmed.
	OnReady func()
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

func (s *Subscriber) Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error {
	sub := s.client.PSubscribe(ctx, patterns...)
	defer sub.Close()
	stop := context.AfterFunc(ctx, func() { _ = sub.Close() })
	defer stop()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if s.OnReady != nil {
		s.OnReady()
	}

	// go-redis reads ignore ctx cancellation; closing sub above unblocks them.
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}
