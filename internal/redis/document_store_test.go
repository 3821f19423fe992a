package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"chatify-realtime/internal/store"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestDocumentStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	s := NewDocumentStore(client)

	_, err := s.Get(ctx, "rooms/r1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, "rooms/r1", store.Fields{"a": 1}), store.ErrNotFound)

	require.NoError(t, s.Create(ctx, "rooms/r1", store.Fields{"members": []string{"u1", "u2"}}))
	assert.ErrorIs(t, s.Create(ctx, "rooms/r1", store.Fields{}), store.ErrAlreadyExists)
	assert.True(t, mr.Exists("doc:rooms/r1"))

	require.NoError(t, s.AppendToArray(ctx, "rooms/r1", "chat_doc_ids", "p1"))
	require.NoError(t, s.AppendToArray(ctx, "rooms/r1", "chat_doc_ids", "p1", "p2"))

	doc, err := s.Get(ctx, "rooms/r1")
	require.NoError(t, err)
	var ids []string
	require.NoError(t, doc.Field("chat_doc_ids", &ids))
	assert.Equal(t, []string{"p1", "p2"}, ids)
	assert.Equal(t, int64(3), doc.Version)

	assert.ErrorIs(t, s.CompareAndSet(ctx, "rooms/r1", 1, store.Fields{"name": "x"}), store.ErrVersionMismatch)
	require.NoError(t, s.CompareAndSet(ctx, "rooms/r1", 3, store.Fields{"name": "x"}))

	require.NoError(t, s.Set(ctx, "rooms/r1", store.Fields{"name": "only"}))
	doc, err = s.Get(ctx, "rooms/r1")
	require.NoError(t, err)
	assert.NotContains(t, doc.Fields, "members")
	assert.Equal(t, int64(5), doc.Version)

	require.NoError(t, s.Delete(ctx, "rooms/r1"))
	_, err = s.Get(ctx, "rooms/r1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDocumentStoreConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	s := NewDocumentStore(client)
	s.maxRetries = 1000
	require.NoError(t, s.Create(ctx, "page", store.Fields{"chat_history": []any{}}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.AppendToArray(ctx, "page", "chat_history", map[string]int{"id": i}))
		}(i)
	}
	wg.Wait()

	doc, err := s.Get(ctx, "page")
	require.NoError(t, err)
	var items []map[string]int
	require.NoError(t, doc.Field("chat_history", &items))
	assert.Len(t, items, 20)
}

func TestPublisherAndSubscriber(t *testing.T) {
	_, client := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	received := make(chan string, 4)
	sub := NewSubscriber(client)
	sub.OnReady = func() { close(ready) }

	done := make(chan error, 1)
	go func() {
		done <- sub.Subscribe(ctx, []string{"channel:room:*"}, func(channel string, payload []byte) {
			received <- channel + "|" + string(payload)
		})
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was never confirmed")
	}

	pub := NewPublisher(client)
	require.NoError(t, pub.Publish(ctx, "channel:room:r1", []byte("one")))
	require.NoError(t, pub.Publish(ctx, "other:r1", []byte("ignored")))
	require.NoError(t, pub.Publish(ctx, "channel:room:r1", []byte("two")))

	for _, want := range []string{"channel:room:r1|one", "channel:room:r1|two"} {
		select {
		case got := <-received:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestSubscriberStopsWithoutTraffic(t *testing.T) {
	_, client := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	sub := NewSubscriber(client)
	sub.OnReady = func() { close(ready) }

	done := make(chan error, 1)
	go func() {
		done <- sub.Subscribe(ctx, []string{"channel:room:*"}, func(string, []byte) {
			t.Error("no message was published")
		})
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was never confirmed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("idle subscriber did not stop after cancellation")
	}
}
