package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chatify-realtime/internal/domain/message"
	"chatify-realtime/internal/domain/room"
	"chatify-realtime/internal/repository"
	"chatify-realtime/internal/store"
	chatify_errors "chatify-realtime/pkg/errors"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateSharesOneSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10)
	env.seedRoom(t, "r1", "u1")

	const callers = 25
	sessions := make([]*RoomSession, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := env.registry.GetOrCreate(ctx, "r1")
			assert.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
	assert.Equal(t, int32(1), env.rooms.gets.Load())
	assert.Equal(t, 1, env.registry.Len())
}

func TestGetOrCreateUnknownRoom(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10)

	_, err := env.registry.GetOrCreate(ctx, "missing")
	assert.ErrorIs(t, err, chatify_errors.ErrRoomNotFound)
	_, err = env.registry.GetOrCreate(ctx, "")
	assert.ErrorIs(t, err, chatify_errors.ErrRoomNotFound)
	assert.Equal(t, 0, env.registry.Len())
}

func TestGetOrCreateSurvivesCallerCancellation(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seedRoom(t, "r1", "u1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := env.registry.GetOrCreate(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, SessionActive, s.State())
}

func TestEvictIfIdle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10)
	env.seedRoom(t, "r1", "u1")
	_, err := env.registry.GetOrCreate(ctx, "r1")
	require.NoError(t, err)

	env.broadcaster.setConnected("r1", 1)
	assert.False(t, env.registry.OnMemberDisconnected(ctx, "r1"))
	assert.Equal(t, 1, env.registry.Len())

	env.broadcaster.setConnected("r1", 0)
	assert.True(t, env.registry.OnMemberDisconnected(ctx, "r1"))
	assert.Equal(t, 0, env.registry.Len())
	assert.False(t, env.registry.EvictIfIdle(ctx, "r1"))
}

func TestRecreatedSessionContinuesLog(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 3)
	env.seedRoom(t, "r1", "u1")

	first, err := env.registry.GetOrCreate(ctx, "r1")
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := first.SendMessage(ctx, message.Draft{ID: id, AuthorID: "u1", Body: id})
		require.NoError(t, err)
	}
	require.True(t, env.registry.Evict("r1"))

	second, err := env.registry.GetOrCreate(ctx, "r1")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.Metadata().PageIDs, second.Metadata().PageIDs)
	assert.Equal(t, first.CurrentPageID(), second.CurrentPageID())
	assert.Equal(t, 1, second.CurrentPageCount())

	msg, err := second.SendMessage(ctx, message.Draft{ID: "e", AuthorID: "u1", Body: "e"})
	require.NoError(t, err)
	assert.Equal(t, first.CurrentPageID(), msg.PageID)
}

func TestDoReentersAfterEviction(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10)
	env.seedRoom(t, "r1", "u1")

	calls := 0
	var seen []*RoomSession
	err := env.registry.Do(ctx, "r1", func(s *RoomSession) error {
		calls++
		seen = append(seen, s)
		if calls == 1 {
			env.registry.Evict("r1")
		}
		_, err := s.SendMessage(ctx, message.Draft{ID: "m1", AuthorID: "u1", Body: "hi"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, seen, 2)
	assert.NotSame(t, seen[0], seen[1])

	// Every attempt evicted: Do gives up with the eviction error.
	err = env.registry.Do(ctx, "r1", func(s *RoomSession) error {
		env.registry.Evict("r1")
		return s.checkActive()
	})
	assert.ErrorIs(t, err, chatify_errors.ErrSessionEvicted)
}

// gatedStore parks page appends until release is closed while block is set.
type gatedStore struct {
	store.DocumentStore
	block   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) AppendToArray(ctx context.Context, key, field string, values ...any) error {
	if s.block.Load() && strings.Contains(key, "/pages/") {
		s.entered <- struct{}{}
		<-s.release
	}
	return s.DocumentStore.AppendToArray(ctx, key, field, values...)
}

func TestEvictWaitsForSendInProgress(t *testing.T) {
	ctx := context.Background()
	ps, err := store.OpenPebble("evict", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ps.Close() })

	rooms := repository.NewRoomRepository(ps)
	require.NoError(t, rooms.Create(ctx, room.Room{ID: "r1", Members: []string{"u1"}}))
	gated := &gatedStore{DocumentStore: ps, entered: make(chan struct{}, 1), release: make(chan struct{})}
	registry := NewRoomRegistry(gated, rooms, newRecordingBroadcaster(), SessionOptions{PageSize: 5, Clock: tickingClock()})

	first, err := registry.GetOrCreate(ctx, "r1")
	require.NoError(t, err)

	gated.block.Store(true)
	sent := make(chan error, 1)
	go func() {
		_, err := first.SendMessage(ctx, message.Draft{ID: "m1", AuthorID: "u1", Body: "hi"})
		sent <- err
	}()
	select {
	case <-gated.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("append never started")
	}

	evicted := make(chan bool, 1)
	go func() { evicted <- registry.Evict("r1") }()
	select {
	case <-evicted:
		t.Fatal("eviction finished while an append was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	same, err := registry.GetOrCreate(ctx, "r1")
	require.NoError(t, err)
	assert.Same(t, first, same)
	assert.Equal(t, 1, registry.Len())

	gated.block.Store(false)
	close(gated.release)
	require.NoError(t, <-sent)
	assert.True(t, <-evicted)
	assert.Equal(t, SessionEvicted, first.State())

	second, err := registry.GetOrCreate(ctx, "r1")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.CurrentPageID(), second.CurrentPageID())
	assert.Equal(t, 1, second.CurrentPageCount())
}
