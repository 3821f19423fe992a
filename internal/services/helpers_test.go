package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chatify-realtime/internal/domain/room"
	"chatify-realtime/internal/repository"
	"chatify-realtime/internal/store"
	chatify_errors "chatify-realtime/pkg/errors"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	RoomID  string
	Event   string
	Payload any
}

// recordingBroadcaster keeps every published event and lets tests choose the
// connected count per room.
type recordingBroadcaster struct {
	mu        sync.Mutex
	events    []publishedEvent
	connected map[string]int
	fail      atomic.Bool
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{connected: make(map[string]int)}
}

func (b *recordingBroadcaster) Publish(_ context.Context, roomID, event string, payload any) error {
	if b.fail.Load() {
		return chatify_errors.ErrPublishFailed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{RoomID: roomID, Event: event, Payload: payload})
	return nil
}

func (b *recordingBroadcaster) ConnectedCount(roomID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected[roomID]
}

func (b *recordingBroadcaster) setConnected(roomID string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected[roomID] = n
}

func (b *recordingBroadcaster) Events() []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishedEvent(nil), b.events...)
}

// countingRooms counts room record reads.
type countingRooms struct {
	repository.RoomRepository
	gets atomic.Int32
}

func (r *countingRooms) GetRoom(ctx context.Context, roomID string) (room.Room, error) {
	r.gets.Add(1)
	return r.RoomRepository.GetRoom(ctx, roomID)
}

type testEnv struct {
	store       store.DocumentStore
	rooms       *countingRooms
	broadcaster *recordingBroadcaster
	registry    *RoomRegistry
	chat        *ChatService
}

func newTestEnv(t *testing.T, pageSize int) *testEnv {
	t.Helper()
	ps, err := store.OpenPebble("services", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ps.Close() })

	rooms := &countingRooms{RoomRepository: repository.NewRoomRepository(ps)}
	b := newRecordingBroadcaster()
	registry := NewRoomRegistry(ps, rooms, b, SessionOptions{
		PageSize:       pageSize,
		StoreTimeout:   time.Second,
		PublishTimeout: time.Second,
		Clock:          tickingClock(),
	})
	return &testEnv{
		store:       ps,
		rooms:       rooms,
		broadcaster: b,
		registry:    registry,
		chat:        NewChatService(registry, rooms),
	}
}

func (e *testEnv) seedRoom(t *testing.T, id string, members ...string) {
	t.Helper()
	require.NoError(t, e.rooms.Create(context.Background(), room.Room{ID: id, Members: members, IsGroup: len(members) > 2}))
}

func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}
