package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"chatify-realtime/internal/domain/message"
	"chatify-realtime/internal/domain/room"
	"chatify-realtime/internal/domain/schedule"
	"chatify-realtime/internal/store"
	chatify_errors "chatify-realtime/pkg/errors"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStore(t *testing.T) store.DocumentStore {
	t.Helper()
	s, err := store.OpenPebble("repo", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRoomRepository(t *testing.T) {
	ctx := context.Background()
	rooms := NewRoomRepository(newMemStore(t))

	_, err := rooms.GetRoom(ctx, "r1")
	assert.ErrorIs(t, err, chatify_errors.ErrRoomNotFound)

	require.NoError(t, rooms.Create(ctx, room.Room{ID: "r1", Members: []string{"u1", "u2"}, DisplayName: "general"}))
	assert.ErrorIs(t, rooms.Create(ctx, room.Room{ID: "r1"}), chatify_errors.ErrConflict)

	rm, err := rooms.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "general", rm.DisplayName)
	assert.True(t, rm.HasMember("u2"))
	assert.False(t, rm.HasMember("u3"))
	assert.Empty(t, rm.PageIDs)
}

func TestRoomRepositorySavedMessages(t *testing.T) {
	ctx := context.Background()
	rooms := NewRoomRepository(newMemStore(t))
	require.NoError(t, rooms.Create(ctx, room.Room{ID: "r1", Members: []string{"u1"}}))

	m := message.Message{ID: "m1", Body: "hello", Saved: true}
	require.NoError(t, rooms.AddSavedMessage(ctx, "r1", m))

	m.Body = "hello again"
	require.NoError(t, rooms.AddSavedMessage(ctx, "r1", m))

	rm, err := rooms.GetRoom(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, rm.SavedMessages, 1)
	assert.Equal(t, "hello again", rm.SavedMessages[0].Body)

	require.NoError(t, rooms.RemoveSavedMessage(ctx, "r1", "m1"))
	require.NoError(t, rooms.RemoveSavedMessage(ctx, "r1", "m1"))
	rm, err = rooms.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, rm.SavedMessages)

	assert.ErrorIs(t, rooms.AddSavedMessage(ctx, "missing", m), chatify_errors.ErrRoomNotFound)
}

func newRecord(id, owner, roomID string, at time.Time) *schedule.ScheduledMessage {
	return &schedule.ScheduledMessage{
		ID:          id,
		OwnerID:     owner,
		RoomID:      roomID,
		Payload:     schedule.Payload{Body: "body " + id},
		ScheduledAt: at,
		Timezone:    "UTC",
		CreatedAt:   at.Add(-time.Hour),
	}
}

func TestScheduledRepositoryIndexes(t *testing.T) {
	ctx := context.Background()
	repo := NewScheduledMessageRepository(newMemStore(t))
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newRecord("s2", "u1", "r1", now.Add(-time.Minute))))
	require.NoError(t, repo.Create(ctx, newRecord("s1", "u1", "r1", now.Add(-time.Hour))))
	require.NoError(t, repo.Create(ctx, newRecord("s3", "u2", "r2", now.Add(time.Hour))))
	assert.ErrorIs(t, repo.Create(ctx, newRecord("s1", "u1", "r1", now)), chatify_errors.ErrConflict)

	due, err := repo.ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "s1", due[0].ID)
	assert.Equal(t, "s2", due[1].ID)
	assert.Equal(t, schedule.StatusPending, due[0].Status)
	assert.Equal(t, schedule.RecurrenceNone, due[0].Recurrence)

	mine, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	inRoom, err := repo.ListPendingByRoom(ctx, "r2")
	require.NoError(t, err)
	require.Len(t, inRoom, 1)
	assert.Equal(t, "s3", inRoom[0].ID)
}

func TestListDueSkipsUnreadableRecord(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)
	repo := NewScheduledMessageRepository(s)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newRecord("s1", "u1", "r1", now.Add(-time.Hour))))
	require.NoError(t, s.Create(ctx, store.ScheduledKey("bad"), store.Fields{
		"id":             "bad",
		"user_uid":       "u1",
		"room_id":        "r1",
		"scheduled_time": 1717243200,
		"status":         "pending",
	}))
	require.NoError(t, store.AppendOrCreate(ctx, s, store.ScheduledPendingIndexKey(), indexIDsField, "bad"))
	require.NoError(t, store.AppendOrCreate(ctx, s, store.ScheduledOwnerIndexKey("u1"), indexIDsField, "bad"))
	require.NoError(t, repo.Create(ctx, newRecord("s2", "u1", "r1", now.Add(-time.Minute))))

	due, err := repo.ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "s1", due[0].ID)
	assert.Equal(t, "s2", due[1].ID)

	mine, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestScheduledRepositoryTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewScheduledMessageRepository(newMemStore(t))
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newRecord("s1", "u1", "r1", now.Add(-time.Minute))))
	require.NoError(t, repo.Create(ctx, newRecord("s2", "u1", "r1", now.Add(-time.Minute))))

	require.NoError(t, repo.MarkSent(ctx, "s1", now))
	assert.ErrorIs(t, repo.MarkSent(ctx, "s1", now), chatify_errors.ErrInvalidTransition)
	assert.ErrorIs(t, repo.Cancel(ctx, "s1"), chatify_errors.ErrInvalidTransition)

	sent, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	assert.True(t, now.Equal(*sent.SentAt))

	require.NoError(t, repo.Cancel(ctx, "s2"))
	rec := *newRecord("s2", "u1", "r1", now.Add(time.Hour))
	assert.ErrorIs(t, repo.Update(ctx, rec), chatify_errors.ErrInvalidTransition)

	due, err := repo.ListDue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)

	// The owner index still lists finished records.
	mine, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	require.NoError(t, repo.Delete(ctx, "s2"))
	_, err = repo.GetByID(ctx, "s2")
	assert.ErrorIs(t, err, chatify_errors.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "s2"), chatify_errors.ErrNotFound)
	assert.ErrorIs(t, repo.MarkSent(ctx, "missing", now), chatify_errors.ErrNotFound)
}

func TestScheduledRepositoryUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewScheduledMessageRepository(newMemStore(t))
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newRecord("s1", "u1", "r1", now)))

	rec := *newRecord("s1", "u1", "r1", now.Add(24*time.Hour))
	rec.Payload.Body = "changed"
	rec.Recurrence = schedule.RecurrenceWeekly
	require.NoError(t, repo.Update(ctx, rec))

	got, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "changed", got.Payload.Body)
	assert.Equal(t, schedule.RecurrenceWeekly, got.Recurrence)
	assert.True(t, rec.ScheduledAt.Equal(got.ScheduledAt))
	assert.Equal(t, schedule.StatusPending, got.Status)
}

// TestPostgresDocumentStore runs against a real database when
// CHATIFY_TEST_POSTGRES_DSN is set.
func TestPostgresDocumentStore(t *testing.T) {
	dsn := os.Getenv("CHATIFY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHATIFY_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, DropSchema(ctx, pool))
	require.NoError(t, InitSchema(ctx, pool))
	s := NewDocumentStore(pool)

	require.NoError(t, s.Create(ctx, "rooms/r1", store.Fields{"chat_doc_ids": []string{}}))
	assert.ErrorIs(t, s.Create(ctx, "rooms/r1", store.Fields{}), store.ErrAlreadyExists)

	require.NoError(t, s.AppendToArray(ctx, "rooms/r1", "chat_doc_ids", "p1"))
	require.NoError(t, s.AppendToArray(ctx, "rooms/r1", "chat_doc_ids", "p1"))
	assert.ErrorIs(t, s.AppendToArray(ctx, "rooms/none", "chat_doc_ids", "p1"), store.ErrNotFound)

	doc, err := s.Get(ctx, "rooms/r1")
	require.NoError(t, err)
	var ids []string
	require.NoError(t, doc.Field("chat_doc_ids", &ids))
	assert.Equal(t, []string{"p1"}, ids)

	assert.ErrorIs(t, s.CompareAndSet(ctx, "rooms/r1", doc.Version-1, store.Fields{"name": "x"}), store.ErrVersionMismatch)
	require.NoError(t, s.CompareAndSet(ctx, "rooms/r1", doc.Version, store.Fields{"name": "x"}))
	assert.ErrorIs(t, s.CompareAndSet(ctx, "rooms/none", 1, store.Fields{"name": "x"}), store.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "rooms/r1"))
	_, err = s.Get(ctx, "rooms/r1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
