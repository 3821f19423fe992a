package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"chatify-realtime/internal/domain"
	"chatify-realtime/internal/domain/message"
	"chatify-realtime/internal/events"
	"chatify-realtime/internal/store"
	chatify_errors "chatify-realtime/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessagePublishesStoredMessage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10)
	env.seedRoom(t, "r1", "u1", "u2")

	s, err := env.registry.GetOrCreate(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, SessionActive, s.State())

	msg, err := s.SendMessage(ctx, message.Draft{ID: "m1", AuthorID: "u1", Body: "hi", AuthorDisplayName: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, s.CurrentPageID(), msg.PageID)
	assert.Equal(t, domain.MessageKindText, msg.Kind)
	assert.False(t, msg.CreatedAt.IsZero())

	evs := env.broadcaster.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, "r1", evs[0].RoomID)
	assert.Equal(t, events.EventMessageCreated, evs[0].Event)
	assert.Equal(t, msg, evs[0].Payload)

	page, err := s.LoadOlderPage(ctx, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "m1", page.Messages[0].ID)
}

func TestSendMessageValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10)
	env.seedRoom(t, "r1", "u1")
	s, err := env.registry.GetOrCreate(ctx, "r1")
	require.NoError(t, err)

	cases := []message.Draft{
		{AuthorID: "u1", Body: "no id"},
		{ID: "m1", Body: "no author"},
		{ID: "m2", AuthorID: "u1", Kind: domain.MessageKindFile, Body: "url"},
	}
	for _, d := range cases {
		_, err := s.SendMessage(ctx, d)
		assert.ErrorIs(t, err, chatify_errors.ErrInvalidInput, "draft %+v", d)
	}

	// System and assistant messages have no member author.
	_, err = s.SendMessage(ctx, message.Draft{ID: "m3", Kind: domain.MessageKindSystem, Body: "joined"})
	assert.NoError(t, err)
	assert.Len(t, env.broadcaster.Events(), 1)
}

func TestFailedAppendPublishesNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10)
	env.seedRoom(t, "r1", "u1")
	s, err := env.registry.GetOrCreate(ctx, "r1")
	require.NoError(t, err)

	// The room record disappears under the session: the first append has to
	// roll over and fails to index the page.
	require.NoError(t, env.store.Delete(ctx, store.RoomKey("r1")))
	_, err = s.SendMessage(ctx, message.Draft{ID: "m1", AuthorID: "u1", Body: "lost"})
	assert.ErrorIs(t, err, chatify_errors.ErrRoomNotFound)
	assert.Empty(t, env.broadcaster.Events())
	assert.Equal(t, 0, s.CurrentPageCount())
}

func TestPublishFailureDoesNotFailSend(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10)
	env.seedRoom(t, "r1", "u1")
	s, err := env.registry.GetOrCreate(ctx, "r1")
	require.NoError(t, err)

	env.broadcaster.fail.Store(true)
	msg, err := s.SendMessage(ctx, message.Draft{ID: "m1", AuthorID: "u1", Body: "hi"})
	require.NoError(t, err)

	page, err := s.LoadOlderPage(ctx, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, msg.ID, page.Messages[0].ID)
}

func TestConcurrentSendsKeepEventOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 4)
	env.seedRoom(t, "r1", "u1", "u2")
	s, err := env.registry.GetOrCreate(ctx, "r1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.SendMessage(ctx, message.Draft{ID: fmt.Sprintf("m%02d", i), AuthorID: "u1", Body: "x"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	var stored []string
	pageIDs := s.Metadata().PageIDs
	for i := len(pageIDs) - 1; i >= 0; i-- {
		before := ""
		if i+1 < len(pageIDs) {
			before = pageIDs[i+1]
		}
		page, err := s.LoadOlderPage(ctx, before)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(page.Messages), 4)
		ids := make([]string, 0, len(page.Messages))
		for _, m := range page.Messages {
			ids = append(ids, m.ID)
		}
		stored = append(ids, stored...)
	}

	var published []string
	for _, ev := range env.broadcaster.Events() {
		published = append(published, ev.Payload.(message.Message).ID)
	}
	assert.Len(t, stored, 30)
	assert.Equal(t, stored, published)
}

func TestMutationsPublishEvents(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10)
	env.seedRoom(t, "r1", "u1", "u2")
	s, err := env.registry.GetOrCreate(ctx, "r1")
	require.NoError(t, err)

	msg, err := s.SendMessage(ctx, message.Draft{ID: "m1", AuthorID: "u1", Body: "hi"})
	require.NoError(t, err)

	reacted, err := s.ToggleReaction(ctx, ReactionInput{MessageID: "m1", PageID: msg.PageID, Kind: "like", UserID: "u2", DisplayName: "Bob"})
	require.NoError(t, err)
	require.Len(t, reacted.Reactions, 1)

	edited, err := s.EditMessage(ctx, "m1", msg.PageID, "hello")
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	assert.Equal(t, "hello", edited.Body)
	assert.Len(t, edited.Reactions, 1)

	saved, err := s.ToggleSaved(ctx, "m1", msg.PageID)
	require.NoError(t, err)
	assert.True(t, saved.Saved)

	rm, err := env.rooms.GetRoom(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, rm.SavedMessages, 1)
	assert.Equal(t, "hello", rm.SavedMessages[0].Body)

	unsaved, err := s.ToggleSaved(ctx, "m1", msg.PageID)
	require.NoError(t, err)
	assert.False(t, unsaved.Saved)
	rm, err = env.rooms.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, rm.SavedMessages)

	deleted, err := s.DeleteMessage(ctx, "m1", msg.PageID)
	require.NoError(t, err)
	assert.Equal(t, "m1", deleted.ID)

	_, err = s.EditMessage(ctx, "m1", msg.PageID, "again")
	assert.ErrorIs(t, err, chatify_errors.ErrMessageNotFound)

	var kinds []string
	for _, ev := range env.broadcaster.Events() {
		kinds = append(kinds, ev.Event)
	}
	assert.Equal(t, []string{
		events.EventMessageCreated,
		events.EventReactionUpdated,
		events.EventMessageEdited,
		events.EventMessageSavedToggled,
		events.EventMessageSavedToggled,
		events.EventMessageDeleted,
	}, kinds)

	last := env.broadcaster.Events()[5].Payload
	assert.Equal(t, DeletedMessage{ID: "m1", PageID: msg.PageID}, last)
}

func TestReactionToggleValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10)
	env.seedRoom(t, "r1", "u1")
	s, err := env.registry.GetOrCreate(ctx, "r1")
	require.NoError(t, err)

	_, err = s.ToggleReaction(ctx, ReactionInput{MessageID: "m1", PageID: "p", Kind: " ", UserID: "u1"})
	assert.ErrorIs(t, err, chatify_errors.ErrInvalidInput)

	_, err = s.ToggleReaction(ctx, ReactionInput{MessageID: "m1", PageID: "", Kind: "like", UserID: "u1"})
	assert.ErrorIs(t, err, chatify_errors.ErrMessageNotFound)
}

func TestEvictedSessionRejectsCalls(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10)
	env.seedRoom(t, "r1", "u1")
	s, err := env.registry.GetOrCreate(ctx, "r1")
	require.NoError(t, err)

	require.True(t, env.registry.Evict("r1"))
	assert.Equal(t, SessionEvicted, s.State())

	_, err = s.SendMessage(ctx, message.Draft{ID: "m1", AuthorID: "u1", Body: "late"})
	assert.ErrorIs(t, err, chatify_errors.ErrSessionEvicted)
	_, err = s.LoadOlderPage(ctx, "")
	assert.ErrorIs(t, err, chatify_errors.ErrSessionEvicted)
	assert.ErrorIs(t, s.hydrate(ctx), chatify_errors.ErrInvalidTransition)
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "active", SessionActive.String())
	assert.Equal(t, "evicted", SessionEvicted.String())
	assert.Equal(t, "SessionState(9)", SessionState(9).String())
}
