package repository

import (
	"context"
	"errors"

	"chatify-realtime/internal/domain/message"
	"chatify-realtime/internal/domain/room"
	"chatify-realtime/internal/store"
	chatify_errors "chatify-realtime/pkg/errors"
)

const savedMessagesField = "saved_messages"

type roomRepository struct {
	store store.DocumentStore
}

func NewRoomRepository(s store.DocumentStore) RoomRepository {
	return &roomRepository{store: s}
}

func (r *roomRepository) Create(ctx context.Context, rm room.Room) error {
	if rm.Members == nil {
		rm.Members = []string{}
	}
	if rm.PageIDs == nil {
		rm.PageIDs = []string{}
	}
	err := r.store.Create(ctx, store.RoomKey(rm.ID), store.Fields{
		"id":           rm.ID,
		"is_group":     rm.IsGroup,
		"members":      rm.Members,
		"name":         rm.DisplayName,
		"photo_url":    rm.PhotoURL,
		"chat_doc_ids": rm.PageIDs,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return chatify_errors.ErrConflict
	}
	return store.Unavailable("create room", err)
}

func (r *roomRepository) GetRoom(ctx context.Context, roomID string) (room.Room, error) {
	doc, err := r.store.Get(ctx, store.RoomKey(roomID))
	if errors.Is(err, store.ErrNotFound) {
		return room.Room{}, chatify_errors.ErrRoomNotFound
	}
	if err != nil {
		return room.Room{}, store.Unavailable("get room", err)
	}
	var rm room.Room
	if err := doc.Decode(&rm); err != nil {
		return room.Room{}, err
	}
	if rm.ID == "" {
		rm.ID = roomID
	}
	return rm, nil
}

// AddSavedMessage inserts a copy of m, replacing an older copy with the same id.
func (r *roomRepository) AddSavedMessage(ctx context.Context, roomID string, m message.Message) error {
	return r.updateSaved(ctx, roomID, func(saved []message.Message) ([]message.Message, bool) {
		if i := message.IndexOf(saved, m.ID); i >= 0 {
			saved[i] = m
			return saved, true
		}
		return append(saved, m), true
	})
}

func (r *roomRepository) RemoveSavedMessage(ctx context.Context, roomID, messageID string) error {
	return r.updateSaved(ctx, roomID, func(saved []message.Message) ([]message.Message, bool) {
		i := message.IndexOf(saved, messageID)
		if i < 0 {
			return saved, false
		}
		return append(saved[:i], saved[i+1:]...), true
	})
}

func (r *roomRepository) updateSaved(ctx context.Context, roomID string, fn func([]message.Message) ([]message.Message, bool)) error {
	err := store.UpdateWithRetry(ctx, r.store, store.RoomKey(roomID), 0, func(doc *store.Document) (store.Fields, error) {
		var saved []message.Message
		if err := doc.Field(savedMessagesField, &saved); err != nil {
			return nil, err
		}
		next, changed := fn(saved)
		if !changed {
			return nil, nil
		}
		if next == nil {
			next = []message.Message{}
		}
		return store.Fields{savedMessagesField: next}, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return chatify_errors.ErrRoomNotFound
	}
	if errors.Is(err, chatify_errors.ErrConflict) {
		return err
	}
	return store.Unavailable("update saved messages", err)
}
