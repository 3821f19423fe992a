package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"chatify-realtime/internal/domain/schedule"
	"chatify-realtime/internal/store"
	chatify_errors "chatify-realtime/pkg/errors"
	"chatify-realtime/pkg/logger"

	"go.uber.org/zap"
)

const indexIDsField = "ids"

// scheduledMessageRepository keeps one document per record plus two id
// indexes: every pending record, and every record of an owner. The pending
// index is what the dispatcher scans each tick.
type scheduledMessageRepository struct {
	store store.DocumentStore
}

func NewScheduledMessageRepository(s store.DocumentStore) ScheduledMessageRepository {
	return &scheduledMessageRepository{store: s}
}

func scheduledFields(s schedule.ScheduledMessage) store.Fields {
	fields := store.Fields{
		"id":                s.ID,
		"user_uid":          s.OwnerID,
		"room_id":           s.RoomID,
		"payload":           s.Payload,
		"scheduled_time":    s.ScheduledAt.UTC(),
		"status":            s.Status,
		"recurring_pattern": s.Recurrence,
		"timezone":          s.Timezone,
		"created_at":        s.CreatedAt.UTC(),
	}
	if s.SentAt != nil {
		fields["sent_at"] = s.SentAt.UTC()
	}
	if s.PreviousID != "" {
		fields["previous_id"] = s.PreviousID
	}
	return fields
}

func (r *scheduledMessageRepository) Create(ctx context.Context, s *schedule.ScheduledMessage) error {
	if s.Status == "" {
		s.Status = schedule.StatusPending
	}
	if s.Recurrence == "" {
		s.Recurrence = schedule.RecurrenceNone
	}
	err := r.store.Create(ctx, store.ScheduledKey(s.ID), scheduledFields(*s))
	if errors.Is(err, store.ErrAlreadyExists) {
		return chatify_errors.ErrConflict
	}
	if err != nil {
		return store.Unavailable("create scheduled message", err)
	}
	if err := store.AppendOrCreate(ctx, r.store, store.ScheduledOwnerIndexKey(s.OwnerID), indexIDsField, s.ID); err != nil {
		return store.Unavailable("index scheduled message", err)
	}
	if s.Status == schedule.StatusPending {
		if err := store.AppendOrCreate(ctx, r.store, store.ScheduledPendingIndexKey(), indexIDsField, s.ID); err != nil {
			return store.Unavailable("index scheduled message", err)
		}
	}
	return nil
}

func (r *scheduledMessageRepository) GetByID(ctx context.Context, id string) (schedule.ScheduledMessage, error) {
	doc, err := r.store.Get(ctx, store.ScheduledKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return schedule.ScheduledMessage{}, chatify_errors.ErrNotFound
	}
	if err != nil {
		return schedule.ScheduledMessage{}, store.Unavailable("get scheduled message", err)
	}
	var s schedule.ScheduledMessage
	if err := doc.Decode(&s); err != nil {
		return schedule.ScheduledMessage{}, err
	}
	return s, nil
}

// Update rewrites the schedule and payload of a record that is still pending.
func (r *scheduledMessageRepository) Update(ctx context.Context, s schedule.ScheduledMessage) error {
	return r.transition(ctx, s.ID, func(current schedule.ScheduledMessage) (store.Fields, error) {
		if current.Status != schedule.StatusPending {
			return nil, chatify_errors.ErrInvalidTransition
		}
		return store.Fields{
			"payload":           s.Payload,
			"scheduled_time":    s.ScheduledAt.UTC(),
			"recurring_pattern": s.Recurrence,
			"timezone":          s.Timezone,
		}, nil
	})
}

func (r *scheduledMessageRepository) Delete(ctx context.Context, id string) error {
	s, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := store.RemoveFromIDs(ctx, r.store, store.ScheduledPendingIndexKey(), indexIDsField, id); err != nil {
		return store.Unavailable("unindex scheduled message", err)
	}
	if err := store.RemoveFromIDs(ctx, r.store, store.ScheduledOwnerIndexKey(s.OwnerID), indexIDsField, id); err != nil {
		return store.Unavailable("unindex scheduled message", err)
	}
	return store.Unavailable("delete scheduled message", r.store.Delete(ctx, store.ScheduledKey(id)))
}

// ListDue returns pending records whose time has come, oldest first.
func (r *scheduledMessageRepository) ListDue(ctx context.Context, now time.Time) ([]schedule.ScheduledMessage, error) {
	pending, err := r.listIndex(ctx, store.ScheduledPendingIndexKey())
	if err != nil {
		return nil, err
	}
	due := make([]schedule.ScheduledMessage, 0, len(pending))
	for _, s := range pending {
		if s.IsDue(now) {
			due = append(due, s)
		}
	}
	sortBySchedule(due)
	return due, nil
}

func (r *scheduledMessageRepository) ListByOwner(ctx context.Context, ownerID string) ([]schedule.ScheduledMessage, error) {
	list, err := r.listIndex(ctx, store.ScheduledOwnerIndexKey(ownerID))
	if err != nil {
		return nil, err
	}
	sortBySchedule(list)
	return list, nil
}

func (r *scheduledMessageRepository) ListPendingByRoom(ctx context.Context, roomID string) ([]schedule.ScheduledMessage, error) {
	pending, err := r.listIndex(ctx, store.ScheduledPendingIndexKey())
	if err != nil {
		return nil, err
	}
	out := make([]schedule.ScheduledMessage, 0)
	for _, s := range pending {
		if s.RoomID == roomID && s.Status == schedule.StatusPending {
			out = append(out, s)
		}
	}
	sortBySchedule(out)
	return out, nil
}

// MarkSent moves a pending record to sent. Only one caller can win the
// transition; the others get ErrInvalidTransition.
func (r *scheduledMessageRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	err := r.transition(ctx, id, func(current schedule.ScheduledMessage) (store.Fields, error) {
		if current.Status != schedule.StatusPending {
			return nil, chatify_errors.ErrInvalidTransition
		}
		return store.Fields{"status": schedule.StatusSent, "sent_at": sentAt.UTC()}, nil
	})
	if err != nil {
		return err
	}
	return store.Unavailable("unindex scheduled message",
		store.RemoveFromIDs(ctx, r.store, store.ScheduledPendingIndexKey(), indexIDsField, id))
}

func (r *scheduledMessageRepository) Cancel(ctx context.Context, id string) error {
	err := r.transition(ctx, id, func(current schedule.ScheduledMessage) (store.Fields, error) {
		if current.Status != schedule.StatusPending {
			return nil, chatify_errors.ErrInvalidTransition
		}
		return store.Fields{"status": schedule.StatusCancelled}, nil
	})
	if err != nil {
		return err
	}
	return store.Unavailable("unindex scheduled message",
		store.RemoveFromIDs(ctx, r.store, store.ScheduledPendingIndexKey(), indexIDsField, id))
}

func (r *scheduledMessageRepository) transition(ctx context.Context, id string, fn func(schedule.ScheduledMessage) (store.Fields, error)) error {
	err := store.UpdateWithRetry(ctx, r.store, store.ScheduledKey(id), 0, func(doc *store.Document) (store.Fields, error) {
		var current schedule.ScheduledMessage
		if err := doc.Decode(&current); err != nil {
			return nil, err
		}
		return fn(current)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return chatify_errors.ErrNotFound
	case errors.Is(err, chatify_errors.ErrInvalidTransition), errors.Is(err, chatify_errors.ErrConflict):
		return err
	default:
		return store.Unavailable("update scheduled message", err)
	}
}

// listIndex loads every record named by an index document. Ids whose record
// has disappeared or cannot be read are skipped; the latter are logged.
func (r *scheduledMessageRepository) listIndex(ctx context.Context, indexKey string) ([]schedule.ScheduledMessage, error) {
	doc, err := r.store.Get(ctx, indexKey)
	if errors.Is(err, store.ErrNotFound) {
		return []schedule.ScheduledMessage{}, nil
	}
	if err != nil {
		return nil, store.Unavailable("read scheduled index", err)
	}
	var ids []string
	if err := doc.Field(indexIDsField, &ids); err != nil {
		return nil, err
	}
	out := make([]schedule.ScheduledMessage, 0, len(ids))
	for _, id := range ids {
		s, err := r.GetByID(ctx, id)
		if errors.Is(err, chatify_errors.ErrNotFound) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, store.Unavailable("read scheduled message", ctx.Err())
			}
			logSkipped(ctx, indexKey, id, err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func logSkipped(ctx context.Context, indexKey, id string, err error) {
	l := logger.GetGlobalLogger()
	if l == nil {
		return
	}
	l.Ctx(ctx).Warn("skipping unreadable scheduled message",
		zap.String("index", indexKey),
		zap.String("id", id),
		zap.Error(err))
}

func sortBySchedule(list []schedule.ScheduledMessage) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].ScheduledAt.Before(list[j].ScheduledAt)
	})
}
