// Package chatlog implements the paginated, append-only message log of one
// room on top of a store.DocumentStore.
//
// Pages live at rooms/{roomId}/pages/{pageId}; the room record lists their ids
// oldest first in chat_doc_ids. The writing side rolls over to a new page once
// the current one holds PageSize messages.
package chatlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chatify-realtime/internal/domain/message"
	"chatify-realtime/internal/domain/room"
	"chatify-realtime/internal/metrics"
	"chatify-realtime/internal/store"
	chatify_errors "chatify-realtime/pkg/errors"
	"chatify-realtime/pkg/logger"

	"go.uber.org/zap"
)

const (
	DefaultPageSize = 50

	pageMessagesField = "chat_history"
	roomPageIDsField  = "chat_doc_ids"

	maxPageIDCollisions = 16
)

type Options struct {
	PageSize int
	// Timeout bounds every store call. Zero disables it.
	Timeout time.Duration
	// MaxMutateAttempts bounds the optimistic retries of Mutate.
	MaxMutateAttempts int
	Clock             func() time.Time
	Logger            *logger.Logger
}

// Transform edits the located message in place. Returning keep=false removes
// the message from its page.
type Transform func(m *message.Message) (keep bool, err error)

// MutationResult describes the message after a successful Mutate. For a
// removal it is the message as it was before removal.
type MutationResult struct {
	Message message.Message
	Removed bool
}

// Log is the paginated history of one room. Append must not be called
// concurrently; the owning session serializes it. LoadPage and Mutate are
// safe to call at any time.
type Log struct {
	roomID string
	store  store.DocumentStore
	opts   Options
	log    *logger.Logger

	mu      sync.RWMutex
	pageIDs []string
	count   int
	// ids holds every message id of the current page at hydration plus every
	// id appended since. idsStale is set after an append whose outcome is
	// unknown; the next append re-reads the current page first.
	ids      map[string]struct{}
	idsStale bool
}

func New(roomID string, s store.DocumentStore, opts Options) *Log {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxMutateAttempts <= 0 {
		opts.MaxMutateAttempts = store.DefaultCASAttempts
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Log{
		roomID: roomID,
		store:  s,
		opts:   opts,
		log:    opts.Logger.Named("chatlog").With(zap.String("room_id", roomID)),
	}
}

// Hydrate loads the page index and the size of the current page. An over-full
// current page is accepted and simply forces a rollover on the next append.
func (l *Log) Hydrate(ctx context.Context, pageIDs []string) error {
	ids := append([]string(nil), pageIDs...)
	count := 0
	known := make(map[string]struct{})
	if len(ids) > 0 {
		page, err := l.readPage(ctx, ids[len(ids)-1])
		switch {
		case errors.Is(err, store.ErrNotFound):
			l.log.Warn("current page missing, next append will roll over",
				zap.String("page_id", ids[len(ids)-1]))
			count = l.opts.PageSize
		case err != nil:
			return store.Unavailable("hydrate log", err)
		default:
			count = min(len(page.Messages), l.opts.PageSize)
			for _, m := range page.Messages {
				known[m.ID] = struct{}{}
			}
		}
	}

	l.mu.Lock()
	l.pageIDs = ids
	l.count = count
	l.ids = known
	l.idsStale = false
	l.mu.Unlock()
	return nil
}

func (l *Log) PageIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.pageIDs...)
}

// CurrentPageID returns the page new messages go to, or "" for an empty log.
func (l *Log) CurrentPageID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.pageIDs) == 0 {
		return ""
	}
	return l.pageIDs[len(l.pageIDs)-1]
}

func (l *Log) CurrentPageCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Append writes msg into the current page, rolling over to a new page first
// when needed, and returns the page it was written to. The in-memory counter
// only moves after the store confirmed the write. A message id the log already
// holds is rejected with ErrConflict.
func (l *Log) Append(ctx context.Context, msg message.Message) (string, error) {
	if err := l.checkUnique(ctx, msg.ID); err != nil {
		return "", err
	}

	l.mu.RLock()
	pageID := ""
	if len(l.pageIDs) > 0 {
		pageID = l.pageIDs[len(l.pageIDs)-1]
	}
	full := pageID == "" || l.count >= l.opts.PageSize
	l.mu.RUnlock()

	if full {
		newID, err := l.rollover(ctx, pageID)
		if err != nil {
			return "", err
		}
		pageID = newID
	}

	msg.PageID = pageID
	err := l.withTimeout(ctx, func(ctx context.Context) error {
		return l.store.AppendToArray(ctx, store.PageKey(l.roomID, pageID), pageMessagesField, msg)
	})
	if err != nil {
		l.mu.Lock()
		l.idsStale = true
		l.mu.Unlock()
		return "", store.Unavailable("append message", err)
	}

	l.mu.Lock()
	l.count++
	l.remember(msg.ID)
	l.mu.Unlock()
	metrics.MessagesAppended.Inc()
	return pageID, nil
}

func (l *Log) checkUnique(ctx context.Context, id string) error {
	l.mu.RLock()
	stale := l.idsStale
	pageID := ""
	if len(l.pageIDs) > 0 {
		pageID = l.pageIDs[len(l.pageIDs)-1]
	}
	l.mu.RUnlock()

	if stale && pageID != "" {
		page, err := l.readPage(ctx, pageID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return store.Unavailable("read current page", err)
		}
		l.mu.Lock()
		for _, m := range page.Messages {
			l.remember(m.ID)
		}
		if len(page.Messages) > l.count {
			l.count = len(page.Messages)
		}
		l.idsStale = false
		l.mu.Unlock()
	}

	l.mu.RLock()
	_, seen := l.ids[id]
	l.mu.RUnlock()
	if seen {
		return fmt.Errorf("message %s already exists: %w", id, chatify_errors.ErrConflict)
	}
	return nil
}

// remember must be called with l.mu held.
func (l *Log) remember(id string) {
	if l.ids == nil {
		l.ids = make(map[string]struct{})
	}
	l.ids[id] = struct{}{}
}

// rollover durably creates a new page, adds it to the room's page index and
// only then makes it the current page.
func (l *Log) rollover(ctx context.Context, last string) (string, error) {
	now := l.opts.Clock()
	pageID := NextPageID(now, last)
	for attempt := 0; ; attempt++ {
		err := l.withTimeout(ctx, func(ctx context.Context) error {
			return l.store.Create(ctx, store.PageKey(l.roomID, pageID), store.Fields{
				"id":              pageID,
				pageMessagesField: []message.Message{},
				"created_at":      now.UTC(),
			})
		})
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrAlreadyExists) || attempt >= maxPageIDCollisions {
			return "", store.Unavailable("create page", err)
		}
		pageID = NextPageID(now, pageID)
	}

	err := l.withTimeout(ctx, func(ctx context.Context) error {
		return l.store.AppendToArray(ctx, store.RoomKey(l.roomID), roomPageIDsField, pageID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return "", chatify_errors.ErrRoomNotFound
	}
	if err != nil {
		return "", store.Unavailable("index page", err)
	}

	l.mu.Lock()
	l.pageIDs = append(l.pageIDs, pageID)
	l.count = 0
	l.mu.Unlock()

	metrics.PagesCreated.Inc()
	l.log.Debug("page created", zap.String("page_id", pageID))
	return pageID, nil
}

// LoadPage returns the latest page when beforePageID is empty, otherwise the
// page immediately preceding beforePageID.
func (l *Log) LoadPage(ctx context.Context, beforePageID string) (room.Page, error) {
	ids := l.PageIDs()
	target := ""
	if beforePageID == "" {
		if len(ids) == 0 {
			return room.Page{}, chatify_errors.ErrNoSuchPage
		}
		target = ids[len(ids)-1]
	} else {
		i := indexOf(ids, beforePageID)
		if i <= 0 {
			return room.Page{}, chatify_errors.ErrNoSuchPage
		}
		target = ids[i-1]
	}

	page, err := l.readPage(ctx, target)
	if errors.Is(err, store.ErrNotFound) {
		return room.Page{}, chatify_errors.ErrNoSuchPage
	}
	if err != nil {
		return room.Page{}, store.Unavailable("load page", err)
	}
	return page, nil
}

// Mutate applies fn to one message of a page. The page is written back with a
// version compare-and-set; when another writer got there first the page is
// re-read and fn applied again.
func (l *Log) Mutate(ctx context.Context, pageID, messageID string, fn Transform) (MutationResult, error) {
	key := store.PageKey(l.roomID, pageID)
	for attempt := 0; attempt < l.opts.MaxMutateAttempts; attempt++ {
		var doc *store.Document
		err := l.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			doc, err = l.store.Get(ctx, key)
			return err
		})
		if errors.Is(err, store.ErrNotFound) {
			return MutationResult{}, chatify_errors.ErrMessageNotFound
		}
		if err != nil {
			return MutationResult{}, store.Unavailable("read page", err)
		}

		var messages []message.Message
		if err := doc.Field(pageMessagesField, &messages); err != nil {
			return MutationResult{}, fmt.Errorf("decode page %s: %w", pageID, err)
		}
		i := message.IndexOf(messages, messageID)
		if i < 0 {
			return MutationResult{}, chatify_errors.ErrMessageNotFound
		}

		target := messages[i]
		keep, err := fn(&target)
		if err != nil {
			return MutationResult{}, err
		}
		result := MutationResult{Message: target}
		if keep {
			messages[i] = target
		} else {
			result.Message = messages[i]
			result.Removed = true
			messages = append(messages[:i], messages[i+1:]...)
		}

		err = l.withTimeout(ctx, func(ctx context.Context) error {
			return l.store.CompareAndSet(ctx, key, doc.Version, store.Fields{pageMessagesField: messages})
		})
		if errors.Is(err, store.ErrVersionMismatch) {
			metrics.MutationConflicts.Inc()
			continue
		}
		if errors.Is(err, store.ErrNotFound) {
			return MutationResult{}, chatify_errors.ErrMessageNotFound
		}
		if err != nil {
			return MutationResult{}, store.Unavailable("write page", err)
		}
		return result, nil
	}
	return MutationResult{}, fmt.Errorf("page %s: %w", pageID, chatify_errors.ErrConflict)
}

func (l *Log) readPage(ctx context.Context, pageID string) (room.Page, error) {
	var doc *store.Document
	err := l.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		doc, err = l.store.Get(ctx, store.PageKey(l.roomID, pageID))
		return err
	})
	if err != nil {
		return room.Page{}, err
	}
	var page room.Page
	if err := doc.Decode(&page); err != nil {
		return room.Page{}, fmt.Errorf("decode page %s: %w", pageID, err)
	}
	if page.ID == "" {
		page.ID = pageID
	}
	if page.Messages == nil {
		page.Messages = []message.Message{}
	}
	return page, nil
}

func (l *Log) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if l.opts.Timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()
	return fn(ctx)
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
