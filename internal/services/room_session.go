package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chatify-realtime/internal/chatlog"
	"chatify-realtime/internal/domain"
	"chatify-realtime/internal/domain/message"
	"chatify-realtime/internal/domain/room"
	"chatify-realtime/internal/events"
	"chatify-realtime/internal/metrics"
	"chatify-realtime/internal/repository"
	"chatify-realtime/internal/store"
	chatify_errors "chatify-realtime/pkg/errors"
	"chatify-realtime/pkg/logger"

	"go.uber.org/zap"
)

type SessionState int32

const (
	SessionUninitialized SessionState = iota
	SessionHydrating
	SessionActive
	SessionEvicted
)

func (s SessionState) String() string {
	switch s {
	case SessionUninitialized:
		return "uninitialized"
	case SessionHydrating:
		return "hydrating"
	case SessionActive:
		return "active"
	case SessionEvicted:
		return "evicted"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

type SessionOptions struct {
	PageSize       int
	StoreTimeout   time.Duration
	PublishTimeout time.Duration
	Clock          func() time.Time
	Logger         *logger.Logger
}

// ReactionInput identifies one reaction toggle.
type ReactionInput struct {
	MessageID   string
	PageID      string
	Kind        string
	UserID      string
	DisplayName string
}

// DeletedMessage is the payload of a message-deleted event.
type DeletedMessage struct {
	ID     string `json:"id"`
	PageID string `json:"chat_doc_id"`
}

// RoomSession owns the in-memory state of one room: its metadata snapshot and
// its paginated log. Every accepted mutation is published to the room topic.
// Sessions are created and evicted by the RoomRegistry only.
type RoomSession struct {
	room        room.Room
	log         *chatlog.Log
	rooms       repository.RoomRepository
	broadcaster events.Broadcaster
	opts        SessionOptions
	logger      *logger.Logger

	// appendMu serializes sends so that page rollover and the FIFO order of
	// message-created events hold per room.
	appendMu sync.Mutex
	state    atomic.Int32
}

func newRoomSession(rm room.Room, s store.DocumentStore, rooms repository.RoomRepository, broadcaster events.Broadcaster, opts SessionOptions) *RoomSession {
	l := opts.Logger.Named("room_session").With(zap.String("room_id", rm.ID))
	return &RoomSession{
		room: rm,
		log: chatlog.New(rm.ID, s, chatlog.Options{
			PageSize: opts.PageSize,
			Timeout:  opts.StoreTimeout,
			Clock:    opts.Clock,
			Logger:   opts.Logger,
		}),
		rooms:       rooms,
		broadcaster: broadcaster,
		opts:        opts,
		logger:      l,
	}
}

func (s *RoomSession) hydrate(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(SessionUninitialized), int32(SessionHydrating)) {
		return fmt.Errorf("hydrate room %s in state %s: %w", s.room.ID, s.State(), chatify_errors.ErrInvalidTransition)
	}
	if err := s.log.Hydrate(ctx, s.room.PageIDs); err != nil {
		s.state.Store(int32(SessionUninitialized))
		return err
	}
	s.state.Store(int32(SessionActive))
	return nil
}

// evict waits for a send in progress, then runs detach and marks the session
// evicted when detach reports success. detach runs under appendMu, so no
// replacement session hydrates while an append is in flight.
func (s *RoomSession) evict(detach func() bool) bool {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	if !detach() {
		return false
	}
	s.state.Store(int32(SessionEvicted))
	return true
}

func (s *RoomSession) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *RoomSession) RoomID() string {
	return s.room.ID
}

func (s *RoomSession) HasMember(userID string) bool {
	return s.room.HasMember(userID)
}

// Metadata returns what a joining client needs to render the room.
func (s *RoomSession) Metadata() room.Metadata {
	return room.Metadata{
		ID:          s.room.ID,
		IsGroup:     s.room.IsGroup,
		Members:     append([]string(nil), s.room.Members...),
		DisplayName: s.room.DisplayName,
		PhotoURL:    s.room.PhotoURL,
		PageIDs:     s.log.PageIDs(),
	}
}

func (s *RoomSession) CurrentPageID() string {
	return s.log.CurrentPageID()
}

func (s *RoomSession) CurrentPageCount() int {
	return s.log.CurrentPageCount()
}

func (s *RoomSession) checkActive() error {
	if s.State() != SessionActive {
		return chatify_errors.ErrSessionEvicted
	}
	return nil
}

// SendMessage stamps the draft, appends it to the log and publishes the stored
// message. A failed publish does not fail the send.
func (s *RoomSession) SendMessage(ctx context.Context, draft message.Draft) (message.Message, error) {
	if err := validateDraft(draft); err != nil {
		return message.Message{}, err
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	if err := s.checkActive(); err != nil {
		return message.Message{}, err
	}

	msg := draft.ToMessage(s.opts.Clock())
	pageID, err := s.log.Append(ctx, msg)
	if err != nil {
		return message.Message{}, err
	}
	msg.PageID = pageID

	s.publish(ctx, events.EventMessageCreated, msg)
	return msg, nil
}

// ToggleReaction adds the reactor to the reaction group or removes them when
// already present.
func (s *RoomSession) ToggleReaction(ctx context.Context, in ReactionInput) (message.Message, error) {
	if strings.TrimSpace(in.Kind) == "" || in.UserID == "" {
		return message.Message{}, chatify_errors.ErrInvalidInput
	}
	res, err := s.mutate(ctx, in.PageID, in.MessageID, func(m *message.Message) (bool, error) {
		m.ToggleReaction(in.Kind, in.UserID, in.DisplayName)
		return true, nil
	})
	if err != nil {
		return message.Message{}, err
	}
	s.publish(ctx, events.EventReactionUpdated, res.Message)
	return res.Message, nil
}

func (s *RoomSession) EditMessage(ctx context.Context, messageID, pageID, body string) (message.Message, error) {
	res, err := s.mutate(ctx, pageID, messageID, func(m *message.Message) (bool, error) {
		m.Body = body
		m.Edited = true
		return true, nil
	})
	if err != nil {
		return message.Message{}, err
	}
	s.publish(ctx, events.EventMessageEdited, res.Message)
	return res.Message, nil
}

func (s *RoomSession) DeleteMessage(ctx context.Context, messageID, pageID string) (message.Message, error) {
	res, err := s.mutate(ctx, pageID, messageID, func(*message.Message) (bool, error) {
		return false, nil
	})
	if err != nil {
		return message.Message{}, err
	}
	s.publish(ctx, events.EventMessageDeleted, DeletedMessage{ID: res.Message.ID, PageID: res.Message.PageID})
	return res.Message, nil
}

// ToggleSaved flips the saved flag and keeps the room's saved set in step.
func (s *RoomSession) ToggleSaved(ctx context.Context, messageID, pageID string) (message.Message, error) {
	res, err := s.mutate(ctx, pageID, messageID, func(m *message.Message) (bool, error) {
		m.Saved = !m.Saved
		return true, nil
	})
	if err != nil {
		return message.Message{}, err
	}

	msg := res.Message
	if msg.Saved {
		err = s.rooms.AddSavedMessage(ctx, s.room.ID, msg)
	} else {
		err = s.rooms.RemoveSavedMessage(ctx, s.room.ID, msg.ID)
	}
	if err != nil {
		s.logger.Error("failed to update saved set",
			zap.String("message_id", msg.ID),
			zap.Bool("saved", msg.Saved),
			zap.Error(err),
		)
		return message.Message{}, err
	}

	s.publish(ctx, events.EventMessageSavedToggled, msg)
	return msg, nil
}

// LoadOlderPage returns the latest page when beforePageID is empty, otherwise
// the page preceding it.
func (s *RoomSession) LoadOlderPage(ctx context.Context, beforePageID string) (room.Page, error) {
	if err := s.checkActive(); err != nil {
		return room.Page{}, err
	}
	return s.log.LoadPage(ctx, beforePageID)
}

func (s *RoomSession) mutate(ctx context.Context, pageID, messageID string, fn chatlog.Transform) (chatlog.MutationResult, error) {
	if err := s.checkActive(); err != nil {
		return chatlog.MutationResult{}, err
	}
	if pageID == "" || messageID == "" {
		return chatlog.MutationResult{}, chatify_errors.ErrMessageNotFound
	}
	return s.log.Mutate(ctx, pageID, messageID, fn)
}

// publish is best effort: the event is already durable, clients reconcile by
// reloading the page.
func (s *RoomSession) publish(ctx context.Context, event string, payload any) {
	pubCtx := ctx
	if s.opts.PublishTimeout > 0 {
		var cancel context.CancelFunc
		pubCtx, cancel = context.WithTimeout(ctx, s.opts.PublishTimeout)
		defer cancel()
	}
	if err := s.broadcaster.Publish(pubCtx, s.room.ID, event, payload); err != nil {
		metrics.PublishFailures.WithLabelValues(event).Inc()
		s.logger.Warn("failed to publish room event",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

func validateDraft(d message.Draft) error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("message id is required: %w", chatify_errors.ErrInvalidInput)
	}
	kind := d.Kind
	if kind == "" {
		kind = domain.MessageKindText
	}
	if kind.AuthoredByMember() && d.AuthorID == "" {
		return fmt.Errorf("author is required: %w", chatify_errors.ErrInvalidInput)
	}
	if kind.RequiresFileName() && d.FileName == "" {
		return fmt.Errorf("file name is required: %w", chatify_errors.ErrInvalidInput)
	}
	return nil
}
