package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"chatify-realtime/internal/events"
	"chatify-realtime/internal/metrics"
	"chatify-realtime/internal/repository"
	"chatify-realtime/internal/store"
	chatify_errors "chatify-realtime/pkg/errors"
	"chatify-realtime/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// maxReentries bounds how often Do retries after racing an eviction.
const maxReentries = 3

// RoomRegistry maps room ids to their single in-process RoomSession.
type RoomRegistry struct {
	store       store.DocumentStore
	rooms       repository.RoomRepository
	broadcaster events.Broadcaster
	opts        SessionOptions
	logger      *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*RoomSession
	creating singleflight.Group
}

func NewRoomRegistry(s store.DocumentStore, rooms repository.RoomRepository, broadcaster events.Broadcaster, opts SessionOptions) *RoomRegistry {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &RoomRegistry{
		store:       s,
		rooms:       rooms,
		broadcaster: broadcaster,
		opts:        opts,
		logger:      opts.Logger.Named("room_registry"),
		sessions:    make(map[string]*RoomSession),
	}
}

func (r *RoomRegistry) lookup(roomID string) *RoomSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[roomID]
}

// GetOrCreate returns the active session of roomID, hydrating a new one from
// the room record when none exists. Concurrent callers for the same unseen
// room share a single hydration.
func (r *RoomRegistry) GetOrCreate(ctx context.Context, roomID string) (*RoomSession, error) {
	if roomID == "" {
		return nil, chatify_errors.ErrRoomNotFound
	}
	if s := r.lookup(roomID); s != nil {
		return s, nil
	}

	v, err, _ := r.creating.Do(roomID, func() (any, error) {
		if s := r.lookup(roomID); s != nil {
			return s, nil
		}
		// The hydration is shared, so one caller giving up must not fail the others.
		hctx := context.WithoutCancel(ctx)
		if r.opts.StoreTimeout > 0 {
			var cancel context.CancelFunc
			hctx, cancel = context.WithTimeout(hctx, 2*r.opts.StoreTimeout)
			defer cancel()
		}

		rm, err := r.rooms.GetRoom(hctx, roomID)
		if err != nil {
			return nil, err
		}
		s := newRoomSession(rm, r.store, r.rooms, r.broadcaster, r.opts)
		if err := s.hydrate(hctx); err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.sessions[roomID] = s
		n := len(r.sessions)
		r.mu.Unlock()

		metrics.ActiveSessions.Set(float64(n))
		r.logger.Debug("room session created", zap.String("room_id", roomID))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*RoomSession), nil
}

// Do runs fn against the room's session, re-entering through GetOrCreate when
// the session was evicted between lookup and use.
func (r *RoomRegistry) Do(ctx context.Context, roomID string, fn func(*RoomSession) error) error {
	var err error
	for i := 0; i < maxReentries; i++ {
		var s *RoomSession
		s, err = r.GetOrCreate(ctx, roomID)
		if err != nil {
			return err
		}
		err = fn(s)
		if !errors.Is(err, chatify_errors.ErrSessionEvicted) {
			return err
		}
	}
	return err
}

// OnMemberDisconnected evicts the session once no member is connected to the
// room topic anymore. It reports whether an eviction happened.
func (r *RoomRegistry) OnMemberDisconnected(ctx context.Context, roomID string) bool {
	return r.EvictIfIdle(ctx, roomID)
}

// EvictIfIdle evicts the session of roomID when nobody is connected to it.
func (r *RoomRegistry) EvictIfIdle(ctx context.Context, roomID string) bool {
	if n := r.broadcaster.ConnectedCount(roomID); n > 0 {
		return false
	}
	return r.Evict(roomID)
}

// Evict removes the session of roomID. Calls already holding it fail with
// ErrSessionEvicted from then on.
func (r *RoomRegistry) Evict(roomID string) bool {
	s := r.lookup(roomID)
	if s == nil {
		return false
	}

	n := 0
	evicted := s.evict(func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.sessions[roomID] != s {
			return false
		}
		delete(r.sessions, roomID)
		n = len(r.sessions)
		return true
	})
	if !evicted {
		return false
	}
	metrics.ActiveSessions.Set(float64(n))
	r.logger.Debug("room session evicted", zap.String("room_id", roomID))
	return true
}

func (r *RoomRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
