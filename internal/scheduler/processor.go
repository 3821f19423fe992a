package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"chatify-realtime/internal/domain/message"
	"chatify-realtime/internal/domain/schedule"
	"chatify-realtime/internal/metrics"
	"chatify-realtime/internal/repository"
	"chatify-realtime/internal/services"
	chatify_errors "chatify-realtime/pkg/errors"
	"chatify-realtime/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CycleResult summarizes one dispatch cycle.
type CycleResult struct {
	Due         int `json:"due"`
	Sent        int `json:"sent"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	Rescheduled int `json:"rescheduled"`
}

// Processor sends due scheduled messages through the room registry. Delivery
// is at-least-once: a record whose send succeeded but whose status update
// failed is sent again on a later cycle.
type Processor struct {
	repo     repository.ScheduledMessageRepository
	registry *services.RoomRegistry
	clock    func() time.Time
	newID    func() string
	logger   *logger.Logger

	// inFlight holds ids being dispatched by a cycle that has not finished,
	// so an overlapping cycle leaves them alone.
	inFlight sync.Map
}

func NewProcessor(repo repository.ScheduledMessageRepository, registry *services.RoomRegistry, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{
		repo:     repo,
		registry: registry,
		clock:    time.Now,
		newID:    func() string { return uuid.New().String() },
		logger:   log.Named("dispatcher"),
	}
}

// WithClock replaces the time source. Used by tests and the CLI.
func (p *Processor) WithClock(clock func() time.Time) *Processor {
	p.clock = clock
	return p
}

// RunOnce performs one dispatch cycle. Records are handled sequentially; a
// failing record is logged and left pending for the next cycle. The returned
// error is only set when the due list itself could not be read.
func (p *Processor) RunOnce(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	defer func() { metrics.DispatchDuration.Observe(time.Since(start).Seconds()) }()

	now := p.clock()
	due, err := p.repo.ListDue(ctx, now)
	if err != nil {
		p.logger.Error("failed to list due scheduled messages", zap.Error(err))
		return CycleResult{}, err
	}

	res := CycleResult{Due: len(due)}
	touched := make(map[string]struct{})
	for _, rec := range due {
		if _, busy := p.inFlight.LoadOrStore(rec.ID, struct{}{}); busy {
			res.Skipped++
			continue
		}
		outcome := p.dispatch(ctx, rec)
		p.inFlight.Delete(rec.ID)

		metrics.ScheduledDispatched.WithLabelValues(outcome.label()).Inc()
		switch outcome {
		case outcomeSent:
			res.Sent++
		case outcomeRescheduled:
			res.Sent++
			res.Rescheduled++
		case outcomeSkipped:
			res.Skipped++
		case outcomeFailed:
			res.Failed++
		}
		touched[rec.RoomID] = struct{}{}
	}

	// Sessions created only to deliver scheduled messages are not kept around.
	for roomID := range touched {
		p.registry.EvictIfIdle(ctx, roomID)
	}

	if res.Due > 0 {
		p.logger.Info("dispatch cycle finished",
			zap.Int("due", res.Due),
			zap.Int("sent", res.Sent),
			zap.Int("failed", res.Failed),
			zap.Int("skipped", res.Skipped),
			zap.Int("rescheduled", res.Rescheduled),
		)
	}
	return res, nil
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeRescheduled
	outcomeSkipped
	outcomeFailed
)

func (o outcome) label() string {
	switch o {
	case outcomeSent, outcomeRescheduled:
		return "sent"
	case outcomeSkipped:
		return "skipped"
	case outcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (p *Processor) dispatch(ctx context.Context, rec schedule.ScheduledMessage) outcome {
	log := p.logger.With(
		zap.String("scheduled_message_id", rec.ID),
		zap.String("room_id", rec.RoomID),
	)

	// Status check right before sending: another cycle may have finished it.
	current, err := p.repo.GetByID(ctx, rec.ID)
	if err != nil {
		log.Warn("failed to re-read scheduled message", zap.Error(err))
		return outcomeFailed
	}
	if current.Status != schedule.StatusPending {
		return outcomeSkipped
	}

	err = p.registry.Do(ctx, current.RoomID, func(s *services.RoomSession) error {
		_, err := s.SendMessage(ctx, message.Draft{
			ID:                 p.newID(),
			AuthorID:           current.OwnerID,
			Kind:               current.Payload.Kind,
			Body:               current.Payload.Body,
			FileName:           current.Payload.FileName,
			AuthorDisplayName:  current.Payload.DisplayName,
			AuthorPhotoURL:     current.Payload.PhotoURL,
			Scheduled:          true,
			ScheduledMessageID: current.ID,
		})
		return err
	})
	if err != nil {
		log.Error("failed to send scheduled message", zap.Error(err))
		return outcomeFailed
	}

	now := p.clock()
	if err := p.repo.MarkSent(ctx, current.ID, now); err != nil {
		if errors.Is(err, chatify_errors.ErrInvalidTransition) {
			log.Warn("scheduled message was finished concurrently")
			return outcomeSent
		}
		log.Error("sent but failed to mark scheduled message", zap.Error(err))
		return outcomeFailed
	}

	next, ok := current.NextOccurrence(p.newID(), now)
	if !ok {
		return outcomeSent
	}
	if err := p.repo.Create(ctx, &next); err != nil {
		log.Error("failed to create next occurrence",
			zap.String("recurrence", string(current.Recurrence)),
			zap.Error(err),
		)
		return outcomeSent
	}
	log.Debug("next occurrence scheduled",
		zap.String("next_id", next.ID),
		zap.Time("scheduled_at", next.ScheduledAt),
	)
	return outcomeRescheduled
}
