package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatify-realtime/internal/domain"
	"chatify-realtime/internal/domain/schedule"
	"chatify-realtime/internal/repository"
	chatify_errors "chatify-realtime/pkg/errors"

	"github.com/google/uuid"
)

// ScheduledService accepts and manages future sends. Delivery itself is the
// dispatcher's job.
type ScheduledService struct {
	repo  repository.ScheduledMessageRepository
	rooms repository.RoomRepository
	clock func() time.Time
}

func NewScheduledService(repo repository.ScheduledMessageRepository, rooms repository.RoomRepository) *ScheduledService {
	return &ScheduledService{repo: repo, rooms: rooms, clock: time.Now}
}

type ScheduleInput struct {
	RoomID      string
	Payload     schedule.Payload
	ScheduledAt time.Time
	Recurrence  schedule.Recurrence
	Timezone    string
}

// ScheduleUpdate carries the fields a pending record may change. Nil fields
// are left as they are.
type ScheduleUpdate struct {
	Body        *string
	ScheduledAt *time.Time
	Recurrence  *schedule.Recurrence
	Timezone    *string
}

func (s *ScheduledService) Create(ctx context.Context, ownerID string, in ScheduleInput) (schedule.ScheduledMessage, error) {
	if err := validateSchedule(in); err != nil {
		return schedule.ScheduledMessage{}, err
	}
	if err := s.requireMember(ctx, ownerID, in.RoomID); err != nil {
		return schedule.ScheduledMessage{}, err
	}

	if in.Payload.Kind == "" {
		in.Payload.Kind = domain.MessageKindText
	}
	if in.Recurrence == "" {
		in.Recurrence = schedule.RecurrenceNone
	}
	if in.Timezone == "" {
		in.Timezone = "UTC"
	}
	rec := schedule.ScheduledMessage{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		RoomID:      in.RoomID,
		Payload:     in.Payload,
		ScheduledAt: in.ScheduledAt.UTC(),
		Status:      schedule.StatusPending,
		Recurrence:  in.Recurrence,
		Timezone:    in.Timezone,
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.repo.Create(ctx, &rec); err != nil {
		return schedule.ScheduledMessage{}, err
	}
	return rec, nil
}

// ListByOwner returns the owner's pending records, optionally limited to one
// room, ordered by scheduled time.
func (s *ScheduledService) ListByOwner(ctx context.Context, ownerID, roomID string) ([]schedule.ScheduledMessage, error) {
	all, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]schedule.ScheduledMessage, 0, len(all))
	for _, rec := range all {
		if rec.Status != schedule.StatusPending {
			continue
		}
		if roomID != "" && rec.RoomID != roomID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *ScheduledService) ListByRoom(ctx context.Context, userID, roomID string) ([]schedule.ScheduledMessage, error) {
	if err := s.requireMember(ctx, userID, roomID); err != nil {
		return nil, err
	}
	return s.repo.ListPendingByRoom(ctx, roomID)
}

func (s *ScheduledService) Update(ctx context.Context, userID, id string, in ScheduleUpdate) (schedule.ScheduledMessage, error) {
	rec, err := s.owned(ctx, userID, id)
	if err != nil {
		return schedule.ScheduledMessage{}, err
	}
	if rec.Status != schedule.StatusPending {
		return schedule.ScheduledMessage{}, chatify_errors.ErrInvalidTransition
	}
	if in.Body != nil {
		rec.Payload.Body = *in.Body
	}
	if in.ScheduledAt != nil {
		rec.ScheduledAt = in.ScheduledAt.UTC()
	}
	if in.Recurrence != nil {
		rec.Recurrence = *in.Recurrence
	}
	if in.Timezone != nil {
		rec.Timezone = *in.Timezone
	}
	if err := validateSchedule(ScheduleInput{
		RoomID:      rec.RoomID,
		Payload:     rec.Payload,
		ScheduledAt: rec.ScheduledAt,
		Recurrence:  rec.Recurrence,
		Timezone:    rec.Timezone,
	}); err != nil {
		return schedule.ScheduledMessage{}, err
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return schedule.ScheduledMessage{}, err
	}
	return rec, nil
}

func (s *ScheduledService) Cancel(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Cancel(ctx, id)
}

func (s *ScheduledService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *ScheduledService) owned(ctx context.Context, userID, id string) (schedule.ScheduledMessage, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return schedule.ScheduledMessage{}, err
	}
	if rec.OwnerID != userID {
		return schedule.ScheduledMessage{}, chatify_errors.ErrForbidden
	}
	return rec, nil
}

func (s *ScheduledService) requireMember(ctx context.Context, userID, roomID string) error {
	rm, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !rm.HasMember(userID) {
		return chatify_errors.ErrForbidden
	}
	return nil
}

func validateSchedule(in ScheduleInput) error {
	if strings.TrimSpace(in.RoomID) == "" {
		return fmt.Errorf("room id is required: %w", chatify_errors.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Payload.Body) == "" {
		return fmt.Errorf("message is required: %w", chatify_errors.ErrInvalidInput)
	}
	if in.ScheduledAt.IsZero() {
		return fmt.Errorf("scheduled time is required: %w", chatify_errors.ErrInvalidInput)
	}
	if in.Payload.Kind.RequiresFileName() && in.Payload.FileName == "" {
		return fmt.Errorf("file name is required: %w", chatify_errors.ErrInvalidInput)
	}
	if in.Timezone != "" {
		if _, err := time.LoadLocation(in.Timezone); err != nil {
			return fmt.Errorf("unknown timezone %q: %w", in.Timezone, chatify_errors.ErrInvalidInput)
		}
	}
	return nil
}
