package schedule

import (
	"encoding/json"
	"fmt"
	"time"

	"chatify-realtime/internal/domain"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusCancelled Status = "cancelled"
)

type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// ParseRecurrence maps a wire value onto a Recurrence. Empty means none.
func ParseRecurrence(v string) (Recurrence, error) {
	switch Recurrence(v) {
	case "":
		return RecurrenceNone, nil
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return Recurrence(v), nil
	default:
		return "", fmt.Errorf("unknown recurrence %q", v)
	}
}

func (r *Recurrence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRecurrence(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Next returns the occurrence following at, evaluated in loc. The second
// result is false for RecurrenceNone.
func (r Recurrence) Next(at time.Time, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	switch r {
	case RecurrenceDaily:
		return at.Add(24 * time.Hour), true
	case RecurrenceWeekly:
		return at.Add(7 * 24 * time.Hour), true
	case RecurrenceMonthly:
		return addMonthClamped(at.In(loc)), true
	case RecurrenceNone:
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// addMonthClamped moves t to the same day of the following month, clamping to
// that month's last day (Jan 31 -> Feb 28/29).
func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNext.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Payload is the message content a scheduled record will deliver.
type Payload struct {
	Kind        domain.MessageKind `json:"message_type"`
	Body        string             `json:"message"`
	FileName    string             `json:"file_name"`
	DisplayName string             `json:"user_name"`
	PhotoURL    string             `json:"user_photo"`
}

// ScheduledMessage is a future send request stored at scheduled_messages/{id}.
type ScheduledMessage struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"user_uid"`
	RoomID      string     `json:"room_id"`
	Payload     Payload    `json:"payload"`
	ScheduledAt time.Time  `json:"scheduled_time"`
	Status      Status     `json:"status"`
	Recurrence  Recurrence `json:"recurring_pattern"`
	Timezone    string     `json:"timezone"`
	CreatedAt   time.Time  `json:"created_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	PreviousID  string     `json:"previous_id,omitempty"`
}

// Location resolves the record's timezone, falling back to UTC.
func (s ScheduledMessage) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDue reports whether the record is pending and its time has come.
func (s ScheduledMessage) IsDue(now time.Time) bool {
	return s.Status == StatusPending && !s.ScheduledAt.After(now)
}

// NextOccurrence builds the pending successor of a fired recurring record.
// The successor gets a fresh id; the fired record is never reused.
func (s ScheduledMessage) NextOccurrence(newID string, now time.Time) (ScheduledMessage, bool) {
	next, ok := s.Recurrence.Next(s.ScheduledAt, s.Location())
	if !ok {
		return ScheduledMessage{}, false
	}
	return ScheduledMessage{
		ID:          newID,
		OwnerID:     s.OwnerID,
		RoomID:      s.RoomID,
		Payload:     s.Payload,
		ScheduledAt: next.UTC(),
		Status:      StatusPending,
		Recurrence:  s.Recurrence,
		Timezone:    s.Timezone,
		CreatedAt:   now.UTC(),
		PreviousID:  s.ID,
	}, true
}
