package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecurrence(t *testing.T) {
	r, err := ParseRecurrence("")
	require.NoError(t, err)
	assert.Equal(t, RecurrenceNone, r)

	r, err = ParseRecurrence("weekly")
	require.NoError(t, err)
	assert.Equal(t, RecurrenceWeekly, r)

	_, err = ParseRecurrence("hourly")
	assert.Error(t, err)
}

func TestRecurrenceNext(t *testing.T) {
	at := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

	next, ok := RecurrenceDaily.Next(at, nil)
	require.True(t, ok)
	assert.Equal(t, at.Add(24*time.Hour), next)

	next, ok = RecurrenceWeekly.Next(at, nil)
	require.True(t, ok)
	assert.Equal(t, at.Add(7*24*time.Hour), next)

	_, ok = RecurrenceNone.Next(at, nil)
	assert.False(t, ok)
}

func TestMonthlyRecurrenceClampsToMonthEnd(t *testing.T) {
	cases := []struct {
		at   time.Time
		want time.Time
	}{
		{time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC)},
		{time.Date(2023, 1, 31, 8, 0, 0, 0, time.UTC), time.Date(2023, 2, 28, 8, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 31, 8, 0, 0, 0, time.UTC), time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)},
		{time.Date(2024, 12, 15, 8, 0, 0, 0, time.UTC), time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, ok := RecurrenceMonthly.Next(tc.at, time.UTC)
		require.True(t, ok)
		assert.True(t, tc.want.Equal(got), "from %s: got %s want %s", tc.at, got, tc.want)
	}
}

func TestMonthlyRecurrenceUsesRecordTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// 2024-01-31 09:00 in Tokyo is 00:00 UTC the same day.
	at := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	got, ok := RecurrenceMonthly.Next(at, loc)
	require.True(t, ok)
	assert.True(t, time.Date(2024, 2, 29, 9, 0, 0, 0, loc).Equal(got))
}

func TestNextOccurrence(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := ScheduledMessage{
		ID:          "s1",
		OwnerID:     "u1",
		RoomID:      "r1",
		Payload:     Payload{Body: "standup"},
		ScheduledAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Status:      StatusSent,
		Recurrence:  RecurrenceDaily,
	}

	next, ok := rec.NextOccurrence("s2", now)
	require.True(t, ok)
	assert.Equal(t, "s2", next.ID)
	assert.Equal(t, "s1", next.PreviousID)
	assert.Equal(t, StatusPending, next.Status)
	assert.Equal(t, RecurrenceDaily, next.Recurrence)
	assert.Equal(t, rec.ScheduledAt.Add(24*time.Hour), next.ScheduledAt)
	assert.Equal(t, now, next.CreatedAt)

	rec.Recurrence = RecurrenceNone
	_, ok = rec.NextOccurrence("s3", now)
	assert.False(t, ok)
}

func TestIsDue(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := ScheduledMessage{Status: StatusPending, ScheduledAt: now}
	assert.True(t, rec.IsDue(now))

	rec.ScheduledAt = now.Add(time.Second)
	assert.False(t, rec.IsDue(now))

	rec.ScheduledAt = now.Add(-time.Hour)
	rec.Status = StatusCancelled
	assert.False(t, rec.IsDue(now))
}
