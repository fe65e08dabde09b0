package event

import (
	"testing"
	"time"

	"eventtz/internal/model"
	"eventtz/internal/tz"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogs(t *testing.T) {
	created := time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)
	updated := time.Date(2025, time.May, 2, 8, 30, 0, 0, time.UTC)

	t.Run("CreatedOnly", func(t *testing.T) {
		entries, err := Logs(model.Event{Timezone: "Asia/Tokyo", CreatedAt: &created})
		require.NoError(t, err)
		assert.Equal(t, []LogEntry{
			{Action: "Event Created", Timestamp: "2025-05-01 21:00:00", Timezone: "Asia/Tokyo"},
		}, entries)
	})

	t.Run("UpdatedSameAsCreated", func(t *testing.T) {
		same := created
		entries, err := Logs(model.Event{Timezone: "UTC", CreatedAt: &created, UpdatedAt: &same})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("Updated", func(t *testing.T) {
		entries, err := Logs(model.Event{Timezone: "UTC", CreatedAt: &created, UpdatedAt: &updated})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, LogEntry{Action: "Event Updated", Timestamp: "2025-05-02 08:30:00", Timezone: "UTC"}, entries[1])
	})

	t.Run("DefaultsToUTC", func(t *testing.T) {
		entries, err := Logs(model.Event{CreatedAt: &created})
		require.NoError(t, err)
		assert.Equal(t, "UTC", entries[0].Timezone)
		assert.Equal(t, "2025-05-01 12:00:00", entries[0].Timestamp)
	})

	t.Run("MissingCreatedAtRendersEmpty", func(t *testing.T) {
		entries, err := Logs(model.Event{Timezone: "UTC"})
		require.NoError(t, err)
		assert.Equal(t, "", entries[0].Timestamp)
	})

	t.Run("InvalidTimezone", func(t *testing.T) {
		_, err := Logs(model.Event{Timezone: "Not/AZone", CreatedAt: &created})
		assert.ErrorIs(t, err, tz.ErrInvalidTimezone)
	})
}
