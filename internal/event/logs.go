package event

import (
	"eventtz/internal/model"
	"eventtz/internal/tz"
)

const defaultTimezone = "UTC"

// LogEntry is one line of an event's change history.
type LogEntry struct {
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	Timezone  string `json:"timezone"`
}

// Logs derives the change history of e from its timestamps, formatted in the
// event's own timezone. An update entry is only present when the event was
// modified after creation.
func Logs(e model.Event) ([]LogEntry, error) {
	zone := e.Timezone
	if zone == "" {
		zone = defaultTimezone
	}

	created, err := tz.FormatInstant(e.CreatedAt, zone)
	if err != nil {
		return nil, err
	}
	entries := []LogEntry{{Action: "Event Created", Timestamp: created, Timezone: zone}}

	if e.UpdatedAt != nil && (e.CreatedAt == nil || !e.UpdatedAt.Equal(*e.CreatedAt)) {
		updated, err := tz.FormatInstant(e.UpdatedAt, zone)
		if err != nil {
			return nil, err
		}
		entries = append(entries, LogEntry{Action: "Event Updated", Timestamp: updated, Timezone: zone})
	}
	return entries, nil
}
