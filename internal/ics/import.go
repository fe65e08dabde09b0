package ics

import (
	"context"
	"time"

	"eventtz/internal/event"
	appLog "eventtz/internal/log"
	"eventtz/internal/metric"
	"eventtz/internal/model"
)

// EventCreator persists validated events.
type EventCreator interface {
	CreateEvent(ctx context.Context, p event.Payload) (model.Event, error)
}

// ImportOptions describes who the imported events belong to and how far
// recurring entries are expanded.
type ImportOptions struct {
	ProfileIDs  []string
	Timezone    string
	Now         time.Time
	HorizonDays int
}

// ImportSummary reports what happened to each occurrence of an import.
type ImportSummary struct {
	Entries     int
	Occurrences int
	Created     int
	Failed      int
	Skipped     map[event.Kind]int
	Truncated   []string
}

// SkippedTotal is the number of occurrences rejected by validation.
func (s ImportSummary) SkippedTotal() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

// Import parses body, expands every entry between Now and Now+HorizonDays and
// creates one event per occurrence. Each occurrence passes through the same
// validation as a form submission in create mode; rejected ones are counted,
// not fatal. Backend failures are counted as Failed and the import goes on,
// except for context cancellation.
func Import(ctx context.Context, creator EventCreator, body []byte, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{Skipped: make(map[event.Kind]int)}

	if len(opts.ProfileIDs) == 0 {
		return summary, event.NewValidationError(event.NoProfileSelected)
	}
	if opts.Timezone == "" {
		opts.Timezone = "UTC"
	}

	entries, err := Parse(body)
	if err != nil {
		return summary, err
	}
	summary.Entries = len(entries)

	expanded, err := Expand(entries, ExpandOptions{
		From: opts.Now,
		To:   opts.Now.AddDate(0, 0, opts.HorizonDays),
	})
	if err != nil {
		return summary, err
	}
	summary.Occurrences = len(expanded.Occurrences)
	summary.Truncated = expanded.Truncated

	for _, occ := range expanded.Occurrences {
		payload, err := event.ValidateAndBuild(inputFor(occ, opts))
		if err != nil {
			kind, _ := event.KindOf(err)
			summary.Skipped[kind]++
			metric.ValidationFailed(string(kind), "import")
			continue
		}

		if _, err := creator.CreateEvent(ctx, payload); err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Failed++
			appLog.Error("import create event failed", err, "uid", occ.UID)
			continue
		}
		summary.Created++
		metric.EventSubmitted("import")
	}

	appLog.Info("ics import completed",
		"entries", summary.Entries,
		"occurrences", summary.Occurrences,
		"created", summary.Created,
		"skipped", summary.SkippedTotal(),
		"failed", summary.Failed,
	)
	return summary, nil
}

func inputFor(occ Occurrence, opts ImportOptions) event.Input {
	const (
		dateLayout  = "2006-01-02"
		clockLayout = "15:04:05"
	)
	return event.Input{
		ProfileIDs: opts.ProfileIDs,
		Timezone:   opts.Timezone,
		StartDate:  occ.Start.Format(dateLayout),
		StartTime:  occ.Start.Format(clockLayout),
		EndDate:    occ.End.Format(dateLayout),
		EndTime:    occ.End.Format(clockLayout),
		Now:        opts.Now,
		Mode:       event.ModeCreate,
	}
}
