package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "eventtz/internal/log"
)

const defaultMaxOccurrences = 500

// Occurrence is one concrete instance of an Entry, in UTC.
type Occurrence struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	AllDay  bool
}

// ExpandOptions bounds recurrence expansion.
type ExpandOptions struct {
	// From / To form the inclusive window occurrences must overlap.
	From time.Time
	To   time.Time

	// MaxPerEntry caps occurrences of a single recurring entry. Zero means
	// defaultMaxOccurrences.
	MaxPerEntry int
}

// ExpandResult lists expanded occurrences sorted by start, plus the UIDs that
// hit MaxPerEntry.
type ExpandResult struct {
	Occurrences []Occurrence
	Truncated   []string
}

// Expand turns entries into concrete occurrences within the window. RRULE,
// EXDATE and RECURRENCE-ID overrides are honored.
func Expand(entries []Entry, opts ExpandOptions) (ExpandResult, error) {
	var result ExpandResult

	if opts.To.Before(opts.From) {
		return result, errors.New("expand: window end is before window start")
	}
	if opts.MaxPerEntry <= 0 {
		opts.MaxPerEntry = defaultMaxOccurrences
	}

	overrides := make(map[string][]Entry)
	bases := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsOverride() {
			overrides[e.UID] = append(overrides[e.UID], e)
			continue
		}
		bases = append(bases, e)
	}

	occurrences := make([]Occurrence, 0)
	for _, e := range bases {
		var (
			occ    []Occurrence
			hitCap bool
		)
		if e.RawRRule == "" {
			occ = expandSingle(e, opts)
		} else {
			occ, hitCap = expandRecurring(e, overrides[e.UID], opts)
		}
		if hitCap {
			result.Truncated = append(result.Truncated, e.UID)
			appLog.Warn("ics expansion truncated", "uid", e.UID, "cap", opts.MaxPerEntry)
		}
		occurrences = append(occurrences, occ...)
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		return occurrences[i].Start.Before(occurrences[j].Start)
	})
	result.Occurrences = occurrences
	return result, nil
}

func expandSingle(e Entry, opts ExpandOptions) []Occurrence {
	if !overlaps(e.Start, e.End, opts.From, opts.To) {
		return nil
	}
	return []Occurrence{occurrenceOf(e, e.Start, e.End)}
}

func expandRecurring(e Entry, overrides []Entry, opts ExpandOptions) ([]Occurrence, bool) {
	r, err := rrule.StrToRRule(e.RawRRule)
	if err != nil {
		appLog.Error("ics rrule parse failed", err, "uid", e.UID, "rrule", e.RawRRule)
		return nil, false
	}
	r.DTStart(e.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range e.ExDates {
		set.ExDate(ex.In(e.Start.Location()))
	}

	duration := e.End.Sub(e.Start)
	// Instances that started before the window may still overlap it.
	from := opts.From.Add(-duration).In(e.Start.Location())
	to := opts.To.In(e.Start.Location())
	starts := set.Between(from, to, true)

	hitCap := false
	if len(starts) > opts.MaxPerEntry {
		starts = starts[:opts.MaxPerEntry]
		hitCap = true
	}

	out := make([]Occurrence, 0, len(starts)+len(overrides))
	for _, start := range starts {
		end := start.Add(duration)
		if e.AllDay {
			start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			end = start.AddDate(0, 0, 1)
		}
		if replaced(overrides, start) {
			continue
		}
		out = append(out, occurrenceOf(e, start, end))
	}

	// Overrides are windowed by their own times, not by the slot they replace.
	for _, o := range overrides {
		if overlaps(o.Start, o.End, opts.From, opts.To) {
			out = append(out, occurrenceOf(o, o.Start, o.End))
		}
	}
	return out, hitCap
}

func replaced(overrides []Entry, start time.Time) bool {
	for _, o := range overrides {
		if o.RecurrenceID.Equal(start) {
			return true
		}
	}
	return false
}

func occurrenceOf(e Entry, start, end time.Time) Occurrence {
	return Occurrence{
		UID:     e.UID,
		Summary: e.Summary,
		Start:   start.UTC(),
		End:     end.UTC(),
		AllDay:  e.AllDay,
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
