package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"eventtz/internal/errdef"
	appLog "eventtz/internal/log"
)

// Entry is a VEVENT reduced to what import needs. Recurrences are not expanded
// here; see Expand.
type Entry struct {
	UID     string
	Summary string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule     string
	ExDates      []time.Time
	RecurrenceID *time.Time
}

// IsOverride reports whether the entry replaces one instance of a recurring
// event.
func (e Entry) IsOverride() bool { return e.RecurrenceID != nil }

// Parse decodes an ICS payload. VEVENTs that cannot be read are logged and
// skipped; only a calendar-level failure is returned as an error.
//
// Floating date-times (no TZID, no Z suffix) are read as UTC wall clock, the
// same way the event form treats entered values.
func Parse(body []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errdef.NewBadRequest("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, errdef.NewBadRequest("parse calendar: %w", err)
	}

	entries := make([]Entry, 0)
	for _, ve := range cal.Events() {
		e, err := parseVEvent(ve)
		if err != nil {
			appLog.Warn("ics vevent skipped", "uid", ve.Id(), "err", err.Error())
			continue
		}
		entries = append(entries, e)
	}

	appLog.Debug("ics parse completed", "entries", len(entries))
	return entries, nil
}

func parseVEvent(ve *ical.VEvent) (Entry, error) {
	var out Entry

	out.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	if out.UID == "" {
		return out, errors.New("missing UID")
	}
	out.Summary = propValue(ve, ical.ComponentPropertySummary)

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(startProp)

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = normalize(startProp, start)

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, err := ve.GetEndAt()
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.End = normalize(endProp, end)
	} else if out.AllDay {
		out.End = out.Start.AddDate(0, 0, 1)
	} else {
		out.End = out.Start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := propLocation(p)
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		if t, err := parseICSTime(p.Value, propLocation(p)); err == nil {
			out.RecurrenceID = &t
		}
	}

	return out, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func propLocation(p *ical.IANAProperty) *time.Location {
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) == 1 {
		if loc, err := time.LoadLocation(tzs[0]); err == nil {
			return loc
		}
	}
	return time.UTC
}

// normalize re-reads floating values in UTC instead of the host's zone.
func normalize(p *ical.IANAProperty, t time.Time) time.Time {
	if _, hasTZ := p.ICalParameters["TZID"]; hasTZ || strings.HasSuffix(p.Value, "Z") {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// parseICSTime handles the DATE, DATE-TIME and UTC DATE-TIME forms used by
// EXDATE and RECURRENCE-ID.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
