package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"eventtz/internal/model"
)

const productID = "-//eventtz//event export//EN"

// Export renders events as a PUBLISH calendar. Instants are written in UTC;
// the event's display timezone goes into the description and, when every
// event agrees, X-WR-TIMEZONE.
func Export(name string, events []model.Event, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}
	if tz := commonTimezone(events); tz != "" {
		cal.SetXWRTimezone(tz)
	}

	for _, e := range events {
		ve := cal.AddEvent(e.ID + "@eventtz")
		ve.SetDtStampTime(now)
		ve.SetStartAt(e.Start)
		ve.SetEndAt(e.End)
		ve.SetSummary(Summary(e))
		ve.SetDescription("Timezone: " + displayTimezone(e) + "\nProfiles: " + strings.Join(e.ProfileNames(), ", "))
		if e.CreatedAt != nil {
			ve.SetCreatedTime(*e.CreatedAt)
		}
		if e.UpdatedAt != nil {
			ve.SetModifiedAt(*e.UpdatedAt)
		}
	}

	return cal.Serialize()
}

// Summary is the title used for an exported event.
func Summary(e model.Event) string {
	names := e.ProfileNames()
	if len(names) == 0 {
		return "Event"
	}
	return "Event: " + strings.Join(names, ", ")
}

func displayTimezone(e model.Event) string {
	if e.Timezone == "" {
		return "UTC"
	}
	return e.Timezone
}

func commonTimezone(events []model.Event) string {
	if len(events) == 0 {
		return ""
	}
	tz := displayTimezone(events[0])
	for _, e := range events[1:] {
		if displayTimezone(e) != tz {
			return ""
		}
	}
	return tz
}
