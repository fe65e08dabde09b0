// Package tz converts between absolute instants and wall-clock time in IANA
// time zones.
//
// Instants are always handed out in UTC. A time zone only matters when an
// instant is formatted for display or when a wall-clock value typed by a
// human is turned into an instant.
package tz

import (
	"errors"
	"fmt"
	"strings"
	"time"
	// Embedded database so zone lookups behave the same on hosts without tzdata.
	_ "time/tzdata"
)

// DisplayLayout is the fixed 24-hour layout produced by FormatInstant.
const DisplayLayout = "2006-01-02 15:04:05"

const (
	dateLayout        = "2006-01-02"
	clockLayout       = "15:04"
	clockLayoutSecond = "15:04:05"
)

var (
	// ErrInvalidTimezone is returned when a time zone identifier is unknown.
	ErrInvalidTimezone = errors.New("invalid timezone")
	// ErrInvalidDateTime is returned when a date or wall-clock string is malformed.
	ErrInvalidDateTime = errors.New("invalid date/time")
)

// LoadLocation resolves an IANA identifier. Unlike time.LoadLocation an empty
// name is rejected instead of meaning UTC, and "Local" is not accepted, so the
// result never depends on the host configuration.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// FormatInstant renders instant as YYYY-MM-DD HH:MM:SS in the given zone.
// A nil instant renders as the empty string.
func FormatInstant(instant *time.Time, timezone string) (string, error) {
	if instant == nil {
		return "", nil
	}
	loc, err := LoadLocation(timezone)
	if err != nil {
		return "", err
	}
	return instant.In(loc).Format(DisplayLayout), nil
}

// ParseWallClockInTimezone interprets date (YYYY-MM-DD) and clock (HH:MM or
// HH:MM:SS) as local time in timezone and returns the matching instant in UTC.
//
// Wall-clock values inside a DST gap or fold are resolved by time.Date.
func ParseWallClockInTimezone(date, clock, timezone string) (time.Time, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}
	d, err := time.Parse(dateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidDateTime, date)
	}
	c, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	local := time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, loc)
	return local.UTC(), nil
}

// ParseClock parses HH:MM or HH:MM:SS. The date part of the result is zero.
func ParseClock(clock string) (time.Time, error) {
	clock = strings.TrimSpace(clock)
	layout := clockLayout
	if strings.Count(clock, ":") == 2 {
		layout = clockLayoutSecond
	}
	c, err := time.Parse(layout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q", ErrInvalidDateTime, clock)
	}
	return c, nil
}

// SplitInstant is the inverse of ParseWallClockInTimezone: it returns the
// YYYY-MM-DD and wall-clock strings of instant in timezone. The clock is
// HH:MM, or HH:MM:SS when the instant has non-zero seconds.
func SplitInstant(instant time.Time, timezone string) (date, clock string, err error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return "", "", err
	}
	local := instant.In(loc)
	layout := clockLayout
	if local.Second() != 0 {
		layout = clockLayoutSecond
	}
	return local.Format(dateLayout), local.Format(layout), nil
}
