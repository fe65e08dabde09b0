// Package event validates event form input and builds the payload the
// backend expects for POST /events and PUT /events/{id}.
package event

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Mode selects which checks apply. Only creation rejects events that already ended.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// ParseMode maps "create" / "edit" onto a Mode; anything else is ModeCreate.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), "edit") {
		return ModeEdit
	}
	return ModeCreate
}

// Input is the raw form state. Now is the caller's clock reading.
type Input struct {
	ProfileIDs []string `validate:"min=1"`
	Timezone   string

	StartDate string `validate:"required"`
	StartTime string `validate:"required"`
	EndDate   string `validate:"required"`
	EndTime   string `validate:"required"`

	Now  time.Time
	Mode Mode
}

// Payload is the request body for creating or replacing an event.
type Payload struct {
	Profiles      []string `json:"profiles"`
	Timezone      string   `json:"timezone"`
	StartDateTime string   `json:"startDateTime"`
	EndDateTime   string   `json:"endDateTime"`
}

// Start returns the parsed start instant of a payload built by ValidateAndBuild.
func (p Payload) Start() time.Time {
	t, _ := time.Parse(time.RFC3339, p.StartDateTime)
	return t
}

// End returns the parsed end instant of a payload built by ValidateAndBuild.
func (p Payload) End() time.Time {
	t, _ := time.Parse(time.RFC3339, p.EndDateTime)
	return t
}

// The form sends date and time separately; they are joined with a T and
// compared as entered, without applying Input.Timezone.
const (
	naiveLayout       = "2006-01-02T15:04"
	naiveLayoutSecond = "2006-01-02T15:04:05"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateAndBuild checks in the order profiles, presence, format, ordering,
// past end. The first failing check wins.
func ValidateAndBuild(in Input) (Payload, error) {
	if err := validate.Struct(in); err != nil {
		return Payload{}, classify(err)
	}

	start, err := parseNaive(in.StartDate, in.StartTime)
	if err != nil {
		return Payload{}, NewValidationError(MalformedDateTime)
	}
	end, err := parseNaive(in.EndDate, in.EndTime)
	if err != nil {
		return Payload{}, NewValidationError(MalformedDateTime)
	}

	if !end.After(start) {
		return Payload{}, NewValidationError(EndBeforeStart)
	}
	if in.Mode == ModeCreate && end.Before(in.Now) {
		return Payload{}, NewValidationError(EndInPast)
	}

	return Payload{
		Profiles:      uniqueIDs(in.ProfileIDs),
		Timezone:      in.Timezone,
		StartDateTime: start.Format(time.RFC3339),
		EndDateTime:   end.Format(time.RFC3339),
	}, nil
}

// classify turns struct validation failures into a single kind. ProfileIDs
// is declared first, but the check below does not rely on field order.
func classify(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	for _, fe := range fieldErrs {
		if fe.StructField() == "ProfileIDs" {
			return NewValidationError(NoProfileSelected)
		}
	}
	return NewValidationError(MissingDateTime)
}

func parseNaive(date, clock string) (time.Time, error) {
	value := strings.TrimSpace(date) + "T" + strings.TrimSpace(clock)
	layout := naiveLayout
	if strings.Count(clock, ":") == 2 {
		layout = naiveLayoutSecond
	}
	return time.Parse(layout, value)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
