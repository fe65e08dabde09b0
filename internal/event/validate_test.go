package event

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var may1 = time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)

func validInput() Input {
	return Input{
		ProfileIDs: []string{"p1"},
		Timezone:   "UTC",
		StartDate:  "2025-06-01",
		StartTime:  "09:00",
		EndDate:    "2025-06-01",
		EndTime:    "10:00",
		Now:        may1,
		Mode:       ModeCreate,
	}
}

func requireKind(t *testing.T, err error, want Kind) {
	t.Helper()
	require.Error(t, err)
	got, ok := KindOf(err)
	require.True(t, ok, "want a ValidationError, got %T: %v", err, err)
	assert.Equal(t, want, got)
}

func TestValidateAndBuild(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		payload, err := ValidateAndBuild(validInput())
		require.NoError(t, err)

		assert.Equal(t, Payload{
			Profiles:      []string{"p1"},
			Timezone:      "UTC",
			StartDateTime: "2025-06-01T09:00:00Z",
			EndDateTime:   "2025-06-01T10:00:00Z",
		}, payload)
		assert.True(t, payload.End().After(payload.Start()))
	})

	t.Run("EndBeforeStart", func(t *testing.T) {
		in := validInput()
		in.EndTime = "08:00"
		_, err := ValidateAndBuild(in)
		requireKind(t, err, EndBeforeStart)
	})

	t.Run("EndEqualsStart", func(t *testing.T) {
		in := validInput()
		in.EndTime = in.StartTime
		_, err := ValidateAndBuild(in)
		requireKind(t, err, EndBeforeStart)
	})

	t.Run("NoProfileSelectedWinsOverBadDates", func(t *testing.T) {
		in := validInput()
		in.ProfileIDs = []string{}
		in.StartDate = ""
		in.EndTime = "not a time"
		_, err := ValidateAndBuild(in)
		requireKind(t, err, NoProfileSelected)
	})

	t.Run("NilProfiles", func(t *testing.T) {
		in := validInput()
		in.ProfileIDs = nil
		_, err := ValidateAndBuild(in)
		requireKind(t, err, NoProfileSelected)
	})

	t.Run("MissingDateTime", func(t *testing.T) {
		for _, blank := range []func(*Input){
			func(in *Input) { in.StartDate = "" },
			func(in *Input) { in.StartTime = "" },
			func(in *Input) { in.EndDate = "" },
			func(in *Input) { in.EndTime = "" },
		} {
			in := validInput()
			blank(&in)
			_, err := ValidateAndBuild(in)
			requireKind(t, err, MissingDateTime)
		}
	})

	t.Run("MalformedDateTime", func(t *testing.T) {
		in := validInput()
		in.StartDate = "06/01/2025"
		_, err := ValidateAndBuild(in)
		requireKind(t, err, MalformedDateTime)

		in = validInput()
		in.EndTime = "25:00"
		_, err = ValidateAndBuild(in)
		requireKind(t, err, MalformedDateTime)
	})

	t.Run("EndInPastOnCreate", func(t *testing.T) {
		in := validInput()
		in.Now = time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)
		_, err := ValidateAndBuild(in)
		requireKind(t, err, EndInPast)
	})

	t.Run("EndInPastRegardlessOfStart", func(t *testing.T) {
		in := validInput()
		in.StartDate = "2020-01-01"
		in.Now = time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)
		_, err := ValidateAndBuild(in)
		requireKind(t, err, EndInPast)
	})

	t.Run("EndEqualToNowIsAccepted", func(t *testing.T) {
		in := validInput()
		in.Now = time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
		_, err := ValidateAndBuild(in)
		assert.NoError(t, err)
	})

	t.Run("PastEventAllowedOnEdit", func(t *testing.T) {
		in := validInput()
		in.Mode = ModeEdit
		in.Now = time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
		_, err := ValidateAndBuild(in)
		assert.NoError(t, err)
	})

	t.Run("TimezoneDoesNotShiftInstants", func(t *testing.T) {
		in := validInput()
		in.Timezone = "Asia/Tokyo"
		payload, err := ValidateAndBuild(in)
		require.NoError(t, err)
		assert.Equal(t, "Asia/Tokyo", payload.Timezone)
		assert.Equal(t, "2025-06-01T09:00:00Z", payload.StartDateTime)
	})

	t.Run("SecondsAccepted", func(t *testing.T) {
		in := validInput()
		in.EndTime = "10:00:30"
		payload, err := ValidateAndBuild(in)
		require.NoError(t, err)
		assert.Equal(t, "2025-06-01T10:00:30Z", payload.EndDateTime)
	})

	t.Run("DuplicateProfilesCollapsed", func(t *testing.T) {
		in := validInput()
		in.ProfileIDs = []string{"p2", "p1", "p2"}
		payload, err := ValidateAndBuild(in)
		require.NoError(t, err)
		assert.Equal(t, []string{"p2", "p1"}, payload.Profiles)
	})

	t.Run("Deterministic", func(t *testing.T) {
		first, err1 := ValidateAndBuild(validInput())
		second, err2 := ValidateAndBuild(validInput())
		assert.Equal(t, first, second)
		assert.Equal(t, err1, err2)
	})
}

func TestValidationError(t *testing.T) {
	err := error(NewValidationError(EndBeforeStart))
	assert.Equal(t, "End date/time must be after start date/time", err.Error())

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, EndBeforeStart, kind)

	_, ok = KindOf(errors.New("other"))
	assert.False(t, ok)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeEdit, ParseMode("edit"))
	assert.Equal(t, ModeEdit, ParseMode(" EDIT "))
	assert.Equal(t, ModeCreate, ParseMode("create"))
	assert.Equal(t, ModeCreate, ParseMode(""))
	assert.Equal(t, "edit", ModeEdit.String())
}
