package tz

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListTimezones(t *testing.T) {
	zones := ListTimezones()

	require.NotEmpty(t, zones)
	assert.Contains(t, zones, "UTC")
	assert.IsNonDecreasing(t, zones)
	assert.Equal(t, zones, ListTimezones(), "list should be stable between calls")
}

func TestDiscoverZones_Fallback(t *testing.T) {
	empty := t.TempDir()

	zones := discoverZones(zoneSources{
		env:  filepath.Join(empty, "missing"),
		dirs: []string{empty},
		zip:  filepath.Join(empty, "zoneinfo.zip"),
	})

	want := slices.Clone(fallbackZones)
	slices.Sort(want)
	assert.Equal(t, want, zones)
	assert.Contains(t, zones, "UTC")
}

func TestDiscoverZones_Directory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Asia"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "posix", "Asia"), 0o755))
	tzif := []byte("TZif2 fake body")
	require.NoError(t, os.WriteFile(filepath.Join(root, "Asia", "Tokyo"), tzif, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "posix", "Asia", "Tokyo"), tzif, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "zone.tab"), []byte("# table"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Notes"), []byte("not a zone"), 0o644))

	zones := discoverZones(zoneSources{dirs: []string{filepath.Join(root, "missing"), root}})
	assert.Equal(t, []string{"Asia/Tokyo", "UTC"}, zones)
}

func TestPlausibleZoneName(t *testing.T) {
	assert.True(t, plausibleZoneName("UTC"))
	assert.True(t, plausibleZoneName("America/Argentina/Buenos_Aires"))
	assert.False(t, plausibleZoneName("zone.tab"))
	assert.False(t, plausibleZoneName("tzdata.zi"))
	assert.False(t, plausibleZoneName("leapseconds"))
	assert.False(t, plausibleZoneName("posixrules"))
	assert.False(t, plausibleZoneName("Etc/"))
}

func TestFormatInstant(t *testing.T) {
	instant := time.Date(2025, time.June, 1, 9, 5, 7, 0, time.UTC)

	t.Run("UTC", func(t *testing.T) {
		got, err := FormatInstant(&instant, "UTC")
		require.NoError(t, err)
		assert.Equal(t, "2025-06-01 09:05:07", got)
	})

	t.Run("Tokyo", func(t *testing.T) {
		got, err := FormatInstant(&instant, "Asia/Tokyo")
		require.NoError(t, err)
		assert.Equal(t, "2025-06-01 18:05:07", got)
	})

	t.Run("MidnightIsZeroNotTwentyFour", func(t *testing.T) {
		midnight := time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)
		got, err := FormatInstant(&midnight, "UTC")
		require.NoError(t, err)
		assert.Equal(t, "2025-01-02 00:00:00", got)
	})

	t.Run("NewYorkSummer", func(t *testing.T) {
		got, err := FormatInstant(&instant, "America/New_York")
		require.NoError(t, err)
		assert.Equal(t, "2025-06-01 05:05:07", got)
	})

	t.Run("Idempotent", func(t *testing.T) {
		first, err := FormatInstant(&instant, "Europe/London")
		require.NoError(t, err)
		second, err := FormatInstant(&instant, "Europe/London")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("NilInstant", func(t *testing.T) {
		got, err := FormatInstant(nil, "UTC")
		require.NoError(t, err)
		assert.Equal(t, "", got)
	})

	t.Run("InvalidTimezone", func(t *testing.T) {
		_, err := FormatInstant(&instant, "Mars/Olympus_Mons")
		assert.ErrorIs(t, err, ErrInvalidTimezone)
	})

	t.Run("EmptyTimezone", func(t *testing.T) {
		_, err := FormatInstant(&instant, "")
		assert.ErrorIs(t, err, ErrInvalidTimezone)
	})
}

func TestParseWallClockInTimezone(t *testing.T) {
	t.Run("UTC", func(t *testing.T) {
		got, err := ParseWallClockInTimezone("2025-06-01", "09:00", "UTC")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC), got)
		assert.Equal(t, time.UTC, got.Location())
	})

	t.Run("Tokyo", func(t *testing.T) {
		got, err := ParseWallClockInTimezone("2025-06-01", "09:00", "Asia/Tokyo")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("Seconds", func(t *testing.T) {
		got, err := ParseWallClockInTimezone("2025-06-01", "09:00:30", "UTC")
		require.NoError(t, err)
		assert.Equal(t, 30, got.Second())
	})

	t.Run("DaylightSavingOffsetDependsOnDate", func(t *testing.T) {
		winter, err := ParseWallClockInTimezone("2025-01-15", "12:00", "America/New_York")
		require.NoError(t, err)
		summer, err := ParseWallClockInTimezone("2025-07-15", "12:00", "America/New_York")
		require.NoError(t, err)

		assert.Equal(t, 17, winter.Hour())
		assert.Equal(t, 16, summer.Hour())
	})

	t.Run("MalformedDate", func(t *testing.T) {
		_, err := ParseWallClockInTimezone("2025-13-01", "09:00", "UTC")
		assert.ErrorIs(t, err, ErrInvalidDateTime)
	})

	t.Run("MalformedTime", func(t *testing.T) {
		_, err := ParseWallClockInTimezone("2025-06-01", "9am", "UTC")
		assert.ErrorIs(t, err, ErrInvalidDateTime)
	})

	t.Run("InvalidTimezone", func(t *testing.T) {
		_, err := ParseWallClockInTimezone("2025-06-01", "09:00", "Nowhere/City")
		assert.ErrorIs(t, err, ErrInvalidTimezone)
	})
}

func TestRoundTripFixedOffsetZones(t *testing.T) {
	for _, zone := range []string{"UTC", "Asia/Tokyo", "Asia/Kolkata"} {
		t.Run(zone, func(t *testing.T) {
			instant, err := ParseWallClockInTimezone("2025-03-09", "07:45", zone)
			require.NoError(t, err)

			formatted, err := FormatInstant(&instant, zone)
			require.NoError(t, err)
			assert.Equal(t, "2025-03-09 07:45:00", formatted)

			date, clock, err := SplitInstant(instant, zone)
			require.NoError(t, err)
			assert.Equal(t, "2025-03-09", date)
			assert.Equal(t, "07:45", clock)
		})
	}
}

func TestSplitInstant_KeepsSeconds(t *testing.T) {
	instant := time.Date(2025, time.June, 1, 9, 0, 30, 0, time.UTC)

	date, clock, err := SplitInstant(instant, "Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", date)
	assert.Equal(t, "18:00:30", clock)

	back, err := ParseWallClockInTimezone(date, clock, "Asia/Tokyo")
	require.NoError(t, err)
	assert.True(t, back.Equal(instant))

	_, _, err = SplitInstant(instant, "Nowhere/Else")
	assert.ErrorIs(t, err, ErrInvalidTimezone)
}
