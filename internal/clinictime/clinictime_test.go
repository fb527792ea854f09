package clinictime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineDateTime(t *testing.T) {
	zone := MustLoadZone("Asia/Kolkata")

	t.Run("valid date and time", func(t *testing.T) {
		got, err := zone.CombineDateTime("2025-03-10", "09:30:00")
		require.NoError(t, err)
		want := time.Date(2025, 3, 10, 9, 30, 0, 0, zone.Location())
		assert.True(t, got.Equal(want), "got %v want %v", got, want)
	})

	t.Run("malformed inputs are rejected", func(t *testing.T) {
		cases := []struct {
			name  string
			date  string
			clock string
		}{
			{"missing seconds", "2025-03-10", "09:30"},
			{"unpadded hour", "2025-03-10", "9:30:00"},
			{"non numeric", "2025-03-10", "ab:30:00"},
			{"four components", "2025-03-10", "09:30:00:00"},
			{"empty time", "2025-03-10", ""},
			{"empty date", "", "09:30:00"},
			{"bad date", "2025-13-40", "09:30:00"},
			{"out of range minute", "2025-03-10", "09:99:00"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := zone.CombineDateTime(tc.date, tc.clock)
				assert.Error(t, err)
			})
		}
	})
}

func TestFormatDateTime(t *testing.T) {
	zone := MustLoadZone("Asia/Kolkata")
	instant := time.Date(2025, 3, 10, 10, 30, 0, 0, zone.Location())
	assert.Equal(t, "2025-03-10 10:30:00", zone.FormatDateTime(instant))
}

func TestCompactDate(t *testing.T) {
	got, err := CompactDate("2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, "20250310", got)

	_, err = CompactDate("10-03-2025")
	assert.Error(t, err)
}

func TestZoneNowUsesClinicTimezone(t *testing.T) {
	zone := MustLoadZone("Asia/Kolkata")
	utc := time.Date(2025, 3, 9, 4, 30, 0, 0, time.UTC)
	got := zone.Now(FixedClock{T: utc})
	assert.Equal(t, "2025-03-09 10:00:00", zone.FormatDateTime(got))
}
