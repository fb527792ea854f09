// Package clinictime normalizes appointment timestamps to the clinic's civil
// timezone. Every component that touches appointment dates or times goes
// through a Zone value threaded in from configuration; nothing in this
// codebase relies on the process-wide default timezone.
package clinictime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the civil date format used on appointment rows.
	DateLayout = "2006-01-02"
	// TimeLayout is the wall-clock format used on appointment rows.
	TimeLayout = "15:04:05"
	// DateTimeLayout is the format used for persisted civil datetimes.
	DateTimeLayout = "2006-01-02 15:04:05"
	compactLayout  = "20060102"
)

// Clock provides the current time. Production code uses SystemClock; tests
// inject fixed clocks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T }

// Zone wraps the clinic's timezone.
type Zone struct {
	loc *time.Location
}

// LoadZone resolves an IANA timezone name into a Zone.
func LoadZone(name string) (Zone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Zone{}, fmt.Errorf("invalid clinic timezone %q: %w", name, err)
	}
	return Zone{loc: loc}, nil
}

// MustLoadZone is LoadZone for tests and fixed fixtures; it panics on error.
func MustLoadZone(name string) Zone {
	z, err := LoadZone(name)
	if err != nil {
		panic(err)
	}
	return z
}

// Location exposes the underlying *time.Location for callers that need it
// directly (the cron scheduler does).
func (z Zone) Location() *time.Location { return z.loc }

// Now returns the clock's current time converted to the clinic timezone.
func (z Zone) Now(clock Clock) time.Time { return clock.Now().In(z.loc) }

// CombineDateTime merges a civil date ("2006-01-02") and a wall-clock time
// ("15:04:05") into one instant in the clinic timezone. The time string must
// have exactly three colon-separated numeric components; anything else is
// rejected rather than coerced.
func (z Zone) CombineDateTime(date, clock string) (time.Time, error) {
	if date == "" || clock == "" {
		return time.Time{}, fmt.Errorf("appointment date and time are both required (got date=%q time=%q)", date, clock)
	}
	if err := validateClockString(clock); err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(DateTimeLayout, date+" "+clock, z.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid appointment datetime %q %q: %w", date, clock, err)
	}
	return t, nil
}

// FormatDateTime renders an instant as a civil datetime string in the clinic
// timezone, suitable for DATETIME column persistence.
func (z Zone) FormatDateTime(t time.Time) string {
	return t.In(z.loc).Format(DateTimeLayout)
}

// CompactDate renders a civil date string as YYYYMMDD for use inside display
// tokens. The input must already be a valid DateLayout string.
func CompactDate(date string) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid appointment date %q: %w", date, err)
	}
	return t.Format(compactLayout), nil
}

func validateClockString(clock string) error {
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return fmt.Errorf("appointment time %q must be HH:MM:SS", clock)
	}
	for _, p := range parts {
		if len(p) != 2 {
			return fmt.Errorf("appointment time %q must be HH:MM:SS", clock)
		}
		if _, err := strconv.Atoi(p); err != nil {
			return fmt.Errorf("appointment time %q must be numeric HH:MM:SS", clock)
		}
	}
	return nil
}
