package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clinic-appointment-server/internal/clinictime"
	"clinic-appointment-server/internal/models"
)

const displayPrefix = "TKN"

// Field widths are fixed: a wider value would format fine but every parse of
// the stored token would fail afterwards, wedging sequence allocation for the
// whole (doctor, date) scope. Out-of-range values are rejected at format time
// instead.
const (
	MaxDoctorID = 999
	MaxSequence = 9999
)

// ErrMalformedDisplayToken is returned when a stored token does not match the
// TKN-ddd-YYYYMMDD-ssss shape.
var ErrMalformedDisplayToken = errors.New("malformed display token")

// ErrSequenceExhausted is returned when a (doctor, date) scope has used up
// all four-digit sequence numbers.
var ErrSequenceExhausted = errors.New("display token sequence exhausted for scope")

// DisplayToken is the parsed form of a human-readable queue token.
type DisplayToken struct {
	DoctorID uint
	Date     string // compact YYYYMMDD
	Sequence int
}

// String formats the token as TKN-{doctor:3}-{date}-{sequence:4}.
func (t DisplayToken) String() string {
	return fmt.Sprintf("%s-%03d-%s-%04d", displayPrefix, t.DoctorID, t.Date, t.Sequence)
}

// FormatDisplayToken renders a display token for a doctor, a civil appointment
// date ("2006-01-02") and a sequence number.
func FormatDisplayToken(doctorID uint, date string, sequence int) (string, error) {
	if doctorID > MaxDoctorID {
		return "", fmt.Errorf("doctor id %d does not fit the %d-digit token field", doctorID, 3)
	}
	if sequence < 1 {
		return "", fmt.Errorf("display token sequence must be positive, got %d", sequence)
	}
	if sequence > MaxSequence {
		return "", fmt.Errorf("%w: sequence %d exceeds %d", ErrSequenceExhausted, sequence, MaxSequence)
	}
	compact, err := clinictime.CompactDate(date)
	if err != nil {
		return "", err
	}
	return DisplayToken{DoctorID: doctorID, Date: compact, Sequence: sequence}.String(), nil
}

// ParseDisplayToken is the inverse of FormatDisplayToken. It returns
// ErrMalformedDisplayToken (wrapped with detail) instead of guessing at
// partially valid input.
func ParseDisplayToken(s string) (DisplayToken, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 4 || parts[0] != displayPrefix {
		return DisplayToken{}, fmt.Errorf("%w: %q", ErrMalformedDisplayToken, s)
	}
	if len(parts[1]) != 3 || len(parts[2]) != 8 || len(parts[3]) != 4 {
		return DisplayToken{}, fmt.Errorf("%w: %q has wrong field widths", ErrMalformedDisplayToken, s)
	}
	doctorID, err := strconv.Atoi(parts[1])
	if err != nil || doctorID < 0 {
		return DisplayToken{}, fmt.Errorf("%w: bad doctor id in %q", ErrMalformedDisplayToken, s)
	}
	if _, err := strconv.Atoi(parts[2]); err != nil {
		return DisplayToken{}, fmt.Errorf("%w: bad date in %q", ErrMalformedDisplayToken, s)
	}
	seq, err := strconv.Atoi(parts[3])
	if err != nil || seq <= 0 {
		return DisplayToken{}, fmt.Errorf("%w: bad sequence in %q", ErrMalformedDisplayToken, s)
	}
	return DisplayToken{DoctorID: uint(doctorID), Date: parts[2], Sequence: seq}, nil
}

// NextDisplayToken allocates the next sequential display token for a doctor
// and appointment date. It must run inside the caller's transaction: the
// SELECT takes an exclusive row lock over the (doctor, date) scope, and the
// lock is what keeps two concurrent confirmations from computing the same
// sequence. The first token of a scope gets sequence 1.
func NextDisplayToken(tx *gorm.DB, doctorID uint, date string) (string, error) {
	var lastTokens []string
	err := tx.Model(&models.Appointment{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("doctor_id = ? AND appointment_date = ? AND token_number IS NOT NULL", doctorID, date).
		Order("token_number DESC").
		Limit(1).
		Pluck("token_number", &lastTokens).Error
	if err != nil {
		return "", fmt.Errorf("failed to read last token number for doctor %d on %s: %w", doctorID, date, err)
	}

	sequence := 1
	if len(lastTokens) > 0 {
		parsed, err := ParseDisplayToken(lastTokens[0])
		if err != nil {
			return "", fmt.Errorf("stored token number %q is unparseable: %w", lastTokens[0], err)
		}
		sequence = parsed.Sequence + 1
	}

	token, err := FormatDisplayToken(doctorID, date, sequence)
	if err != nil {
		return "", fmt.Errorf("failed to format display token: %w", err)
	}
	return token, nil
}
