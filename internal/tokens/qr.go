package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"clinic-appointment-server/internal/clinictime"
	"clinic-appointment-server/internal/config"
	"clinic-appointment-server/internal/models"
)

// Validity policy for the QR credential: the effective expiry is the later of
// (now + MinValidity) and (appointment instant + PostVisitGrace). Short-notice
// bookings keep a usable 24h window; far-future bookings stay valid until one
// hour after the visit instead of expiring before it occurs.
const (
	MinValidity    = 24 * time.Hour
	PostVisitGrace = time.Hour
)

// ErrMissingSecret is returned when token issuing or parsing is attempted
// without a signing secret configured.
var ErrMissingSecret = errors.New("qr token signing secret is not configured")

// QRClaims is the signed payload of the check-in credential.
type QRClaims struct {
	AppointmentID uint `json:"appointmentId"`
	DoctorID      uint `json:"doctorId"`
	PatientID     uint `json:"patientId"`
	Version       int  `json:"version"`
	jwt.RegisteredClaims
}

// IssuedQRToken is the result of issuing a credential: the signed string plus
// its expiry, both in instant and civil-datetime form for persistence.
type IssuedQRToken struct {
	Signed         string
	ExpiresAt      time.Time
	ExpiresAtCivil string
}

// IssueQRToken builds and signs the check-in credential for an appointment.
// The appointment's date and time are combined in the clinic timezone and
// validated strictly; a row with a malformed time string can never be issued
// a credential.
func IssueQRToken(appt *models.Appointment, cfg config.QRTokenConfig, zone clinictime.Zone, clock clinictime.Clock) (IssuedQRToken, error) {
	if cfg.Secret == "" {
		return IssuedQRToken{}, ErrMissingSecret
	}

	visitAt, err := zone.CombineDateTime(appt.AppointmentDate, appt.AppointmentTime)
	if err != nil {
		return IssuedQRToken{}, fmt.Errorf("cannot issue qr token for appointment %d: %w", appt.ID, err)
	}

	now := zone.Now(clock)
	expiresAt := now.Add(MinValidity)
	if byVisit := visitAt.Add(PostVisitGrace); byVisit.After(expiresAt) {
		expiresAt = byVisit
	}

	claims := &QRClaims{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		PatientID:     appt.PatientID,
		Version:       cfg.Version,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return IssuedQRToken{}, fmt.Errorf("failed to sign qr token: %w", err)
	}

	return IssuedQRToken{
		Signed:         signed,
		ExpiresAt:      expiresAt,
		ExpiresAtCivil: zone.FormatDateTime(expiresAt),
	}, nil
}

// ParseQRToken verifies a presented credential's signature and exp claim and
// returns the decoded payload. When the only failure is the exp claim the
// decoded claims are returned alongside the error: the signature checked out,
// so callers may still resolve the appointment for auditing. Any other parse
// or signature failure returns nil claims.
func ParseQRToken(signed string, secret string) (*QRClaims, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	claims := &QRClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims, fmt.Errorf("failed to parse qr token: %w", err)
		}
		return nil, fmt.Errorf("failed to parse qr token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid qr token")
	}

	return claims, nil
}
