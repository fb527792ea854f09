package services

import "errors"

// Confirmation precondition and integrity errors. The HTTP layer maps
// ErrAppointmentNotFound and ErrNotPending to 4xx responses; everything else
// is a 500.
var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrNotPending          = errors.New("appointment is not in pending status")
	ErrTokenTooLong        = errors.New("signed qr token exceeds storage bound")
	ErrStorageIntegrity    = errors.New("stored qr token does not match generated token")
)

// Stable outcome codes for the verification contract.
const (
	CodeInvalidTokenFormat = "INVALID_TOKEN_FORMAT"
	CodeNotFound           = "APPOINTMENT_NOT_FOUND"
	CodeNotConfirmed       = "APPOINTMENT_NOT_CONFIRMED"
	CodeAlreadyUsed        = "TOKEN_ALREADY_USED"
	CodeExpired            = "TOKEN_EXPIRED"
)

// VerificationError is a rejection of a presented QR token, carrying a stable
// code the scanning client renders a specific message for.
type VerificationError struct {
	Code    string
	Message string
}

func (e *VerificationError) Error() string {
	return e.Code + ": " + e.Message
}
