package services

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clinic-appointment-server/internal/metrics"
	"clinic-appointment-server/internal/models"
	"clinic-appointment-server/internal/tokens"
)

// VerifyQRToken redeems a presented QR credential exactly once. The whole
// check-and-mark runs in one transaction under a row lock, so two scanners
// racing on the same token serialize and the second one is rejected. Every
// attempt that resolves to a known appointment is appended to the scan audit
// trail, rejections included; the transaction commits in those cases so the
// audit row survives the rejection.
func (s *AppointmentService) VerifyQRToken(db *gorm.DB, presented string) (uint, error) {
	raw := UnwrapPresentedToken(presented)

	claims, err := tokens.ParseQRToken(raw, s.qrConfig.Secret)
	claimExpired := false
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && claims != nil {
			// The signature is fine but the embedded exp claim has passed.
			// The attempt still resolves to an appointment, so it goes
			// through the audited path below and is rejected there.
			claimExpired = true
		} else {
			s.logger.Debug().Err(err).Msg("unparseable qr token presented")
			return 0, s.reject(&VerificationError{Code: CodeInvalidTokenFormat, Message: "QR token is malformed or has an invalid signature"})
		}
	}

	var appointmentID uint
	var rejection *VerificationError
	err = db.Transaction(func(tx *gorm.DB) error {
		var appt models.Appointment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&appt, claims.AppointmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				rejection = &VerificationError{Code: CodeNotFound, Message: "No appointment matches this QR token"}
				return nil
			}
			return fmt.Errorf("failed to load appointment %d: %w", claims.AppointmentID, err)
		}

		// The stored row is the source of truth; a credential whose
		// identity fields disagree with it was issued for different data.
		if appt.DoctorID != claims.DoctorID || appt.PatientID != claims.PatientID {
			rejection = &VerificationError{Code: CodeInvalidTokenFormat, Message: "QR token does not match the appointment record"}
			return nil
		}

		outcome := evaluateScan(&appt, s.zone.Now(s.clock))
		// Either expiry representation suffices to reject: the exp claim
		// can trip before the stored column does.
		if claimExpired && outcome == models.ScanOutcomeValid {
			outcome = models.ScanOutcomeExpired
		}
		if err := tx.Create(&models.TokenScan{
			AppointmentID: appt.ID,
			ScannedAt:     s.zone.Now(s.clock),
			Outcome:       outcome,
		}).Error; err != nil {
			return fmt.Errorf("failed to record scan for appointment %d: %w", appt.ID, err)
		}

		switch outcome {
		case models.ScanOutcomeInvalid:
			rejection = &VerificationError{Code: CodeNotConfirmed, Message: fmt.Sprintf("Appointment is %s, not confirmed", appt.Status)}
			return nil
		case models.ScanOutcomeUsed:
			rejection = &VerificationError{Code: CodeAlreadyUsed, Message: "QR token has already been used"}
			return nil
		case models.ScanOutcomeExpired:
			rejection = &VerificationError{Code: CodeExpired, Message: "QR token has expired"}
			return nil
		}

		if err := tx.Model(&appt).Update("is_used", true).Error; err != nil {
			return fmt.Errorf("failed to mark appointment %d as used: %w", appt.ID, err)
		}
		appointmentID = appt.ID
		return nil
	})
	if err != nil {
		metrics.VerificationsTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	if rejection != nil {
		return 0, s.reject(rejection)
	}

	s.logger.Info().Uint("appointment_id", appointmentID).Msg("qr token verified")
	metrics.VerificationsTotal.WithLabelValues("verified").Inc()
	return appointmentID, nil
}

func (s *AppointmentService) reject(verr *VerificationError) error {
	metrics.VerificationsTotal.WithLabelValues(verr.Code).Inc()
	return verr
}

// UnwrapPresentedToken extracts the token string from scanner input. Some
// scanning clients hand over the full check-in URL rather than the bare
// token query parameter.
func UnwrapPresentedToken(presented string) string {
	u, err := url.Parse(presented)
	if err != nil {
		return presented
	}
	if token := u.Query().Get("token"); token != "" {
		return token
	}
	return presented
}

// evaluateScan decides the outcome of presenting a credential against its
// appointment row at a given instant. Check order matters: a used token
// reports as used even after its expiry has also passed.
func evaluateScan(appt *models.Appointment, now time.Time) string {
	switch {
	case appt.Status != models.StatusConfirmed:
		return models.ScanOutcomeInvalid
	case appt.IsUsed:
		return models.ScanOutcomeUsed
	case appt.ExpiresAt == nil || now.After(*appt.ExpiresAt):
		return models.ScanOutcomeExpired
	default:
		return models.ScanOutcomeValid
	}
}
