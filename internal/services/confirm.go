package services

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clinic-appointment-server/internal/clinictime"
	"clinic-appointment-server/internal/config"
	"clinic-appointment-server/internal/metrics"
	"clinic-appointment-server/internal/models"
	"clinic-appointment-server/internal/tokens"
)

const qrImageSize = 256

// AppointmentService performs the confirmation state transition, QR
// verification and expiry sweeping. All time computations go through the
// injected zone and clock.
type AppointmentService struct {
	qrConfig config.QRTokenConfig
	zone     clinictime.Zone
	clock    clinictime.Clock
	logger   zerolog.Logger
}

// NewAppointmentService creates an AppointmentService.
func NewAppointmentService(qrConfig config.QRTokenConfig, zone clinictime.Zone, clock clinictime.Clock, logger zerolog.Logger) *AppointmentService {
	return &AppointmentService{
		qrConfig: qrConfig,
		zone:     zone,
		clock:    clock,
		logger:   logger,
	}
}

// AppointmentDetails is the denormalized metadata returned alongside the
// tokens for presentation.
type AppointmentDetails struct {
	AppointmentID   uint   `json:"appointmentId"`
	DoctorName      string `json:"doctorName"`
	AppointmentDate string `json:"appointmentDate"`
	AppointmentTime string `json:"appointmentTime"`
	ExpiresAt       string `json:"expiresAt"`
}

// ConfirmationResult is the response payload of a successful confirmation.
type ConfirmationResult struct {
	TokenNumber    string             `json:"tokenNumber"`
	QRImageDataURL string             `json:"qrCode"`
	Details        AppointmentDetails `json:"appointment"`
}

// ConfirmAppointment performs the pending -> confirmed transition. It must
// run inside an open transaction: the row lock it takes on the appointment,
// and the scope lock taken by the display-token generator, are only effective
// while tx is alive. Any returned error means the caller must roll back; on
// success the appointment row carries both tokens and the expiry.
func (s *AppointmentService) ConfirmAppointment(tx *gorm.DB, appointmentID uint) (*ConfirmationResult, error) {
	var appt models.Appointment
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&appt, appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.ConfirmationsTotal.WithLabelValues("not_found").Inc()
			return nil, fmt.Errorf("%w: id %d", ErrAppointmentNotFound, appointmentID)
		}
		return nil, fmt.Errorf("failed to load appointment %d: %w", appointmentID, err)
	}

	if appt.Status != models.StatusPending {
		metrics.ConfirmationsTotal.WithLabelValues("wrong_status").Inc()
		return nil, fmt.Errorf("%w: appointment %d is %q", ErrNotPending, appt.ID, appt.Status)
	}

	tokenNumber, err := tokens.NextDisplayToken(tx, appt.DoctorID, appt.AppointmentDate)
	if err != nil {
		metrics.ConfirmationsTotal.WithLabelValues("generation_failed").Inc()
		return nil, fmt.Errorf("display token generation failed: %w", err)
	}

	issued, err := tokens.IssueQRToken(&appt, s.qrConfig, s.zone, s.clock)
	if err != nil {
		metrics.ConfirmationsTotal.WithLabelValues("generation_failed").Inc()
		return nil, fmt.Errorf("qr token generation failed: %w", err)
	}

	if len(issued.Signed) > s.qrConfig.MaxLength {
		metrics.ConfirmationsTotal.WithLabelValues("generation_failed").Inc()
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTokenTooLong, len(issued.Signed), s.qrConfig.MaxLength)
	}

	updates := map[string]interface{}{
		"token_number": tokenNumber,
		"qr_token":     issued.Signed,
		"expires_at":   issued.ExpiresAt,
		"status":       models.StatusConfirmed,
		"is_used":      false,
	}
	if err := tx.Model(&appt).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to persist confirmation for appointment %d: %w", appt.ID, err)
	}

	// Re-read and compare byte-for-byte. A silent truncation or charset
	// mangling at the storage layer would otherwise produce a credential
	// that can never be verified.
	var stored models.Appointment
	if err := tx.First(&stored, appt.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to re-read appointment %d after confirmation: %w", appt.ID, err)
	}
	if stored.QRToken == nil || *stored.QRToken != issued.Signed {
		storedLen := 0
		if stored.QRToken != nil {
			storedLen = len(*stored.QRToken)
		}
		s.logger.Error().
			Uint("appointment_id", appt.ID).
			Int("generated_len", len(issued.Signed)).
			Int("stored_len", storedLen).
			Bool("stored_null", stored.QRToken == nil).
			Msg("qr token storage integrity check failed")
		metrics.ConfirmationsTotal.WithLabelValues("integrity_failed").Inc()
		return nil, fmt.Errorf("%w: appointment %d", ErrStorageIntegrity, appt.ID)
	}

	png, err := qrcode.Encode(issued.Signed, qrcode.Medium, qrImageSize)
	if err != nil {
		metrics.ConfirmationsTotal.WithLabelValues("render_failed").Inc()
		return nil, fmt.Errorf("failed to render qr image for appointment %d: %w", appt.ID, err)
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	var doctor models.User
	if err := tx.First(&doctor, appt.DoctorID).Error; err != nil {
		return nil, fmt.Errorf("failed to load doctor %d for appointment %d: %w", appt.DoctorID, appt.ID, err)
	}

	s.logger.Info().
		Uint("appointment_id", appt.ID).
		Uint("doctor_id", appt.DoctorID).
		Str("token_number", tokenNumber).
		Time("expires_at", issued.ExpiresAt).
		Msg("appointment confirmed")
	metrics.ConfirmationsTotal.WithLabelValues("confirmed").Inc()

	return &ConfirmationResult{
		TokenNumber:    tokenNumber,
		QRImageDataURL: dataURL,
		Details: AppointmentDetails{
			AppointmentID:   appt.ID,
			DoctorName:      doctor.FullName(),
			AppointmentDate: appt.AppointmentDate,
			AppointmentTime: appt.AppointmentTime,
			ExpiresAt:       issued.ExpiresAtCivil,
		},
	}, nil
}
