package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scan outcomes recorded in the audit trail.
const (
	ScanOutcomeValid   = "valid"
	ScanOutcomeUsed    = "already_used"
	ScanOutcomeExpired = "expired"
	ScanOutcomeInvalid = "invalid_state"
)

// TokenScan is an immutable audit record of a QR verification attempt.
// Rows are appended at scan time and never updated.
type TokenScan struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AppointmentID uint      `gorm:"index;not null" json:"appointmentId"`
	ScannedAt     time.Time `json:"scannedAt"`
	Outcome       string    `gorm:"size:20;not null" json:"outcome"`

	Appointment Appointment `gorm:"foreignKey:AppointmentID" json:"-"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (s *TokenScan) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
