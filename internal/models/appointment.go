package models

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Appointment represents a scheduled clinic visit.
//
// The token columns are null exactly while the appointment is pending.
// Confirmation fills token_number, qr_token and expires_at together in one
// transaction; is_used may only flip to true while status is confirmed.
type Appointment struct {
	BaseModel
	PatientID uint `gorm:"index;not null" json:"patientId"`
	DoctorID  uint `gorm:"index:idx_doctor_date_token,priority:1;not null" json:"doctorId"`
	// AppointmentDate is the civil date of the visit ("2006-01-02").
	AppointmentDate string `gorm:"size:10;index:idx_doctor_date_token,priority:2" json:"appointmentDate"`
	// AppointmentTime is the wall-clock time of the visit ("15:04:05").
	AppointmentTime string            `gorm:"size:8" json:"appointmentTime"`
	Reason          string            `gorm:"size:255" json:"reason"`
	Notes           string            `gorm:"type:text" json:"notes"`
	Status          AppointmentStatus `gorm:"size:20;default:'pending';index:idx_qr_lookup,priority:3" json:"status"`

	// TokenNumber is the human-readable display token, unique per doctor per
	// day (TKN-ddd-YYYYMMDD-ssss).
	TokenNumber *string `gorm:"size:25;uniqueIndex;index:idx_doctor_date_token,priority:3" json:"tokenNumber"`
	// QRToken is the signed check-in credential, stored redundantly so
	// verification can reject on a cheap row check.
	QRToken   *string    `gorm:"size:512;uniqueIndex;index:idx_qr_lookup,priority:1" json:"-"`
	ExpiresAt *time.Time `gorm:"index:idx_qr_lookup,priority:2" json:"expiresAt"`
	IsUsed    bool       `gorm:"default:false" json:"isUsed"`

	// Relations
	Patient User `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  User `gorm:"foreignKey:DoctorID" json:"-"`
}
