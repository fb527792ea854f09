package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-appointment-server/internal/clinictime"
	"clinic-appointment-server/internal/middleware"
	"clinic-appointment-server/internal/models"
	"clinic-appointment-server/internal/services"
	"clinic-appointment-server/internal/utils"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	DB      *gorm.DB
	Service *services.AppointmentService
	Zone    clinictime.Zone
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(db *gorm.DB, service *services.AppointmentService, zone clinictime.Zone) *AppointmentHandler {
	return &AppointmentHandler{DB: db, Service: service, Zone: zone}
}

// CreateAppointmentRequest represents the request body for creating an appointment.
type CreateAppointmentRequest struct {
	DoctorID        uint   `json:"doctorId" binding:"required"`
	AppointmentDate string `json:"appointmentDate" binding:"required,datetime=2006-01-02"`
	AppointmentTime string `json:"appointmentTime" binding:"required"`
	Reason          string `json:"reason" binding:"required"`
	Notes           string `json:"notes"`
}

// CreateAppointment handles booking a new appointment. The appointment is
// created pending; tokens are only issued at confirmation time.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patientID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "Patient ID not found in token")
		return
	}

	// Reject malformed times at the door rather than at confirmation time.
	if _, err := h.Zone.CombineDateTime(req.AppointmentDate, req.AppointmentTime); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	// Verify doctor exists and is a doctor
	var doctor models.User
	if err := h.DB.Where("id = ? AND role = ?", req.DoctorID, models.RoleDoctor).First(&doctor).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Doctor not found or user is not a doctor")
		} else {
			utils.InternalServerError(c, "Database error verifying doctor: "+err.Error())
		}
		return
	}

	appointment := models.Appointment{
		PatientID:       patientID,
		DoctorID:        req.DoctorID,
		AppointmentDate: req.AppointmentDate,
		AppointmentTime: req.AppointmentTime,
		Reason:          req.Reason,
		Notes:           req.Notes,
		Status:          models.StatusPending,
	}

	if err := h.DB.Create(&appointment).Error; err != nil {
		utils.InternalServerError(c, "Failed to create appointment: "+err.Error())
		return
	}

	utils.Created(c, "Appointment created successfully", appointment)
}

// GetAppointmentsForUser handles fetching appointments for the logged-in user (patient or doctor).
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	userRole, _ := middleware.GetUserRoleFromContext(c)

	var appointments []models.Appointment
	var err error

	query := h.DB.Preload("Patient").Preload("Doctor").Order("appointment_date asc, appointment_time asc")

	switch userRole {
	case models.RolePatient:
		err = query.Where("patient_id = ?", userID).Find(&appointments).Error
	case models.RoleDoctor:
		err = query.Where("doctor_id = ?", userID).Find(&appointments).Error
	case models.RoleAdmin:
		err = query.Find(&appointments).Error
	default:
		utils.Forbidden(c, "User role not permitted to view appointments. Role: "+string(userRole))
		return
	}

	if err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}

	utils.Success(c, "Appointments fetched successfully", appointments)
}

// GetAppointmentByID handles fetching a single appointment by its ID.
// Accessible by involved patient, doctor, or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appointmentID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var appointment models.Appointment
	if err := h.DB.Preload("Patient").Preload("Doctor").First(&appointment, appointmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	userRole, _ := middleware.GetUserRoleFromContext(c)

	isPatientInvolved := userID == appointment.PatientID
	isDoctorInvolved := userID == appointment.DoctorID

	if userRole != models.RoleAdmin && !isPatientInvolved && !isDoctorInvolved {
		utils.Forbidden(c, "You are not authorized to view this appointment")
		return
	}

	utils.Success(c, "Appointment fetched successfully", appointment)
}

// ConfirmAppointment performs the pending -> confirmed transition and returns
// the display token and scannable QR artifact. The whole operation runs in
// one transaction; any failure rolls it back and leaves the row pending.
func (h *AppointmentHandler) ConfirmAppointment(c *gin.Context) {
	appointmentID, ok := parseIDParam(c)
	if !ok {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	userRole, _ := middleware.GetUserRoleFromContext(c)

	// Doctors may only confirm their own appointments.
	if userRole == models.RoleDoctor {
		var appointment models.Appointment
		if err := h.DB.First(&appointment, appointmentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFound(c, "Appointment not found")
			} else {
				utils.InternalServerError(c, "Database error: "+err.Error())
			}
			return
		}
		if appointment.DoctorID != userID {
			utils.Forbidden(c, "You are not authorized to confirm this appointment")
			return
		}
	}

	var result *services.ConfirmationResult
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		r, err := h.Service.ConfirmAppointment(tx, appointmentID)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAppointmentNotFound):
			utils.NotFound(c, "Appointment not found")
		case errors.Is(err, services.ErrNotPending):
			utils.Conflict(c, "Only pending appointments can be confirmed")
		default:
			utils.InternalServerError(c, "Failed to confirm appointment: "+err.Error())
		}
		return
	}

	utils.Success(c, "Appointment confirmed successfully", result)
}

// UpdateAppointmentStatusRequest represents the request body for updating an appointment's status.
type UpdateAppointmentStatusRequest struct {
	Status models.AppointmentStatus `json:"status" binding:"required,oneof=cancelled completed"`
	Notes  string                   `json:"notes"` // Optional notes for status change (e.g., cancellation reason)
}

// UpdateAppointmentStatus handles cancelling or completing an appointment.
// Confirmation is deliberately not reachable through this endpoint: it has
// its own transition that issues the tokens.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	appointmentID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UpdateAppointmentStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var appointment models.Appointment
	if err := h.DB.First(&appointment, appointmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	userRole, _ := middleware.GetUserRoleFromContext(c)

	// Authorization logic:
	// - Patient can cancel their own appointments (if status allows)
	// - Doctor can update status for their appointments
	// - Admin can update any appointment
	canUpdate := false
	if userRole == models.RoleAdmin {
		canUpdate = true
	} else if userRole == models.RoleDoctor && userID == appointment.DoctorID {
		canUpdate = true
	} else if userRole == models.RolePatient && userID == appointment.PatientID {
		if req.Status == models.StatusCancelled &&
			(appointment.Status == models.StatusPending || appointment.Status == models.StatusConfirmed) {
			canUpdate = true
		} else if req.Status != models.StatusCancelled {
			utils.Forbidden(c, "Patients can only cancel appointments.")
			return
		}
	}

	if !canUpdate {
		utils.Forbidden(c, "You are not authorized to update this appointment's status or perform this status transition.")
		return
	}

	appointment.Status = req.Status
	if req.Notes != "" {
		appointment.Notes = req.Notes
	}

	if err := h.DB.Save(&appointment).Error; err != nil {
		utils.InternalServerError(c, "Failed to update appointment status: "+err.Error())
		return
	}

	utils.Success(c, "Appointment status updated successfully", appointment)
}

func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.BadRequest(c, "Invalid Appointment ID format")
		return 0, false
	}
	return uint(id), true
}
