package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-appointment-server/internal/services"
)

// VerifyHandler serves the scanning client's check-in endpoint.
type VerifyHandler struct {
	DB      *gorm.DB
	Service *services.AppointmentService
}

// NewVerifyHandler creates a new VerifyHandler.
func NewVerifyHandler(db *gorm.DB, service *services.AppointmentService) *VerifyHandler {
	return &VerifyHandler{DB: db, Service: service}
}

type verifySuccess struct {
	Success bool       `json:"success"`
	Data    verifyData `json:"data"`
}

type verifyData struct {
	AppointmentID uint `json:"appointmentId"`
}

type verifyFailure struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// VerifyToken handles GET /appointments/verify?token=<string>. Rejections
// carry a stable code so the scanner can render a specific message; a token
// is redeemable exactly once.
func (h *VerifyHandler) VerifyToken(c *gin.Context) {
	presented := c.Query("token")
	if presented == "" {
		c.JSON(http.StatusBadRequest, verifyFailure{
			Code:    services.CodeInvalidTokenFormat,
			Message: "Missing token parameter",
		})
		return
	}

	appointmentID, err := h.Service.VerifyQRToken(h.DB, presented)
	if err != nil {
		var verr *services.VerificationError
		if errors.As(err, &verr) {
			status := http.StatusBadRequest
			switch verr.Code {
			case services.CodeNotFound:
				status = http.StatusNotFound
			case services.CodeAlreadyUsed, services.CodeExpired, services.CodeNotConfirmed:
				status = http.StatusConflict
			}
			c.JSON(status, verifyFailure{Code: verr.Code, Message: verr.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, verifyFailure{
			Code:    "INTERNAL_ERROR",
			Message: "Verification failed",
		})
		return
	}

	c.JSON(http.StatusOK, verifySuccess{
		Success: true,
		Data:    verifyData{AppointmentID: appointmentID},
	})
}
