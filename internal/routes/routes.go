package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"clinic-appointment-server/internal/clinictime"
	"clinic-appointment-server/internal/config"
	"clinic-appointment-server/internal/handlers"
	"clinic-appointment-server/internal/middleware"
	"clinic-appointment-server/internal/models"
	"clinic-appointment-server/internal/services"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, svc *services.AppointmentService, zone clinictime.Zone) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg)
	appointmentHandler := handlers.NewAppointmentHandler(db, svc, zone)
	verifyHandler := handlers.NewVerifyHandler(db, svc)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
		}

		// The scanning client presents tokens without a session.
		public.GET("/appointments/verify", verifyHandler.VerifyToken)
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg)) // Apply JWT authentication middleware
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
		}

		// Appointment routes
		appointmentRoutes := private.Group("/appointments")
		{
			// Patients book their own appointments
			appointmentRoutes.POST("", middleware.RoleAuthMiddleware(models.RolePatient), appointmentHandler.CreateAppointment)

			// All authenticated users can get their own appointments
			appointmentRoutes.GET("", appointmentHandler.GetAppointmentsForUser) // Logic inside handler differentiates by role

			// Specific appointment access (Patient involved, Doctor involved, or Admin)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID) // Authorization inside handler

			// Confirmation issues the display token and QR credential
			appointmentRoutes.POST("/:id/confirm", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), appointmentHandler.ConfirmAppointment)

			// Cancellation / completion (Doctor, Admin, Patient for cancellation)
			appointmentRoutes.PATCH("/:id/status", appointmentHandler.UpdateAppointmentStatus) // Authorization inside handler
		}
	}
}
