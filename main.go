package main

import (
	"fmt"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"clinic-appointment-server/internal/clinictime"
	"clinic-appointment-server/internal/config"
	"clinic-appointment-server/internal/models"
	"clinic-appointment-server/internal/routes"
	"clinic-appointment-server/internal/scheduler"
	"clinic-appointment-server/internal/services"
)

func main() {
	// Load environment variables; a missing .env is fine in containerized runs
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize configuration; this fails hard when QR_TOKEN_SECRET is unset
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("error loading config")
	}

	zone, err := clinictime.LoadZone(cfg.ClinicTimezone)
	if err != nil {
		logger.Fatal().Err(err).Msg("error loading clinic timezone")
	}

	// Initialize database connection
	db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
	if err != nil {
		logger.Fatal().Err(err).Msg("error connecting to database")
	}

	svc := services.NewAppointmentService(cfg.QRToken, zone, clinictime.SystemClock{}, logger)

	// Start the daily expiry sweeper
	cronRunner, err := scheduler.Start(db, svc, zone, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting expiry sweeper")
	}
	defer cronRunner.Stop()

	// Initialize Gin router
	router := gin.Default()

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Set up routes
	routes.SetupRoutes(router, db, cfg, svc, zone)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info().Str("port", cfg.Port).Msg("server starting")
	if err := router.Run(serverAddr); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}
