package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for our application
type Config struct {
	Port                 string
	Origin               string
	Environment          string
	JWTSecret            string
	Database             DatabaseConfig
	JWTExpirationMinutes int
	QRToken              QRTokenConfig
	ClinicTimezone       string
	AppURL               string
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// QRTokenConfig holds settings for the signed appointment check-in credential.
type QRTokenConfig struct {
	// Secret signs every QR token. It has no default: a server started
	// without it would issue credentials that can never be verified.
	Secret string
	// Version is embedded in every issued payload so old credentials can be
	// rejected wholesale after a format change.
	Version int
	// MaxLength bounds the signed token string; it must fit the qr_token
	// column.
	MaxLength int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load database configuration
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "clinic"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	qrSecret := os.Getenv("QR_TOKEN_SECRET")
	if qrSecret == "" {
		return nil, fmt.Errorf("QR_TOKEN_SECRET is required but not set")
	}

	qrVersion, err := strconv.Atoi(getEnv("QR_TOKEN_VERSION", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid QR_TOKEN_VERSION: %w", err)
	}

	// Return complete configuration
	return &Config{
		Port:                 getEnv("PORT", "3001"),
		Origin:               getEnv("ORIGIN", "http://localhost:4200"),
		Environment:          getEnv("APP_ENV", "development"),
		JWTSecret:            getEnv("JWT_SECRET", "default_jwt_secret"),
		Database:             dbConfig,
		JWTExpirationMinutes: jwtExpMinutes,
		QRToken: QRTokenConfig{
			Secret:    qrSecret,
			Version:   qrVersion,
			MaxLength: 512,
		},
		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "Asia/Kolkata"),
		AppURL:         getEnv("APP_URL", "http://localhost:3001"),
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
