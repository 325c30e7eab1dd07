// Package config lee la configuración del servicio desde variables de
// entorno, con .env opcional para desarrollo local.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	// DBDSN vacío => store en memoria (dev y tests).
	DBDSN         string
	MigrationsDir string

	// AuthURL vacía => modo dev (claims por headers de debug).
	AuthURL    string
	AuthAPIKey string

	DirectoryURL    string
	DirectoryAPIKey string

	FCMURL       string
	FCMServerKey string

	BillingURL           string
	BillingMaxMonthsOwed int

	ReportDir   string
	QRRenderURL string
}

func Load() (*Config, error) {
	// .env es opcional; en producción las vars ya están en el entorno.
	_ = godotenv.Load(".env")

	cfg := &Config{
		Port:        getenv("PORT", "8080"),
		Environment: getenv("ENV", "development"),

		DBDSN:         os.Getenv("DB_DSN"),
		MigrationsDir: getenv("MIGRATIONS_DIR", "migrations"),

		AuthURL:    os.Getenv("AUTH_URL"),
		AuthAPIKey: os.Getenv("AUTH_API_KEY"),

		DirectoryURL:    os.Getenv("DIRECTORY_URL"),
		DirectoryAPIKey: os.Getenv("DIRECTORY_API_KEY"),

		FCMURL:       os.Getenv("FCM_URL"),
		FCMServerKey: os.Getenv("FCM_SERVER_KEY"),

		BillingURL: os.Getenv("BILLING_URL"),

		ReportDir:   getenv("REPORT_DIR", "reports"),
		QRRenderURL: os.Getenv("QR_RENDER_URL"),
	}

	maxOwed, err := getenvInt("BILLING_MAX_MONTHS_OWED", 0)
	if err != nil {
		return nil, err
	}
	cfg.BillingMaxMonthsOwed = maxOwed

	return cfg, nil
}

func getenv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
