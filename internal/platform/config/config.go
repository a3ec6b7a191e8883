package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// Site is a named location preset read from the environment.
type Site struct {
	Name         string
	Lat          float64
	Lng          float64
	RadiusMeters float64
}

type Config struct {
	Addr                     string
	Environment              string
	DatabaseURL              string
	MigrationsDir            string
	StoreBackend             string
	FirestoreProjectID       string
	FirestoreCredentialsFile string
	JWTSecret                string
	TokenTTL                 time.Duration
	SeedAdminEmail           string
	SeedAdminPassword        string
	RunMigrations            bool
	RunSeed                  bool
	MaxBodyBytes             int64
	RateLimitPerMinute       int
	MetricsEnabled           bool
	OfficeStart              string
	Timezone                 string
	SamplingWindow           time.Duration
	SampleTimeout            time.Duration
	HeadOffice               Site
	Factory                  Site
	Field                    Site
	AbsenceInterval          time.Duration
	ReportsDir               string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:                     getEnv("APP_ADDR", ":8080"),
		Environment:              getEnv("APP_ENV", "development"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		MigrationsDir:            getEnv("MIGRATIONS_DIR", "migrations"),
		StoreBackend:             strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		FirestoreProjectID:       getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreCredentialsFile: getEnv("FIRESTORE_CREDENTIALS_FILE", ""),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		TokenTTL:                 getEnvDuration("TOKEN_TTL", 12*time.Hour),
		SeedAdminEmail:           getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword:        getEnv("SEED_ADMIN_PASSWORD", ""),
		RunMigrations:            getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:                  getEnvBool("RUN_SEED", true),
		MaxBodyBytes:             int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:       getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		MetricsEnabled:           getEnvBool("METRICS_ENABLED", true),
		OfficeStart:              getEnv("OFFICE_START", "09:00"),
		Timezone:                 getEnv("TIMEZONE", "Local"),
		SamplingWindow:           getEnvDuration("SAMPLING_WINDOW", 5*time.Second),
		SampleTimeout:            getEnvDuration("SAMPLE_TIMEOUT", 15*time.Second),
		HeadOffice: Site{
			Name:         getEnv("HEAD_OFFICE_NAME", "Head Office"),
			Lat:          getEnvFloat("HEAD_OFFICE_LAT", 0),
			Lng:          getEnvFloat("HEAD_OFFICE_LNG", 0),
			RadiusMeters: getEnvFloat("HEAD_OFFICE_RADIUS", 150),
		},
		Factory: Site{
			Name:         getEnv("FACTORY_NAME", "Factory"),
			Lat:          getEnvFloat("FACTORY_LAT", 0),
			Lng:          getEnvFloat("FACTORY_LNG", 0),
			RadiusMeters: getEnvFloat("FACTORY_RADIUS", 300),
		},
		Field: Site{
			Name:         getEnv("FIELD_NAME", "Field"),
			RadiusMeters: getEnvFloat("FIELD_RADIUS", 10000000),
		},
		AbsenceInterval: getEnvDuration("ABSENCE_INTERVAL", time.Hour),
		ReportsDir:      getEnv("REPORTS_DIR", ""),
	}
}

// Location resolves Timezone; "Local" and "" mean the process zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case BackendFirestore:
		if strings.TrimSpace(c.FirestoreProjectID) == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required for the firestore backend")
		}
	case BackendMemory:
		if c.Environment == "production" {
			return fmt.Errorf("STORE_BACKEND=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of postgres, firestore, memory")
	}
	if c.Environment == "production" {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
		}
	}
	if _, err := time.Parse("15:04", c.OfficeStart); err != nil {
		return fmt.Errorf("OFFICE_START must be HH:MM")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}
	if c.SamplingWindow <= 0 || c.SamplingWindow > 5*time.Second {
		return fmt.Errorf("SAMPLING_WINDOW must be positive and at most 5s")
	}
	if c.SampleTimeout <= 0 {
		return fmt.Errorf("SAMPLE_TIMEOUT must be positive")
	}
	if c.HeadOffice.Lat == 0 || c.HeadOffice.Lng == 0 {
		return fmt.Errorf("HEAD_OFFICE_LAT and HEAD_OFFICE_LNG are required")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	return nil
}
