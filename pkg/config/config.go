package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Dedup store backends.
const (
	DedupBackendFirestore = "firestore"
	DedupBackendPostgres  = "postgres"
)

var (
	ErrMissingProjectID   = errors.New("GOOGLE_PROJECT_ID is required")
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required when DEDUP_BACKEND=postgres")
	ErrUnknownDedup       = errors.New("DEDUP_BACKEND must be firestore or postgres")
)

type Config struct {
	Port      string
	JWTSecret string

	GoogleProjectID     string
	FirebaseCredentials string
	PubSubSubscription  string

	Timezone     string
	DedupBackend string
	DatabaseURL  string

	// Concurrency and deadlines for one run
	LookupConcurrency int
	ReadTimeout       time.Duration
	SendTimeout       time.Duration
	RunTimeout        time.Duration
	SendConcurrency   int
	FCMRateLimit      float64

	KPILookbackDays int
	AppBaseURL      string

	CORSAllowOrigins []string
	ScheduleFile     string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		PubSubSubscription:  getEnv("PUBSUB_SUBSCRIPTION", "document-changes-sub"),

		Timezone:     getEnv("TIMEZONE", "UTC"),
		DedupBackend: getEnv("DEDUP_BACKEND", DedupBackendFirestore),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		LookupConcurrency: getEnvInt("LOOKUP_CONCURRENCY", 32),
		ReadTimeout:       getEnvDuration("READ_TIMEOUT", 10*time.Second),
		SendTimeout:       getEnvDuration("SEND_TIMEOUT", 30*time.Second),
		RunTimeout:        getEnvDuration("RUN_TIMEOUT", 10*time.Minute),
		SendConcurrency:   getEnvInt("SEND_CONCURRENCY", 1),
		FCMRateLimit:      getEnvFloat("FCM_RATE_LIMIT", 0),

		KPILookbackDays: getEnvInt("KPI_LOOKBACK_DAYS", 14),
		AppBaseURL:      strings.TrimRight(getEnv("APP_BASE_URL", ""), "/"),

		CORSAllowOrigins: getEnvList("CORS_ALLOW_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		ScheduleFile:     getEnv("SCHEDULE_FILE", ""),
	}
}

// Validate reports configuration that makes the service unable to start.
func (c *Config) Validate() error {
	if c.GoogleProjectID == "" {
		return ErrMissingProjectID
	}
	switch c.DedupBackend {
	case DedupBackendFirestore:
	case DedupBackendPostgres:
		if c.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	default:
		return ErrUnknownDedup
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return err
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
