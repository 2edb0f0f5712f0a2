package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"dams/internal/model"
)

// DefaultAPIURL is the hosted appointment API.
const DefaultAPIURL = "https://appointment-manager-node.onrender.com/api/v1"

// Session storage backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env            string
	APIBaseURL     string
	HTTPTimeout    time.Duration
	CacheTTL       time.Duration
	PageSize       int
	Verbose        bool
	SessionBackend string
	SessionPath    string
	RedisAddr      string
	DatabaseURL    string
	PhotoHosts     []string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	// mock API
	MockAPIPort     string
	JWTIssuer       string
	JWTSigningKey   string
	AccessTTL       time.Duration
	RateLimitPerMin int
}

// Load reads an optional .env file and returns config populated from
// environment variables with sensible defaults.
func Load() App {
	_ = godotenv.Load()
	return App{
		Env:            getEnv("APP_ENV", "dev"),
		APIBaseURL:     getEnv("DAMS_API_URL", DefaultAPIURL),
		HTTPTimeout:    durationEnv("DAMS_HTTP_TIMEOUT", 30*time.Second),
		CacheTTL:       durationEnv("DAMS_CACHE_TTL", time.Minute),
		PageSize:       intEnv("DAMS_PAGE_SIZE", 10),
		Verbose:        boolEnv("DAMS_VERBOSE", false),
		SessionBackend: getEnv("DAMS_SESSION_BACKEND", BackendFile),
		SessionPath:    getEnv("DAMS_SESSION_PATH", defaultSessionPath()),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		PhotoHosts:     model.DefaultPhotoHosts(),

		CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    getEnv("CLOUDINARY_FOLDER", "dams/profiles"),

		MockAPIPort:     getEnv("MOCKAPI_PORT", "8081"),
		JWTIssuer:       getEnv("JWT_ISSUER", "dams-mockapi"),
		JWTSigningKey:   getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		AccessTTL:       durationEnv("ACCESS_TTL", 24*time.Hour),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120),
	}
}

// Validate reports settings that would make the client unusable.
func (a App) Validate() error {
	var errs []error
	if a.APIBaseURL == "" {
		errs = append(errs, errors.New("DAMS_API_URL must not be empty"))
	}
	if a.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("DAMS_PAGE_SIZE must be positive, got %d", a.PageSize))
	}
	switch a.SessionBackend {
	case BackendFile:
		if a.SessionPath == "" {
			errs = append(errs, errors.New("DAMS_SESSION_PATH is required for the file backend"))
		}
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if a.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DAMS_SESSION_BACKEND %q", a.SessionBackend))
	}
	return errors.Join(errs...)
}

// CloudinaryConfigured reports whether photo uploads can be signed.
func (a App) CloudinaryConfigured() bool {
	return a.CloudinaryCloudName != "" && a.CloudinaryAPIKey != "" && a.CloudinaryAPISecret != ""
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dams-session.json"
	}
	return filepath.Join(home, ".dams", "session.json")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
