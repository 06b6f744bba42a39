package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	LogLevel         string
	Port             string
	DownloadsDir     string
	CatalogPath      string
	DatabaseURL      string
	GeoIPDBPath      string
	FetchTimeout     time.Duration
	JobRetention     time.Duration
	JobSweepInterval time.Duration
	RecoveryPause    time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string
}

// LoadDotEnv loads the given env files when present. Variables already set
// in the process environment are never overridden.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env.local", ".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		Port:             getEnv("PORT", "3000"),
		DownloadsDir:     getEnv("DOWNLOADS_DIR", "./downloads"),
		CatalogPath:      os.Getenv("CATALOG_PATH"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		FetchTimeout:     time.Second * time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 30)),
		JobRetention:     time.Minute * time.Duration(getEnvInt("JOB_RETENTION_MINUTES", 60)),
		JobSweepInterval: time.Second * time.Duration(getEnvInt("JOB_SWEEP_INTERVAL_SECONDS", 300)),
		RecoveryPause:    time.Second * time.Duration(getEnvInt("RECOVERY_PAUSE_SECONDS", 10)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:      getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if cfg.FetchTimeout <= 0 {
		return nil, fmt.Errorf("FETCH_TIMEOUT_SECONDS must be positive")
	}
	if cfg.JobRetention <= 0 {
		return nil, fmt.Errorf("JOB_RETENTION_MINUTES must be positive")
	}
	if cfg.JobSweepInterval <= 0 {
		return nil, fmt.Errorf("JOB_SWEEP_INTERVAL_SECONDS must be positive")
	}
	if cfg.RecoveryPause < 0 {
		return nil, fmt.Errorf("RECOVERY_PAUSE_SECONDS must not be negative")
	}
	if cfg.RateLimitPerMin < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
