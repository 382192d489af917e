package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Zoom     ZoomConfig
	Google   GoogleConfig
	Email    EmailConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	ExternalURL        string // public base URL used to build OAuth redirect URIs
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/liveclass?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds platform session token settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// ZoomConfig holds Zoom OAuth app credentials and API endpoints.
type ZoomConfig struct {
	ClientID        string
	ClientSecret    string
	APIBaseURL      string // https://api.zoom.us/v2
	OAuthTokenURL   string // https://zoom.us/oauth/token
	Domain          string // meeting host domain, e.g. https://uvirtual.zoom.us/ (stable start links)
	WebhookSecret   string // bearer secret expected on the events endpoint
	Timezone        string // meeting timezone sent on create/update
	MaxParticipants int    // vendor hard participant cap, drives the enrollment warning
}

// GoogleConfig holds Google OAuth app settings for the YouTube integration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	ProjectID    string
	RedirectPath string // callback path appended to the external URL
	Timezone     string // UTC offset appended to broadcast start times, e.g. -04:00
}

// EmailConfig holds SMTP settings for meeting-start notifications.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			ExternalURL:        strings.TrimRight(getEnv("EXTERNAL_URL", "http://localhost:8080"), "/"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/liveclass?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "liveclass"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		Zoom: ZoomConfig{
			ClientID:        getEnv("ZOOM_CLIENT_ID", ""),
			ClientSecret:    getEnv("ZOOM_CLIENT_SECRET", ""),
			APIBaseURL:      getEnv("ZOOM_API_BASE_URL", "https://api.zoom.us/v2"),
			OAuthTokenURL:   getEnv("ZOOM_OAUTH_TOKEN_URL", "https://zoom.us/oauth/token"),
			Domain:          getEnv("ZOOM_DOMAIN", "https://zoom.us/"),
			WebhookSecret:   getEnv("ZOOM_WEBHOOK_SECRET", ""),
			Timezone:        getEnv("ZOOM_TIMEZONE", "America/Santiago"),
			MaxParticipants: getEnvInt("ZOOM_MAX_PARTICIPANTS", 300),
		},
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			ProjectID:    getEnv("GOOGLE_PROJECT_ID", ""),
			RedirectPath: getEnv("GOOGLE_REDIRECT_PATH", "/zoom/callback_google_auth"),
			Timezone:     getEnv("YOUTUBE_TIMEZONE", "+00:00"),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "LiveClass"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
