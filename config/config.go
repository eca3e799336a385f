// Package config loads the medreport runtime configuration from the process
// environment (optionally seeded from a .env file) into a Config struct that
// is passed to constructors at startup.
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
	name    = "medreport"
	version = "1.2.0"
)

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

// Config is the full runtime configuration. It is built once by Load and
// injected into the server, services and jobs.
type Config struct {
	Env          string
	Listen       string
	Port         int
	AppBaseURL   string
	TimeLocation string

	Database   DatabaseConfig
	Auth       AuthConfig
	Mail       MailConfig
	Prediction PredictionConfig
	Admin      AdminSeed

	RedisAddr          string
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	// TrustedProxies may set X-Forwarded-For; empty trusts none.
	TrustedProxies     []string
	AuditRetentionDays int
}

// AuthConfig holds the token signing parameters.
type AuthConfig struct {
	JWTSecret      string
	AccessTokenTTL time.Duration
	ResetTokenTTL  time.Duration
	CookieSecure   bool
}

// MailConfig holds SMTP relay settings. An empty Host disables delivery and
// mails are written to the log instead.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type PredictionConfig struct {
	URL     string
	Timeout time.Duration
}

// AdminSeed describes the admin account created on startup when none exists.
type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

func GetVersion() string {
	return version
}

func GetName() string {
	return name
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("MEDREPORT_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv("MEDREPORT_DEBUG") == "true"
}

func GetLogFolder() string {
	logFolderPath := os.Getenv("MEDREPORT_LOG_FOLDER")
	if logFolderPath == "" {
		logFolderPath = "logs"
	}
	return logFolderPath
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	// a missing .env is normal in production
	_ = godotenv.Load()

	env := getenv("MEDREPORT_ENV", "development")
	cfg := &Config{
		Env:          env,
		Listen:       getenv("MEDREPORT_LISTEN", ""),
		Port:         getenvInt("MEDREPORT_PORT", 3000),
		AppBaseURL:   strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:3000"), "/"),
		TimeLocation: getenv("MEDREPORT_TIME_LOCATION", "Local"),
		Database:     loadDatabaseConfig(),
		Auth: AuthConfig{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			AccessTokenTTL: getenvDuration("JWT_ACCESS_TOKEN_EXPIRATION", time.Hour),
			ResetTokenTTL:  getenvDuration("MEDREPORT_RESET_TOKEN_TTL", time.Hour),
		},
		Mail: MailConfig{
			Host:     getenv("SMTP_HOST", ""),
			Port:     getenvInt("SMTP_PORT", 587),
			Username: os.Getenv("EMAIL_USER"),
			Password: os.Getenv("EMAIL_PASS"),
			From:     getenv("EMAIL_FROM", os.Getenv("EMAIL_USER")),
		},
		Prediction: PredictionConfig{
			URL:     getenv("PREDICTION_URL", "http://localhost:5000/predict"),
			Timeout: getenvDuration("PREDICTION_TIMEOUT", 10*time.Second),
		},
		Admin: AdminSeed{
			Email:    os.Getenv("MEDREPORT_ADMIN_EMAIL"),
			Password: os.Getenv("MEDREPORT_ADMIN_PASSWORD"),
			Name:     getenv("MEDREPORT_ADMIN_NAME", "Administrator"),
		},
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RateLimitPerMinute: getenvInt("MEDREPORT_RATE_LIMIT", 20),
		CORSAllowedOrigins: getenvList("CORS_ALLOWED_ORIGINS"),
		TrustedProxies:     getenvList("MEDREPORT_TRUSTED_PROXIES"),
		AuditRetentionDays: getenvInt("MEDREPORT_AUDIT_RETENTION_DAYS", 90),
	}

	cfg.Auth.CookieSecure = cfg.IsProduction()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no safe default.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if !IsDebug() {
			return fmt.Errorf("JWT_SECRET must be set")
		}
		c.Auth.JWTSecret = "dev-secret-change-me"
	}
	if c.IsProduction() && c.Mail.Host == "" {
		return fmt.Errorf("SMTP_HOST must be set in production")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("token lifetime must be positive")
	}
	if c.Prediction.Timeout <= 0 {
		return fmt.Errorf("prediction timeout must be positive")
	}
	if _, err := time.LoadLocation(c.TimeLocation); err != nil {
		return fmt.Errorf("time location %q: %w", c.TimeLocation, err)
	}
	return c.Database.ValidateConfig()
}

// IsProduction reports whether the session cookie must be marked Secure
// and real mail delivery is required.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getenvDuration accepts Go durations ("90m") as well as the "1h"/"7d" style
// used by jsonwebtoken, and bare numbers of seconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if strings.HasSuffix(v, "d") {
		if days, err := strconv.Atoi(strings.TrimSuffix(v, "d")); err == nil {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func getenvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
