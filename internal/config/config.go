// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultOperatorEmail is the operator account allowed through the admin
// bypass when ADMIN_EMAILS is not set.
const DefaultOperatorEmail = "admin@chantiers.app"

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	App          AppConfig
	Auth         AuthConfig
	Subscription SubscriptionConfig
	Storage      StorageConfig
	Billing      BillingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Type     string // postgres, sqlite, mysql, sqlserver
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Path is the database file for sqlite.
	Path       string
	MaxConns   int
	LogQueries bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations bool
	Seed       bool
	TrialDays  int
	// PublicURL is the externally reachable base URL, used for redirects
	// coming back from the payment provider.
	PublicURL string
}

// AuthConfig holds credential settings.
type AuthConfig struct {
	SessionSecret string
	JWTSecret     string
	TokenTTL      time.Duration
	LoginTimeout  time.Duration
}

// SubscriptionConfig holds the subscription bypass switches.
type SubscriptionConfig struct {
	Bypass      bool
	AdminBypass bool
	AdminEmails []string
}

// StorageConfig holds object storage settings for chantier photos.
type StorageConfig struct {
	Dir        string
	SigningKey string
	URLTTL     time.Duration
	MaxUpload  int64
}

// BillingConfig holds payment provider settings.
type BillingConfig struct {
	StripeSecretKey     string
	StripePriceID       string
	StripeWebhookSecret string
	StripeAPIBase       string
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// IsOperator reports whether email belongs to the operator allowlist.
func (s SubscriptionConfig) IsOperator(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, e := range s.AdminEmails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Type:       getEnv("DB_TYPE", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "chantiers"),
			Password:   getEnv("DB_PASSWORD", "chantiers123"),
			DBName:     getEnv("DB_NAME", "chantiers"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			Path:       getEnv("DB_PATH", "chantiers.db"),
			MaxConns:   getEnvInt("DB_MAX_CONNS", 10),
			LogQueries: getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:        getEnvBool("APP_DEV", false),
			Migrations: getEnvBool("MIGRATIONS", false),
			Seed:       getEnvBool("DB_SEED", false),
			TrialDays:  getEnvInt("TRIAL_DAYS", 14),
			PublicURL:  strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
		},
		Auth: AuthConfig{
			SessionSecret: getEnv("SESSION_SECRET", "devsessionsecret"),
			JWTSecret:     getEnv("JWT_SECRET", "devjwtsecret"),
			TokenTTL:      getEnvDuration("TOKEN_TTL", 14*24*time.Hour),
			LoginTimeout:  getEnvDuration("LOGIN_TIMEOUT", 8*time.Second),
		},
		Subscription: SubscriptionConfig{
			Bypass:      getEnvBool("SUBSCRIPTION_BYPASS", false),
			AdminBypass: getEnvBool("ADMIN_BYPASS", false),
			AdminEmails: getEnvList("ADMIN_EMAILS", []string{DefaultOperatorEmail}),
		},
		Storage: StorageConfig{
			Dir:        getEnv("STORAGE_DIR", "data/photos"),
			SigningKey: getEnv("STORAGE_SIGNING_KEY", "devstoragekey"),
			URLTTL:     getEnvDuration("STORAGE_URL_TTL", time.Hour),
			MaxUpload:  int64(getEnvInt("STORAGE_MAX_UPLOAD_MB", 10)) << 20,
		},
		Billing: BillingConfig{
			StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			StripePriceID:       getEnv("STRIPE_PRICE_ID", ""),
			StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			StripeAPIBase:       getEnv("STRIPE_API_BASE", "https://api.stripe.com"),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvDuration accepts Go duration syntax ("8s", "1h").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
