package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Notif     NotifConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Env         string
	Port        int
	FrontendURL string
}

// IsProduction reports whether the app runs in the production environment.
func (a AppConfig) IsProduction() bool { return a.Env == "production" }

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ProjectTokenTTL time.Duration
	OTPTTL          time.Duration
	OTPResendWindow time.Duration
	BcryptCost      int
	CleanupInterval time.Duration
	DefaultSubUsers int
}

type NotifConfig struct {
	Provider  string
	FromEmail string
	FromName  string
	AWSRegion string
	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
}

type RateLimitConfig struct {
	Enabled bool
}

// Load reads configuration from environment variables, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:         getEnv("APP_ENV", "development"),
			Port:        getEnvInt("PORT", 8080),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Name:         getEnv("DB_NAME", "projecthub"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", ""),
			AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 8*time.Hour),
			RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 168*time.Hour),
			ProjectTokenTTL: getEnvDuration("PROJECT_TOKEN_TTL", time.Hour),
			OTPTTL:          getEnvDuration("OTP_TTL", 10*time.Minute),
			OTPResendWindow: getEnvDuration("OTP_RESEND_WINDOW", time.Minute),
			BcryptCost:      getEnvInt("BCRYPT_COST", 12),
			CleanupInterval: getEnvDuration("CLEANUP_INTERVAL", time.Hour),
			DefaultSubUsers: getEnvInt("DEFAULT_SUB_USER_LIMIT", 5),
		},
		Notif: NotifConfig{
			Provider:  getEnv("NOTIF_PROVIDER", "console"),
			FromEmail: getEnv("NOTIF_FROM_EMAIL", "no-reply@xtown.example"),
			FromName:  getEnv("NOTIF_FROM_NAME", "Xtown"),
			AWSRegion: getEnv("AWS_REGION", "us-east-1"),
			SMTPHost:  getEnv("SMTP_HOST", "localhost"),
			SMTPPort:  getEnvInt("SMTP_PORT", 587),
			SMTPUser:  getEnv("SMTP_USER", ""),
			SMTPPass:  getEnv("SMTP_PASS", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
