package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Verification code display modes
const (
	VerificationModeStandard = "standard"
	VerificationModeEnhanced = "enhanced"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Notify   NotifyConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// AuthConfig holds the security policy for the approval workflow. Values
// are injected into services at construction; operators change them via
// environment and restart.
type AuthConfig struct {
	JWTSecret string

	// ApprovalRequired gates the whole workflow; when false every login
	// issues a full session directly.
	ApprovalRequired bool

	// TrustFirstDevice lets a user with no live sessions (first-ever
	// login) skip approval for their first device.
	TrustFirstDevice bool

	// AttemptsPerHour bounds authentication-request creation per rolling
	// hour, keyed independently by user and by IP.
	AttemptsPerHour int

	// PeerThreshold is the distinct-approver count that approves a request.
	PeerThreshold int

	// VerificationMode is "standard" (code shown to the requester and on
	// the pending-approval list, informational) or "enhanced" (code shown
	// only on the requesting device; approvers must submit it, learned
	// out-of-band from the requester).
	VerificationMode string

	RequestTTL    time.Duration
	SessionTTL    time.Duration
	InviteTTL     time.Duration
	SweepInterval time.Duration
}

type NotifyConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
	BaseURL     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "vouch"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Env:      env,
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:        jwtSecret,
			ApprovalRequired: getEnvAsBool("APPROVAL_REQUIRED", true),
			TrustFirstDevice: getEnvAsBool("TRUST_FIRST_DEVICE", true),
			AttemptsPerHour:  getEnvAsInt("AUTH_ATTEMPTS_PER_HOUR", 3),
			PeerThreshold:    getEnvAsInt("PEER_APPROVAL_THRESHOLD", 2),
			VerificationMode: getEnv("VERIFICATION_MODE", VerificationModeStandard),
			RequestTTL:       getEnvAsDuration("AUTH_REQUEST_TTL", 7*24*time.Hour),
			SessionTTL:       getEnvAsDuration("SESSION_TTL", 30*24*time.Hour),
			InviteTTL:        getEnvAsDuration("INVITE_TTL", 14*24*time.Hour),
			SweepInterval:    getEnvAsDuration("SWEEP_INTERVAL", 1*time.Hour),
		},
		Notify: NotifyConfig{
			Enabled:     getEnvAsBool("NOTIFY_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("NOTIFY_FROM_ADDRESS", ""),
			BaseURL:     getEnv("NOTIFY_BASE_URL", "http://localhost:8080"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}

	if cfg.Notify.Enabled && cfg.Notify.FromAddress == "" {
		return nil, fmt.Errorf("NOTIFY_FROM_ADDRESS is required when NOTIFY_ENABLED is true")
	}

	return cfg, nil
}

// Validate checks the policy values for internal consistency.
func (a *AuthConfig) Validate() error {
	if a.AttemptsPerHour < 1 {
		return fmt.Errorf("AUTH_ATTEMPTS_PER_HOUR must be at least 1 (got %d)", a.AttemptsPerHour)
	}
	if a.PeerThreshold < 1 {
		return fmt.Errorf("PEER_APPROVAL_THRESHOLD must be at least 1 (got %d)", a.PeerThreshold)
	}
	switch a.VerificationMode {
	case VerificationModeStandard, VerificationModeEnhanced:
	default:
		return fmt.Errorf("VERIFICATION_MODE must be %q or %q (got %q)",
			VerificationModeStandard, VerificationModeEnhanced, a.VerificationMode)
	}
	if a.RequestTTL <= 0 {
		return fmt.Errorf("AUTH_REQUEST_TTL must be positive")
	}
	if a.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	return nil
}

// EnhancedVerification reports whether approvers must submit the code.
func (a *AuthConfig) EnhancedVerification() bool {
	return a.VerificationMode == VerificationModeEnhanced
}

// validateJWTSecret enforces minimum security standards for the JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
