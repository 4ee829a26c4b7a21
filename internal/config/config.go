package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr           = ":8080"
	defaultDatabaseURL        = "docshare.db"
	defaultJWTAccessTTL       = "15m"
	defaultRefreshTTL         = "168h"
	defaultEmailVerifyTTL     = "24h"
	defaultPasswordResetTTL   = "1h"
	defaultCookieSecure       = "false"
	defaultCookieSameSite     = "Lax"
	defaultCookiePath         = "/api/v1/auth"
	defaultJWTSecret          = "change-me-jwt-secret"
	defaultRefreshTokenPepper = "change-me-refresh-pepper"
	defaultAppBaseURL         = "http://localhost:5173"
	defaultLogLevel           = "info"
	defaultLogFormat          = "text"
	defaultShutdownTimeout    = "10s"
	defaultCleanupSchedule    = "@hourly"
)

type Config struct {
	AppEnv          string
	HTTPAddr        string
	DatabaseURL     string
	ShutdownTimeout time.Duration

	JWTAccessSecret    string
	JWTRefreshSecret   string
	EmailTokenSecret   string
	ResetTokenSecret   string
	JWTAccessTTL       time.Duration
	RefreshTTL         time.Duration
	EmailVerifyTTL     time.Duration
	PasswordResetTTL   time.Duration
	RefreshTokenPepper string

	CookieSecure   bool
	CookieSameSite string
	CookiePath     string

	SMTPHost       string
	SMTPUser       string
	SMTPPassword   string
	MailFrom       string
	SMTPSkipVerify bool
	AppBaseURL     string

	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string

	// CleanupSchedule is a cron spec for purging expired refresh tokens
	// inside the API process. "off" disables it.
	CleanupSchedule string
}

// Load reads an optional .env file (files named in paths, default ".env") and
// then the process environment, which wins over the file.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))

	// One JWT_SECRET is enough for development; each kind can be split out.
	baseSecret := strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.JWTAccessSecret = strings.TrimSpace(getEnv("JWT_ACCESS_SECRET", baseSecret))
	cfg.JWTRefreshSecret = strings.TrimSpace(getEnv("JWT_REFRESH_SECRET", baseSecret))
	cfg.EmailTokenSecret = strings.TrimSpace(getEnv("EMAIL_TOKEN_SECRET", baseSecret))
	cfg.ResetTokenSecret = strings.TrimSpace(getEnv("RESET_TOKEN_SECRET", baseSecret))
	cfg.RefreshTokenPepper = strings.TrimSpace(getEnv("REFRESH_TOKEN_PEPPER", defaultRefreshTokenPepper))

	var err error
	durations := []struct {
		dst      *time.Duration
		name     string
		fallback string
	}{
		{&cfg.JWTAccessTTL, "JWT_ACCESS_TTL", defaultJWTAccessTTL},
		{&cfg.RefreshTTL, "REFRESH_TTL", defaultRefreshTTL},
		{&cfg.EmailVerifyTTL, "EMAIL_VERIFY_TTL", defaultEmailVerifyTTL},
		{&cfg.PasswordResetTTL, "PASSWORD_RESET_TTL", defaultPasswordResetTTL},
		{&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout},
	}
	for _, d := range durations {
		*d.dst, err = parseDurationEnv(d.name, d.fallback)
		if err != nil {
			return nil, err
		}
	}

	cfg.CookieSecure = parseBoolEnv("COOKIE_SECURE", defaultCookieSecure)
	cfg.CookieSameSite = strings.TrimSpace(getEnv("COOKIE_SAMESITE", defaultCookieSameSite))
	cfg.CookiePath = strings.TrimSpace(getEnv("COOKIE_PATH", defaultCookiePath))

	cfg.SMTPHost = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	cfg.SMTPUser = strings.TrimSpace(os.Getenv("SMTP_USER"))
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.MailFrom = strings.TrimSpace(getEnv("MAIL_FROM", "docshare <noreply@localhost>"))
	cfg.SMTPSkipVerify = parseBoolEnv("SMTP_SKIP_VERIFY", "false")
	cfg.AppBaseURL = strings.TrimSpace(getEnv("APP_BASE_URL", defaultAppBaseURL))

	cfg.LogLevel = strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel))
	cfg.LogFormat = strings.TrimSpace(getEnv("LOG_FORMAT", defaultLogFormat))
	cfg.CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))
	cfg.CleanupSchedule = strings.TrimSpace(getEnv("REFRESH_CLEANUP_SCHEDULE", defaultCleanupSchedule))

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MailEnabled reports whether enough SMTP settings are present to send mail.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPassword != ""
}

// CleanupEnabled reports whether the API should purge expired refresh tokens
// on CleanupSchedule.
func (c *Config) CleanupEnabled() bool {
	return c.CleanupSchedule != "" && !strings.EqualFold(c.CleanupSchedule, "off")
}

// IsProduction reports whether APP_ENV names a production-like environment.
func (c *Config) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *Config) error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.RefreshTTL <= 0 {
		return fmt.Errorf("REFRESH_TTL must be > 0")
	}
	if cfg.EmailVerifyTTL <= 0 {
		return fmt.Errorf("EMAIL_VERIFY_TTL must be > 0")
	}
	if cfg.PasswordResetTTL <= 0 {
		return fmt.Errorf("PASSWORD_RESET_TTL must be > 0")
	}
	if cfg.CookiePath == "" {
		return fmt.Errorf("COOKIE_PATH must not be empty")
	}
	sameSite := strings.ToLower(cfg.CookieSameSite)
	if sameSite != "lax" && sameSite != "none" && sameSite != "strict" {
		return fmt.Errorf("COOKIE_SAMESITE must be one of: Lax, None, Strict")
	}
	if sameSite == "none" && !cfg.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be true when COOKIE_SAMESITE=None")
	}

	if isProdLike(cfg.AppEnv) {
		secrets := map[string]string{
			"JWT_ACCESS_SECRET":  cfg.JWTAccessSecret,
			"JWT_REFRESH_SECRET": cfg.JWTRefreshSecret,
			"EMAIL_TOKEN_SECRET": cfg.EmailTokenSecret,
			"RESET_TOKEN_SECRET": cfg.ResetTokenSecret,
		}
		for name, v := range secrets {
			if isEmptyOrDefault(v, defaultJWTSecret) {
				return fmt.Errorf("in prod/release %s (or JWT_SECRET) must be set and not default", name)
			}
		}
		if isEmptyOrDefault(cfg.RefreshTokenPepper, defaultRefreshTokenPepper) {
			return fmt.Errorf("in prod/release REFRESH_TOKEN_PEPPER must be set and not default")
		}
		if !cfg.CookieSecure {
			return fmt.Errorf("in prod/release COOKIE_SECURE must be true")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
