package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// メール送信プロバイダー
const (
	MailProviderLog  = "log"
	MailProviderSMTP = "smtp"
	MailProviderAPI  = "api"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Session token
	JWTSecret string
	TokenTTL  time.Duration

	// Account
	OTPTTL             time.Duration
	BcryptCost         int
	PhoneDefaultRegion string

	// Mail
	MailProvider    string
	MailFrom        string
	MailRatePerSec  float64
	MailBurst       int
	MailTimeout     time.Duration
	MailMaxAttempts int
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	SMTPImplicitTLS bool
	MailAPIURL      string
	MailAPIKey      string

	// Server
	ServerPort string
	LogLevel   string
	HSTS       bool

	// Cookie
	CookieSecure   bool
	CookieSameSite string
	CookieDomain   string

	// CORS
	CORSAllowedOrigins []string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、またはメール設定が不完全な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 7*24*time.Hour)
	cfg.OTPTTL = getEnvDuration("OTP_TTL", 15*time.Minute)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.PhoneDefaultRegion = strings.ToUpper(getEnvString("PHONE_DEFAULT_REGION", "IN"))
	cfg.MailProvider = strings.ToLower(getEnvString("MAIL_PROVIDER", MailProviderLog))
	cfg.MailFrom = getEnvString("MAIL_FROM", "SmartKhata <no-reply@smartkhata.app>")
	cfg.MailRatePerSec = getEnvFloat("MAIL_RATE_PER_SEC", 5)
	cfg.MailBurst = getEnvInt("MAIL_BURST", 5)
	cfg.MailTimeout = getEnvDuration("MAIL_TIMEOUT", 10*time.Second)
	cfg.MailMaxAttempts = getEnvInt("MAIL_MAX_ATTEMPTS", 3)
	cfg.SMTPHost = getEnvString("SMTP_HOST", "")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUsername = getEnvString("SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvString("SMTP_PASSWORD", "")
	cfg.SMTPImplicitTLS = getEnvBool("SMTP_IMPLICIT_TLS", cfg.SMTPPort == 465)
	cfg.MailAPIURL = getEnvString("MAIL_API_URL", "https://api.resend.com")
	cfg.MailAPIKey = getEnvString("MAIL_API_KEY", "")
	cfg.ServerPort = getEnvString("PORT", "8080")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.HSTS = getEnvBool("HSTS_ENABLED", false)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", true)
	cfg.CookieSameSite = strings.ToLower(getEnvString("COOKIE_SAMESITE", "none"))
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGIN", []string{"http://localhost:5173"})

	if err := cfg.validateMail(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateMail は選択されたメールプロバイダーに必要な設定が揃っているかを検証する。
func (c *Config) validateMail() error {
	switch c.MailProvider {
	case MailProviderLog:
		return nil
	case MailProviderSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when MAIL_PROVIDER=%s", MailProviderSMTP)
		}
		return nil
	case MailProviderAPI:
		if c.MailAPIKey == "" {
			return fmt.Errorf("MAIL_API_KEY is required when MAIL_PROVIDER=%s", MailProviderAPI)
		}
		return nil
	default:
		return fmt.Errorf("unknown MAIL_PROVIDER %q (want %s, %s or %s)",
			c.MailProvider, MailProviderLog, MailProviderSMTP, MailProviderAPI)
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの環境変数を空要素を除いたスライスとして返す。
func getEnvList(key string, defaultVal []string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
