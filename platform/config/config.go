// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// AuthServiceConfig provides settings needed by the auth service.
type AuthServiceConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

// CookieConfig provides settings for refresh token cookies.
type CookieConfig interface {
	GetRefreshCookieName() string
	GetRefreshCookieDomain() string
	GetRefreshCookiePath() string
	GetRefreshCookieSecure() bool
	GetRefreshCookieSameSite() http.SameSite
	GetRefreshTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketPaymentReceipts() string
	GetMinioBucketInspectionPhotos() string
	GetMinioBucketInspectionReports() string
	IsMinIOEnabled() bool
}

// GotenbergConfig provides settings for the Gotenberg HTML-to-PDF service.
type GotenbergConfig interface {
	GetGotenbergURL() string
	GetGotenbergUsername() string
	GetGotenbergPassword() string
	IsGotenbergEnabled() bool
}

// SchedulerConfig provides settings for the asynq client and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// RealtimeConfig provides settings for cross-instance SSE fan-out.
type RealtimeConfig interface {
	GetRedisURL() string
	GetRealtimeChannel() string
}

// PaymentConfig provides settings for payment link generation.
type PaymentConfig interface {
	GetAppBaseURL() string
	GetMercadoPagoAccessToken() string
	GetPaymentGatewayMock() bool
	GetPaymentCurrency() string
	GetPaymentLinkTTL() time.Duration
}

// PhoneConfig provides the default region used to parse local numbers.
type PhoneConfig interface {
	GetPhoneDefaultRegion() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                          string
	HTTPAddr                     string
	DatabaseURL                  string
	JWTAccessSecret              string
	JWTRefreshSecret             string
	AccessTokenTTL               time.Duration
	RefreshTokenTTL              time.Duration
	CORSAllowAll                 bool
	CORSOrigins                  []string
	CORSAllowCreds               bool
	AppBaseURL                   string
	RefreshCookieName            string
	RefreshCookieDomain          string
	RefreshCookiePath            string
	RefreshCookieSecure          bool
	RefreshCookieSameSite        http.SameSite
	MinIOEndpoint                string
	MinIOAccessKey               string
	MinIOSecretKey               string
	MinIOUseSSL                  bool
	MinIOMaxFileSize             int64
	MinioBucketPaymentReceipts   string
	MinioBucketInspectionPhotos  string
	MinioBucketInspectionReports string
	GotenbergURL                 string
	GotenbergUsername            string
	GotenbergPassword            string
	RedisURL                     string
	RedisTLSInsecure             bool
	AsynqQueueName               string
	AsynqConcurrency             int
	RealtimeChannel              string
	MercadoPagoAccessToken       string
	PaymentGatewayMock           bool
	PaymentCurrency              string
	PaymentLinkTTL               time.Duration
	PhoneDefaultRegion           string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// AuthServiceConfig implementation
func (c *Config) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }

// CookieConfig implementation
func (c *Config) GetRefreshCookieName() string            { return c.RefreshCookieName }
func (c *Config) GetRefreshCookieDomain() string          { return c.RefreshCookieDomain }
func (c *Config) GetRefreshCookiePath() string            { return c.RefreshCookiePath }
func (c *Config) GetRefreshCookieSecure() bool            { return c.RefreshCookieSecure }
func (c *Config) GetRefreshCookieSameSite() http.SameSite { return c.RefreshCookieSameSite }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string   { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string  { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string  { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool       { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64 { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketPaymentReceipts() string {
	return c.MinioBucketPaymentReceipts
}
func (c *Config) GetMinioBucketInspectionPhotos() string {
	return c.MinioBucketInspectionPhotos
}
func (c *Config) GetMinioBucketInspectionReports() string {
	return c.MinioBucketInspectionReports
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// GotenbergConfig implementation
func (c *Config) GetGotenbergURL() string      { return c.GotenbergURL }
func (c *Config) GetGotenbergUsername() string { return c.GotenbergUsername }
func (c *Config) GetGotenbergPassword() string { return c.GotenbergPassword }
func (c *Config) IsGotenbergEnabled() bool     { return c.GotenbergURL != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetRealtimeChannel() string { return c.RealtimeChannel }

// PaymentConfig implementation
func (c *Config) GetAppBaseURL() string             { return c.AppBaseURL }
func (c *Config) GetMercadoPagoAccessToken() string { return c.MercadoPagoAccessToken }
func (c *Config) GetPaymentGatewayMock() bool       { return c.PaymentGatewayMock }
func (c *Config) GetPaymentCurrency() string        { return c.PaymentCurrency }
func (c *Config) GetPaymentLinkTTL() time.Duration  { return c.PaymentLinkTTL }

// PhoneConfig implementation
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	refreshCookieSecure := strings.EqualFold(getEnv("REFRESH_COOKIE_SECURE", ""), "true")
	if getEnv("REFRESH_COOKIE_SECURE", "") == "" {
		refreshCookieSecure = strings.EqualFold(getEnv("APP_ENV", "development"), "production")
	}

	cfg := &Config{
		Env:                          getEnv("APP_ENV", "development"),
		HTTPAddr:                     getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:                  getEnv("DATABASE_URL", ""),
		JWTAccessSecret:              getEnv("JWT_ACCESS_SECRET", ""),
		JWTRefreshSecret:             getEnv("JWT_REFRESH_SECRET", ""),
		AccessTokenTTL:               mustDuration(getEnv("JWT_ACCESS_TTL", "15m")),
		RefreshTokenTTL:              mustDuration(getEnv("JWT_REFRESH_TTL", "720h")),
		CORSAllowAll:                 corsAllowAll,
		CORSOrigins:                  corsOrigins,
		CORSAllowCreds:               strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:                   getEnv("APP_BASE_URL", "http://localhost:5173"),
		RefreshCookieName:            getEnv("REFRESH_COOKIE_NAME", "interior_refresh"),
		RefreshCookieDomain:          getEnv("REFRESH_COOKIE_DOMAIN", ""),
		RefreshCookiePath:            getEnv("REFRESH_COOKIE_PATH", "/api/v1/auth"),
		RefreshCookieSecure:          refreshCookieSecure,
		RefreshCookieSameSite:        parseSameSite(getEnv("REFRESH_COOKIE_SAMESITE", "Lax")),
		MinIOEndpoint:                getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:               getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:               getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                  strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:             mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "26214400")),
		MinioBucketPaymentReceipts:   getEnv("MINIO_BUCKET_PAYMENT_RECEIPTS", "payment-receipts"),
		MinioBucketInspectionPhotos:  getEnv("MINIO_BUCKET_INSPECTION_PHOTOS", "inspection-photos"),
		MinioBucketInspectionReports: getEnv("MINIO_BUCKET_INSPECTION_REPORTS", "inspection-reports"),
		GotenbergURL:                 getEnv("GOTENBERG_URL", ""),
		GotenbergUsername:            getEnv("GOTENBERG_USERNAME", ""),
		GotenbergPassword:            getEnv("GOTENBERG_PASSWORD", ""),
		RedisURL:                     getEnv("REDIS_URL", ""),
		RedisTLSInsecure:             strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:               getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:             mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		RealtimeChannel:              getEnv("REALTIME_CHANNEL", "interior:realtime"),
		MercadoPagoAccessToken:       getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
		PaymentGatewayMock:           isTruthy(getEnv("PAYMENT_GATEWAY_MOCK", "false")),
		PaymentCurrency:              getEnv("PAYMENT_CURRENCY", "PHP"),
		PaymentLinkTTL:               mustDuration(getEnv("PAYMENT_LINK_TTL", "72h")),
		PhoneDefaultRegion:           getEnv("PHONE_DEFAULT_REGION", "PH"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" || cfg.JWTRefreshSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if !cfg.PaymentGatewayMock && cfg.MercadoPagoAccessToken == "" {
		return nil, fmt.Errorf("MERCADOPAGO_ACCESS_TOKEN is required unless PAYMENT_GATEWAY_MOCK is enabled")
	}
	if cfg.PaymentLinkTTL <= 0 {
		return nil, fmt.Errorf("PAYMENT_LINK_TTL must be a positive duration")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on", "mock":
		return true
	}
	return false
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none":
		return http.SameSiteNoneMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteLaxMode
	}
}
