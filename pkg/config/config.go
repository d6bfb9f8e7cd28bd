package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Refresh   RefreshConfig
	Cookie    CookieConfig
	Federated FederatedConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
}

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

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig governs access-token signing. The secret has no default: a
// missing secret is a startup failure, never a per-request one.
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// RefreshConfig governs the refresh-token ledger.
type RefreshConfig struct {
	Expiration time.Duration
}

// CookieConfig shapes the refresh-token cookie contract.
type CookieConfig struct {
	Name     string
	SameSite string
	Secure   bool
}

// FederatedConfig points at the external identity-token verification
// collaborator.
type FederatedConfig struct {
	Enabled        bool
	TokenInfoURL   string
	RequestTimeout time.Duration
}

// RateLimitConfig bounds request volume on the auth endpoints.
type RateLimitConfig struct {
	Enabled bool
	Window  time.Duration
	Limit   int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 15*time.Minute),
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg.Refresh = RefreshConfig{
		Expiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	sameSite := v.GetString("COOKIE_SAME_SITE")
	cfg.Cookie = CookieConfig{
		Name:     v.GetString("REFRESH_COOKIE_NAME"),
		SameSite: sameSite,
		Secure:   v.GetBool("COOKIE_SECURE") || strings.EqualFold(sameSite, "none"),
	}

	cfg.Federated = FederatedConfig{
		Enabled:        v.GetBool("ENABLE_FEDERATED_SIGNIN"),
		TokenInfoURL:   v.GetString("FEDERATED_TOKENINFO_URL"),
		RequestTimeout: parseDuration(v.GetString("FEDERATED_REQUEST_TIMEOUT"), 5*time.Second),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled: v.GetBool("ENABLE_AUTH_RATE_LIMIT"),
		Window:  parseDuration(v.GetString("AUTH_RATE_LIMIT_WINDOW"), 15*time.Minute),
		Limit:   v.GetInt("AUTH_RATE_LIMIT_MAX"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "storefront")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_EXPIRATION", "15m")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("REFRESH_COOKIE_NAME", "refresh_token")
	v.SetDefault("COOKIE_SAME_SITE", "lax")
	v.SetDefault("COOKIE_SECURE", false)

	v.SetDefault("ENABLE_FEDERATED_SIGNIN", false)
	v.SetDefault("FEDERATED_TOKENINFO_URL", "")
	v.SetDefault("FEDERATED_REQUEST_TIMEOUT", "5s")

	v.SetDefault("ENABLE_AUTH_RATE_LIMIT", true)
	v.SetDefault("AUTH_RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("AUTH_RATE_LIMIT_MAX", 100)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
