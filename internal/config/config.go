package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	DebugEndpoint  string        `mapstructure:"DEBUG_ENDPOINT"`
	TrustedProxies []string      `mapstructure:"TRUSTED_PROXIES"`

	WhoopClientID          string        `mapstructure:"WHOOP_CLIENT_ID"`
	WhoopClientSecret      string        `mapstructure:"WHOOP_CLIENT_SECRET"`
	WhoopRedirectURI       string        `mapstructure:"WHOOP_REDIRECT_URI"`
	WhoopAuthURL           string        `mapstructure:"WHOOP_AUTH_URL"`
	WhoopTokenURL          string        `mapstructure:"WHOOP_TOKEN_URL"`
	WhoopAPIBase           string        `mapstructure:"WHOOP_API_BASE"`
	WhoopPostLoginRedirect string        `mapstructure:"WHOOP_POST_LOGIN_REDIRECT"`
	WhoopCacheTTL          time.Duration `mapstructure:"WHOOP_CACHE_TTL"`
	StateSigningKey        string        `mapstructure:"STATE_SIGNING_KEY"`

	FHIRDataDir     string `mapstructure:"FHIR_DATA_DIR"`
	FHIRS3Endpoint  string `mapstructure:"FHIR_S3_ENDPOINT"`
	FHIRS3Bucket    string `mapstructure:"FHIR_S3_BUCKET"`
	FHIRS3Prefix    string `mapstructure:"FHIR_S3_PREFIX"`
	FHIRS3AccessKey string `mapstructure:"FHIR_S3_ACCESS_KEY"`
	FHIRS3SecretKey string `mapstructure:"FHIR_S3_SECRET_KEY"`
	FHIRS3Secure    bool   `mapstructure:"FHIR_S3_SECURE"`

	KafkaBrokers  []string `mapstructure:"KAFKA_BROKERS"`
	WaitlistTopic string   `mapstructure:"WAITLIST_TOPIC"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "DEBUG_ENDPOINT",
	"TRUSTED_PROXIES",
	"WHOOP_CLIENT_ID", "WHOOP_CLIENT_SECRET", "WHOOP_REDIRECT_URI", "WHOOP_AUTH_URL",
	"WHOOP_TOKEN_URL", "WHOOP_API_BASE", "WHOOP_POST_LOGIN_REDIRECT", "WHOOP_CACHE_TTL",
	"STATE_SIGNING_KEY",
	"FHIR_DATA_DIR", "FHIR_S3_ENDPOINT", "FHIR_S3_BUCKET", "FHIR_S3_PREFIX",
	"FHIR_S3_ACCESS_KEY", "FHIR_S3_SECRET_KEY", "FHIR_S3_SECURE",
	"KAFKA_BROKERS", "WAITLIST_TOPIC",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("WHOOP_AUTH_URL", "https://api.prod.whoop.com/oauth/oauth2/auth")
	v.SetDefault("WHOOP_TOKEN_URL", "https://api.prod.whoop.com/oauth/oauth2/token")
	v.SetDefault("WHOOP_API_BASE", "https://api.prod.whoop.com")
	v.SetDefault("WHOOP_POST_LOGIN_REDIRECT", "/")
	v.SetDefault("WHOOP_CACHE_TTL", "5m")
	v.SetDefault("FHIR_DATA_DIR", "data/fhir")
	v.SetDefault("WAITLIST_TOPIC", "waitlist.joined")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))
	cfg.TrustedProxies = splitList(cfg.TrustedProxies, v.GetString("TRUSTED_PROXIES"))

	return cfg, nil
}

// splitList normalizes comma separated env values that viper may hand back
// either pre-split or as a single string.
func splitList(current []string, raw string) []string {
	if len(current) == 1 && strings.Contains(current[0], ",") {
		raw = current[0]
		current = nil
	}
	if current == nil && raw != "" {
		current = strings.Split(raw, ",")
	}
	out := current[:0]
	for _, s := range current {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DebugEnabled reports whether /api/debug is served. An unset DEBUG_ENDPOINT
// enables it everywhere except production.
func (c *Config) DebugEnabled() bool {
	if c.DebugEndpoint == "" {
		return !c.IsProduction()
	}
	on, err := strconv.ParseBool(c.DebugEndpoint)
	return err == nil && on
}

// UseObjectStore reports whether FHIR exports are read from an S3-compatible
// bucket instead of FHIR_DATA_DIR.
func (c *Config) UseObjectStore() bool {
	return c.FHIRS3Endpoint != ""
}

// Validate checks that the configuration is safe to run. Missing Whoop client
// settings are reported by the OAuth handlers, not here.
func (c *Config) Validate() error {
	if c.IsProduction() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}

	if c.StateSigningKey != "" {
		keyBytes, err := hex.DecodeString(c.StateSigningKey)
		if err != nil {
			return fmt.Errorf("STATE_SIGNING_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) < 32 {
			return fmt.Errorf("STATE_SIGNING_KEY must be at least 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}

	if c.UseObjectStore() {
		if c.FHIRS3Bucket == "" {
			return fmt.Errorf("FHIR_S3_BUCKET is required when FHIR_S3_ENDPOINT is set")
		}
		if c.FHIRS3AccessKey == "" || c.FHIRS3SecretKey == "" {
			return fmt.Errorf("FHIR_S3_ACCESS_KEY and FHIR_S3_SECRET_KEY are required when FHIR_S3_ENDPOINT is set")
		}
	}

	for _, p := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			return fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP or CIDR", p)
		}
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	return nil
}
