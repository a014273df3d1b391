package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr        string
	Environment string // "development" or "production"

	JWTSigningKey string

	PostgresDSN string
	Redis       RedisConfig

	Partner PartnerConfig
	Email   EmailConfig

	// SyncInterval is the fixed interval between verification sync passes.
	SyncInterval time.Duration

	// RestrictedRegions lists jurisdiction codes whose shop flows require an
	// authenticated, eligible patient before product data is returned.
	RestrictedRegions []string

	ContactRateLimit  int
	ContactRateWindow time.Duration
}

// PartnerConfig holds fulfilment partner API credentials. APIKey and
// APISecret are required for any outbound call; the proxy refuses to sign
// without them.
type PartnerConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// RedisConfig holds connection settings for the optional Redis-backed
// rate-limit store. Empty URL means in-memory stores are used.
type RedisConfig struct {
	URL            string
	DialTimeout    time.Duration
	CommandTimeout time.Duration
}

// EmailConfig holds transactional email provider settings. Empty APIKey
// disables outbound email (notifications are logged instead).
type EmailConfig struct {
	BaseURL string
	APIKey  string
	From    string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:          envOr("GREENGATE_ADDR", ":8080"),
		Environment:   envOr("GREENGATE_ENV", "development"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:            os.Getenv("REDIS_URL"),
			DialTimeout:    envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			CommandTimeout: envDuration("REDIS_COMMAND_TIMEOUT", 3*time.Second),
		},
		Partner: PartnerConfig{
			BaseURL:   envOr("PARTNER_BASE_URL", "https://api.drgreennft.com/api/v1"),
			APIKey:    os.Getenv("PARTNER_API_KEY"),
			APISecret: os.Getenv("PARTNER_API_SECRET"),
			Timeout:   envDuration("PARTNER_TIMEOUT", 10*time.Second),
		},
		Email: EmailConfig{
			BaseURL: envOr("EMAIL_BASE_URL", "https://api.resend.com"),
			APIKey:  os.Getenv("EMAIL_API_KEY"),
			From:    envOr("EMAIL_FROM", "no-reply@healingbuds.example"),
		},
		SyncInterval:      envDuration("SYNC_INTERVAL", 3*time.Minute),
		RestrictedRegions: envList("RESTRICTED_REGIONS", []string{"DE"}),
		ContactRateLimit:  envInt("CONTACT_RATE_LIMIT", 3),
		ContactRateWindow: envDuration("CONTACT_RATE_WINDOW", 15*time.Minute),
	}
}

// IsProduction reports whether the process runs with production gating rules
// (region simulation overrides disabled).
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
