package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName    string
	HTTPListenAddr string
	LogLevel       string

	// EdgeBaseURL points at the onboarding edge function, e.g.
	// https://proj.supabase.co/functions/v1/onboarding.
	EdgeBaseURL string
	// EdgeAPIKey is attached as the apikey header on upstream calls.
	EdgeAPIKey string
	// InternalSigningSecret enables HMAC request signing. The gateway
	// runs unsigned (with a startup warning) when unset.
	InternalSigningSecret string
	// EdgeTimeout caps each upstream call.
	EdgeTimeout time.Duration

	// AuthBaseURL points at the auth edge function used by the
	// registration route. Falls back to EdgeBaseURL when unset.
	AuthBaseURL string

	// AuditURL is the external audit collaborator endpoint. Entries
	// are logged locally when unset.
	AuditURL   string
	AuditToken string

	// CoalesceTTL is how long a settled registration result is
	// replayed to duplicate submissions.
	CoalesceTTL time.Duration
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName:           getEnv("SERVICE_NAME", "onboard-gateway"),
		HTTPListenAddr:        getEnv("HTTP_LISTEN_ADDR", ":8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		EdgeBaseURL:           getEnv("EDGE_BASE_URL", ""),
		EdgeAPIKey:            getEnv("EDGE_API_KEY", ""),
		InternalSigningSecret: getEnv("INTERNAL_SIGNING_SECRET", ""),
		EdgeTimeout:           getDuration("EDGE_TIMEOUT", 30*time.Second),
		AuthBaseURL:           getEnv("AUTH_BASE_URL", ""),
		AuditURL:              getEnv("AUDIT_URL", ""),
		AuditToken:            getEnv("AUDIT_TOKEN", ""),
		CoalesceTTL:           getDuration("COALESCE_TTL", 5*time.Second),
	}

	return cfg, nil
}

// Validate checks the fields the named service cannot run without.
func (c *Config) Validate(service string) error {
	switch service {
	case "gateway-api":
		if c.EdgeBaseURL == "" {
			return fmt.Errorf("EDGE_BASE_URL is required")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
