package config

import (
	"os"

	"github.com/joho/godotenv"

	"cms-admin-service/internal/logger"
)

type Config struct {
	AppPort string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string

	// External identity provider.
	ProviderURL        string // base URL of the provider API
	ProviderServiceKey string // privileged service-level key, server-only
	ProviderIssuer     string // OIDC issuer used to verify login tokens
	ProviderClientID   string

	// SiteBaseURL is the public base URL used to build the post-setup
	// redirect target embedded in generated links.
	SiteBaseURL string
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		AppPort: getenvDefault("APP_PORT", "8080"),

		DatabaseDSN: os.Getenv("DATABASE_DSN"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		ProviderURL:        os.Getenv("IDENTITY_PROVIDER_URL"),
		ProviderServiceKey: os.Getenv("IDENTITY_SERVICE_KEY"),
		ProviderIssuer:     os.Getenv("IDENTITY_ISSUER"),
		ProviderClientID:   os.Getenv("IDENTITY_CLIENT_ID"),

		SiteBaseURL: os.Getenv("SITE_BASE_URL"),
	}

	for _, k := range []string{"DATABASE_DSN", "REDIS_ADDR", "SITE_BASE_URL"} {
		if os.Getenv(k) == "" {
			logger.Fatal("missing required env", map[string]any{"key": k})
		}
	}

	if cfg.ProviderServiceKey == "" {
		// Not fatal at boot: every provisioning operation refuses to run
		// until the key is present, but read-only surfaces still work.
		logger.Warn("IDENTITY_SERVICE_KEY not set, provisioning disabled", nil)
	}

	return cfg
}

// ProvisioningConfigured reports whether the privileged provider
// credentials are present.
func (c Config) ProvisioningConfigured() bool {
	return c.ProviderURL != "" && c.ProviderServiceKey != ""
}

func getenvDefault(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
