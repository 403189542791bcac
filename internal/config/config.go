package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Binary names accepted by Validate.
const (
	BinaryCoreAPI = "core-api"
	BinaryWorker  = "worker"
)

type Config struct {
	CoreDatabaseURL string
	TemporalAddress string
	HTTPListenAddr  string
	MetricsAddr     string
	LogLevel        string
	ServiceName     string

	// Temporal mTLS. All optional; plaintext when cert and key are empty.
	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string

	PlatformDomain string
	EdgeHostname   string

	CloudflareAPIToken  string
	CloudflareAccountID string

	VercelToken  string
	VercelTeamID string

	GitHubToken        string
	GitHubOrg          string
	GitHubTemplateRepo string

	ArtifactBucket    string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	PublishTimeout    time.Duration
	BuildPollInterval time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; variables already set in
// the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		CoreDatabaseURL:       getEnv("CORE_DATABASE_URL", ""),
		TemporalAddress:       getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:        getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsAddr:           getEnv("METRICS_ADDR", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		ServiceName:           getEnv("SERVICE_NAME", ""),
		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),
		PlatformDomain:        getEnv("PLATFORM_DOMAIN", "sites.example.com"),
		EdgeHostname:          getEnv("EDGE_HOSTNAME", "cname.vercel-dns.com"),
		CloudflareAPIToken:    getEnv("CLOUDFLARE_API_TOKEN", ""),
		CloudflareAccountID:   getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
		VercelToken:           getEnv("VERCEL_TOKEN", ""),
		VercelTeamID:          getEnv("VERCEL_TEAM_ID", ""),
		GitHubToken:           getEnv("GITHUB_TOKEN", ""),
		GitHubOrg:             getEnv("GITHUB_ORG", ""),
		GitHubTemplateRepo:    getEnv("GITHUB_TEMPLATE_REPO", ""),
		ArtifactBucket:        getEnv("ARTIFACT_BUCKET", ""),
		S3Endpoint:            getEnv("S3_ENDPOINT", ""),
		S3Region:              getEnv("S3_REGION", "us-east-1"),
		S3AccessKeyID:         getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey:     getEnv("S3_SECRET_ACCESS_KEY", ""),
	}

	var err error
	if cfg.PublishTimeout, err = getDuration("PUBLISH_TIMEOUT", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.BuildPollInterval, err = getDuration("BUILD_POLL_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the keys the given binary needs are set.
func (c *Config) Validate(binary string) error {
	required := map[string]string{
		"CORE_DATABASE_URL": c.CoreDatabaseURL,
		"TEMPORAL_ADDRESS":  c.TemporalAddress,
		"PLATFORM_DOMAIN":   c.PlatformDomain,
	}
	switch binary {
	case BinaryCoreAPI:
		required["HTTP_LISTEN_ADDR"] = c.HTTPListenAddr
	case BinaryWorker:
		required["CLOUDFLARE_API_TOKEN"] = c.CloudflareAPIToken
		required["CLOUDFLARE_ACCOUNT_ID"] = c.CloudflareAccountID
		required["VERCEL_TOKEN"] = c.VercelToken
		required["GITHUB_TOKEN"] = c.GitHubToken
		required["GITHUB_ORG"] = c.GitHubOrg
		required["ARTIFACT_BUCKET"] = c.ArtifactBucket
	default:
		return fmt.Errorf("unknown binary %q", binary)
	}

	var missing []string
	for key, value := range required {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%s: missing required config: %s", binary, strings.Join(missing, ", "))
	}
	if (c.TemporalTLSCert == "") != (c.TemporalTLSKey == "") {
		return fmt.Errorf("%s: TEMPORAL_TLS_CERT and TEMPORAL_TLS_KEY must be set together", binary)
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("%s: PUBLISH_TIMEOUT must be positive", binary)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
