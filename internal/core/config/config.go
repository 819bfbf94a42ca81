// Package config provides configuration management for priorauth commands.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// Registry backends.
const (
	BackendDocument = "document"
	BackendSQL      = "sql"
)

// Extraction modes.
const (
	ExtractionHeuristic = "heuristic"
	ExtractionRemote    = "remote"
)

// Environment-only secrets.
const (
	EnvHMACSecret       = "PA_HMAC_SECRET"
	EnvExtractionAPIKey = "PA_EXTRACTION_API_KEY"
)

// Config is the full configuration tree.
type Config struct {
	Server     ServerConfig
	Registry   RegistryConfig
	Extraction ExtractionConfig
	Index      IndexConfig
	Log        LogConfig
}

// ServerConfig holds configuration for the gRPC decision API.
// MetricsPort 0 disables the Prometheus endpoint.
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	MetricsPort    int
	MaxBatchSize   int
}

// RegistryConfig selects and locates the candidate registry.
type RegistryConfig struct {
	Backend string
	Path    string
	DBURL   string
}

// ExtractionConfig selects the rule extraction backend.
type ExtractionConfig struct {
	Mode     string
	Endpoint string
	Timeout  time.Duration
	Retries  int
}

// IndexConfig locates the Redis search index.
type IndexConfig struct {
	RedisAddr string
	RedisDB   int
	KeyPrefix string
	// RefreshSchedule is a cron expression for re-indexing approved rules
	// while serving. Empty disables it.
	RefreshSchedule string
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string
	Format string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50051,
			RequestTimeout: 30 * time.Second,
			MetricsPort:    9090,
			MaxBatchSize:   1000,
		},
		Registry: RegistryConfig{
			Backend: BackendDocument,
			Path:    "./data/registry.json",
		},
		Extraction: ExtractionConfig{
			Mode:    ExtractionHeuristic,
			Timeout: 30 * time.Second,
			Retries: 2,
		},
		Index: IndexConfig{
			RedisAddr: "localhost:6379",
			KeyPrefix: "priorauth:index:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports PA_HMAC_SECRET (single) and PA_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are 32 hex chars (UUID without hyphens) matching API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	add := func(name, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id '%s' found in environment variables (check %s and %s_* for conflicts)", secretID, EnvHMACSecret, EnvHMACSecret)
		}
		secrets[secretID] = decoded
		return nil
	}

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv(EnvHMACSecret); val != "" {
		if err := add(EnvHMACSecret, val); err != nil {
			return nil, err
		}
	}

	// Numbered secrets enable rotation: old and new keys valid during migration
	for i := 1; ; i++ {
		key := fmt.Sprintf("%s_%d", EnvHMACSecret, i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		if err := add(key, val); err != nil {
			return nil, err
		}
	}

	return secrets, nil
}

// ExtractionAPIKey returns the bearer key for the remote extraction service.
func ExtractionAPIKey() string {
	return strings.TrimSpace(os.Getenv(EnvExtractionAPIKey))
}

// ParseHMACSecret decodes a base64-encoded HMAC secret.
func ParseHMACSecret(envValue string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(envValue))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(decoded) < 32 {
		return nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(decoded))
	}
	return decoded, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 lower-case hex chars.
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUID without hyphens)")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = ParseHMACSecret(parts[1])
	if err != nil {
		return "", nil, err
	}
	return secretID, secret, nil
}
