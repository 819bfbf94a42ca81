package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration using viper.
// Precedence: overrides (CLI flags) > environment (PA_*) > config file > defaults.
// Override keys use the dotted config path, e.g. "registry.db_url".
func LoadConfig(configPath string, overrides map[string]any) (*Config, error) {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("server.metrics_port", d.Server.MetricsPort)
	v.SetDefault("server.max_batch_size", d.Server.MaxBatchSize)
	v.SetDefault("registry.backend", d.Registry.Backend)
	v.SetDefault("registry.path", d.Registry.Path)
	v.SetDefault("registry.db_url", d.Registry.DBURL)
	v.SetDefault("extraction.mode", d.Extraction.Mode)
	v.SetDefault("extraction.endpoint", d.Extraction.Endpoint)
	v.SetDefault("extraction.timeout", d.Extraction.Timeout.String())
	v.SetDefault("extraction.retries", d.Extraction.Retries)
	v.SetDefault("index.redis_addr", d.Index.RedisAddr)
	v.SetDefault("index.redis_db", d.Index.RedisDB)
	v.SetDefault("index.key_prefix", d.Index.KeyPrefix)
	v.SetDefault("index.refresh_schedule", d.Index.RefreshSchedule)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	// PA_REGISTRY_DB_URL -> registry.db_url
	v.SetEnvPrefix("PA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets must be environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	for key, val := range overrides {
		v.Set(key, val)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			MetricsPort:    v.GetInt("server.metrics_port"),
			MaxBatchSize:   v.GetInt("server.max_batch_size"),
		},
		Registry: RegistryConfig{
			Backend: v.GetString("registry.backend"),
			Path:    v.GetString("registry.path"),
			DBURL:   v.GetString("registry.db_url"),
		},
		Extraction: ExtractionConfig{
			Mode:     v.GetString("extraction.mode"),
			Endpoint: v.GetString("extraction.endpoint"),
			Timeout:  v.GetDuration("extraction.timeout"),
			Retries:  v.GetInt("extraction.retries"),
		},
		Index: IndexConfig{
			RedisAddr:       v.GetString("index.redis_addr"),
			RedisDB:         v.GetInt("index.redis_db"),
			KeyPrefix:       v.GetString("index.key_prefix"),
			RefreshSchedule: v.GetString("index.refresh_schedule"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges and cross-field requirements.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port must be between 0 and 65535, got %d", c.Server.MetricsPort)
	}
	if c.Server.MaxBatchSize <= 0 {
		return fmt.Errorf("server.max_batch_size must be positive, got %d", c.Server.MaxBatchSize)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %v", c.Server.RequestTimeout)
	}

	switch c.Registry.Backend {
	case BackendDocument:
		if c.Registry.Path == "" {
			return fmt.Errorf("registry.path is required for the document backend")
		}
	case BackendSQL:
		if c.Registry.DBURL == "" {
			return fmt.Errorf("registry.db_url is required for the sql backend (or pass --db-url)")
		}
	default:
		return fmt.Errorf("registry.backend must be %q or %q, got %q", BackendDocument, BackendSQL, c.Registry.Backend)
	}

	switch c.Extraction.Mode {
	case ExtractionHeuristic:
	case ExtractionRemote:
		if c.Extraction.Endpoint == "" {
			return fmt.Errorf("extraction.endpoint is required for remote extraction")
		}
	default:
		return fmt.Errorf("extraction.mode must be %q or %q, got %q", ExtractionHeuristic, ExtractionRemote, c.Extraction.Mode)
	}
	if c.Extraction.Timeout <= 0 {
		return fmt.Errorf("extraction.timeout must be positive, got %v", c.Extraction.Timeout)
	}
	if c.Extraction.Retries < 0 {
		return fmt.Errorf("extraction.retries must not be negative, got %d", c.Extraction.Retries)
	}

	if c.Index.RedisDB < 0 {
		return fmt.Errorf("index.redis_db must not be negative, got %d", c.Index.RedisDB)
	}
	return nil
}

// secretKeys may only come from the environment.
var secretKeys = []string{
	"hmac_secret",
	"server.hmac_secret",
	"api_key",
	"extraction.api_key",
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
// InConfig only inspects the file, so PA_HMAC_SECRET itself passes.
func validateNoSecretsInConfig(v *viper.Viper) error {
	for _, key := range secretKeys {
		if v.InConfig(key) {
			return fmt.Errorf("secrets not allowed in config files: %q (use %s or %s environment variables)", key, EnvHMACSecret, EnvExtractionAPIKey)
		}
	}
	return nil
}
