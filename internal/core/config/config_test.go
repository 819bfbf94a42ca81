package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	testSecretID  = "0123456789abcdef0123456789abcdef"
	testSecretB64 = "dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHMACSecrets(t *testing.T) {
	t.Run("single secret", func(t *testing.T) {
		t.Setenv("PA_HMAC_SECRET", testSecretID+":"+testSecretB64)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets() error = %v, want nil", err)
		}
		if len(secrets) != 1 {
			t.Errorf("len(secrets) = %d, want 1", len(secrets))
		}
		if _, ok := secrets[testSecretID]; !ok {
			t.Errorf("secret_id not found in map")
		}
	})

	t.Run("multiple numbered secrets", func(t *testing.T) {
		t.Setenv("PA_HMAC_SECRET_1", testSecretID+":"+testSecretB64)
		t.Setenv("PA_HMAC_SECRET_2", "fedcba9876543210fedcba9876543210:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets() error = %v, want nil", err)
		}
		if len(secrets) != 2 {
			t.Errorf("len(secrets) = %d, want 2", len(secrets))
		}
	})

	t.Run("numbering stops at first gap", func(t *testing.T) {
		t.Setenv("PA_HMAC_SECRET_1", testSecretID+":"+testSecretB64)
		t.Setenv("PA_HMAC_SECRET_3", "fedcba9876543210fedcba9876543210:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets() error = %v, want nil", err)
		}
		if len(secrets) != 1 {
			t.Errorf("len(secrets) = %d, want 1", len(secrets))
		}
	})

	errCases := map[string]map[string]string{
		"invalid format":         {"PA_HMAC_SECRET": "invalid_format"},
		"short secret_id":        {"PA_HMAC_SECRET": "short:" + testSecretB64},
		"non-hex secret_id":      {"PA_HMAC_SECRET": "0123456789abcdefGHIJKLMNOPQRSTUV:" + testSecretB64},
		"duplicate in numbered":  {"PA_HMAC_SECRET_1": testSecretID + ":" + testSecretB64, "PA_HMAC_SECRET_2": testSecretID + ":" + testSecretB64},
		"duplicate across forms": {"PA_HMAC_SECRET": testSecretID + ":" + testSecretB64, "PA_HMAC_SECRET_1": testSecretID + ":" + testSecretB64},
	}
	for name, env := range errCases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := HMACSecrets(); err == nil {
				t.Error("HMACSecrets() error = nil, want error")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("", nil)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v, want nil", err)
		}
		want := DefaultConfig()
		if cfg.Server != want.Server {
			t.Errorf("Server = %+v, want %+v", cfg.Server, want.Server)
		}
		if cfg.Registry != want.Registry {
			t.Errorf("Registry = %+v, want %+v", cfg.Registry, want.Registry)
		}
		if cfg.Extraction != want.Extraction {
			t.Errorf("Extraction = %+v, want %+v", cfg.Extraction, want.Extraction)
		}
		if cfg.Index != want.Index {
			t.Errorf("Index = %+v, want %+v", cfg.Index, want.Index)
		}
		if cfg.Log != want.Log {
			t.Errorf("Log = %+v, want %+v", cfg.Log, want.Log)
		}
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv("PA_SERVER_PORT", "9999")
		t.Setenv("PA_SERVER_HOST", "127.0.0.1")
		t.Setenv("PA_EXTRACTION_TIMEOUT", "5s")

		cfg, err := LoadConfig("", nil)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v, want nil", err)
		}
		if cfg.Server.Port != 9999 {
			t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
		}
		if cfg.Server.Host != "127.0.0.1" {
			t.Errorf("Server.Host = %s, want 127.0.0.1", cfg.Server.Host)
		}
		if cfg.Extraction.Timeout != 5*time.Second {
			t.Errorf("Extraction.Timeout = %v, want 5s", cfg.Extraction.Timeout)
		}
	})

	t.Run("file values", func(t *testing.T) {
		path := writeConfig(t, `registry:
  backend: sql
  db_url: "sqlite:///tmp/pa.db"
index:
  redis_addr: "redis:6379"
  redis_db: 2
`)
		cfg, err := LoadConfig(path, nil)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v, want nil", err)
		}
		if cfg.Registry.Backend != BackendSQL || cfg.Registry.DBURL != "sqlite:///tmp/pa.db" {
			t.Errorf("Registry = %+v", cfg.Registry)
		}
		if cfg.Index.RedisAddr != "redis:6379" || cfg.Index.RedisDB != 2 {
			t.Errorf("Index = %+v", cfg.Index)
		}
	})

	t.Run("override satisfies sql backend", func(t *testing.T) {
		t.Setenv("PA_REGISTRY_BACKEND", "sql")
		if _, err := LoadConfig("", nil); err == nil {
			t.Fatal("LoadConfig() error = nil for sql backend without db_url, want error")
		}

		cfg, err := LoadConfig("", map[string]any{"registry.db_url": "postgres://db/pa"})
		if err != nil {
			t.Fatalf("LoadConfig() error = %v, want nil", err)
		}
		if cfg.Registry.DBURL != "postgres://db/pa" {
			t.Errorf("Registry.DBURL = %q", cfg.Registry.DBURL)
		}
	})

	invalid := map[string]map[string]string{
		"port out of range":           {"PA_SERVER_PORT": "70000"},
		"negative metrics port":       {"PA_SERVER_METRICS_PORT": "-1"},
		"unknown backend":             {"PA_REGISTRY_BACKEND": "s3"},
		"unknown extraction mode":     {"PA_EXTRACTION_MODE": "llm"},
		"remote without endpoint":     {"PA_EXTRACTION_MODE": "remote"},
		"zero batch size":             {"PA_SERVER_MAX_BATCH_SIZE": "0"},
		"negative retries":            {"PA_EXTRACTION_RETRIES": "-1"},
		"non-positive server timeout": {"PA_SERVER_REQUEST_TIMEOUT": "0s"},
	}
	for name, env := range invalid {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig("", nil); err == nil {
				t.Error("LoadConfig() error = nil, want error")
			}
		})
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("file: Server.Port = %d, want 9090", cfg.Server.Port)
	}

	t.Setenv("PA_SERVER_PORT", "8080")
	cfg, err = LoadConfig(path, nil)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("env over file: Server.Port = %d, want 8080", cfg.Server.Port)
	}

	cfg, err = LoadConfig(path, map[string]any{"server.port": 7070})
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("flag over env: Server.Port = %d, want 7070", cfg.Server.Port)
	}
}

func TestLoadConfig_RejectsSecretsInFile(t *testing.T) {
	for _, content := range []string{
		"server:\n  port: 8080\n  hmac_secret: \"should_be_rejected\"\n",
		"hmac_secret: \"x\"\n",
		"extraction:\n  api_key: \"sk-live\"\n",
	} {
		_, err := LoadConfig(writeConfig(t, content), nil)
		if err == nil {
			t.Fatalf("LoadConfig() error = nil for %q, want error", content)
		}
		if !strings.Contains(err.Error(), "secrets not allowed in config files") {
			t.Errorf("LoadConfig() error = %v, want secrets rejection", err)
		}
	}
}

func TestLoadConfig_SecretEnvIsNotRejected(t *testing.T) {
	t.Setenv("PA_HMAC_SECRET", testSecretID+":"+testSecretB64)
	t.Setenv("PA_EXTRACTION_API_KEY", " sk-test ")

	if _, err := LoadConfig("", nil); err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if got := ExtractionAPIKey(); got != "sk-test" {
		t.Errorf("ExtractionAPIKey() = %q, want sk-test", got)
	}
}

func TestParseHMACSecret(t *testing.T) {
	if secret, err := ParseHMACSecret(testSecretB64); err != nil || len(secret) < 32 {
		t.Errorf("ParseHMACSecret(valid) = %d bytes, %v", len(secret), err)
	}
	if _, err := ParseHMACSecret("not-valid-base64!!!"); err == nil {
		t.Error("ParseHMACSecret(invalid base64) error = nil, want error")
	}
	if _, err := ParseHMACSecret("c2hvcnQ="); err == nil {
		t.Error("ParseHMACSecret(short) error = nil, want error")
	}
}

func TestParseHMACSecretWithID(t *testing.T) {
	secretID, secret, err := ParseHMACSecretWithID(testSecretID + ":" + testSecretB64)
	if err != nil {
		t.Fatalf("ParseHMACSecretWithID() error = %v, want nil", err)
	}
	if secretID != testSecretID || len(secret) == 0 {
		t.Errorf("ParseHMACSecretWithID() = %q, %d bytes", secretID, len(secret))
	}

	for _, bad := range []string{
		testSecretID,
		"tooshort:" + testSecretB64,
		"0123456789abcdefGHIJKLMNOPQRSTUV:" + testSecretB64,
		testSecretID + ":c2hvcnQ=",
	} {
		if _, _, err := ParseHMACSecretWithID(bad); err == nil {
			t.Errorf("ParseHMACSecretWithID(%q) error = nil, want error", bad)
		}
	}
}
