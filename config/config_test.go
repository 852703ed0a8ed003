package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	source := SourceConfig{
		Enabled:       true,
		BaseURL:       "https://example.com",
		Timeout:       5 * time.Second,
		Retries:       2,
		Backoff:       500 * time.Millisecond,
		RatePerSecond: 2,
		Burst:         2,
		PageSize:      50,
	}
	return &Config{
		Sources: SourcesConfig{Compuzone: source, Guidecom: source},
		Engine:  EngineConfig{UnitTimeout: 30 * time.Second, PerSourceLimit: 20},
		Session: SessionConfig{Store: "memory", TTL: 30 * time.Minute},
		RateLimit: RateLimitConfig{
			PerIP: 60,
		},
	}
}

// chdirTemp runs the test from an empty directory so no config.yaml or .env
// from the repository is picked up
func chdirTemp(t *testing.T) string {
	t.Helper()
	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	tempDir := t.TempDir()
	if err := os.Chdir(tempDir); err != nil {
		t.Fatalf("Chdir() error = %v", err)
	}
	t.Cleanup(func() { os.Chdir(originalDir) })
	return tempDir
}

func TestLoad(t *testing.T) {
	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		chdirTemp(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if cfg.Sources.Compuzone.BaseURL != "https://www.compuzone.co.kr" {
			t.Errorf("Sources.Compuzone.BaseURL = %s", cfg.Sources.Compuzone.BaseURL)
		}
		if cfg.Sources.Guidecom.BaseURL != "https://www.guidecom.co.kr" {
			t.Errorf("Sources.Guidecom.BaseURL = %s", cfg.Sources.Guidecom.BaseURL)
		}
		if !cfg.Sources.Compuzone.Enabled || !cfg.Sources.Guidecom.Enabled {
			t.Error("expected both sources enabled by default")
		}
		if cfg.Sources.Guidecom.Timeout != 5*time.Second {
			t.Errorf("Sources.Guidecom.Timeout = %v, want 5s", cfg.Sources.Guidecom.Timeout)
		}
		if cfg.Sources.Guidecom.Retries != 2 {
			t.Errorf("Sources.Guidecom.Retries = %d, want 2", cfg.Sources.Guidecom.Retries)
		}
		if cfg.Engine.UnitTimeout != 30*time.Second {
			t.Errorf("Engine.UnitTimeout = %v, want 30s", cfg.Engine.UnitTimeout)
		}
		if cfg.Engine.PerSourceLimit != 20 {
			t.Errorf("Engine.PerSourceLimit = %d, want 20", cfg.Engine.PerSourceLimit)
		}
		if cfg.Session.Store != "memory" {
			t.Errorf("Session.Store = %s, want memory", cfg.Session.Store)
		}
		if cfg.Session.TTL != 30*time.Minute {
			t.Errorf("Session.TTL = %v, want 30m", cfg.Session.TTL)
		}
		if cfg.RateLimit.PerIP != 60 {
			t.Errorf("RateLimit.PerIP = %d, want 60", cfg.RateLimit.PerIP)
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("PARTSCOUT_SERVER_PORT", "9090")
		t.Setenv("PARTSCOUT_SOURCES_GUIDECOM_RETRIES", "1")
		t.Setenv("PARTSCOUT_SOURCES_COMPUZONE_ENABLED", "false")
		t.Setenv("PARTSCOUT_ENGINE_UNIT_TIMEOUT", "10s")
		t.Setenv("PARTSCOUT_SESSION_STORE", "redis")
		t.Setenv("PARTSCOUT_SESSION_REDIS_URL", "redis://localhost:6379/0")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Sources.Guidecom.Retries != 1 {
			t.Errorf("Sources.Guidecom.Retries = %d, want 1", cfg.Sources.Guidecom.Retries)
		}
		if cfg.Sources.Compuzone.Enabled {
			t.Error("Sources.Compuzone.Enabled = true, want false")
		}
		if cfg.Engine.UnitTimeout != 10*time.Second {
			t.Errorf("Engine.UnitTimeout = %v, want 10s", cfg.Engine.UnitTimeout)
		}
		if cfg.Session.Store != "redis" || cfg.Session.RedisURL != "redis://localhost:6379/0" {
			t.Errorf("Session = %+v", cfg.Session)
		}
	})

	t.Run("loads values from config file", func(t *testing.T) {
		dir := chdirTemp(t)
		content := `
engine:
  per_source_limit: 5
sources:
  guidecom:
    base_url: "http://guidecom.test"
`
		if err := os.WriteFile(dir+"/config.yaml", []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create test config file: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Engine.PerSourceLimit != 5 {
			t.Errorf("Engine.PerSourceLimit = %d, want 5", cfg.Engine.PerSourceLimit)
		}
		if cfg.Sources.Guidecom.BaseURL != "http://guidecom.test" {
			t.Errorf("Sources.Guidecom.BaseURL = %s", cfg.Sources.Guidecom.BaseURL)
		}
		if cfg.Sources.Guidecom.Timeout != 5*time.Second {
			t.Errorf("defaults should fill unset keys, got timeout %v", cfg.Sources.Guidecom.Timeout)
		}
	})

	t.Run("fails on invalid retries", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("PARTSCOUT_SOURCES_COMPUZONE_RETRIES", "5")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "retries") {
			t.Errorf("Load() error = %v, want retries error", err)
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		chdirTemp(t)

		if err := loadEnvFile(); err != nil {
			t.Errorf("loadEnvFile() error = %v, want nil when file doesn't exist", err)
		}
	})

	t.Run("loads variables from .env file", func(t *testing.T) {
		dir := chdirTemp(t)
		envContent := `
# Comment line
PARTSCOUT_TEST_VAR_1=value1
PARTSCOUT_TEST_VAR_2=value2
# PARTSCOUT_TEST_COMMENTED=should_not_load
`
		if err := os.WriteFile(dir+"/.env", []byte(envContent), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}
		t.Cleanup(func() {
			os.Unsetenv("PARTSCOUT_TEST_VAR_1")
			os.Unsetenv("PARTSCOUT_TEST_VAR_2")
		})

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("PARTSCOUT_TEST_VAR_1") != "value1" {
			t.Errorf("PARTSCOUT_TEST_VAR_1 = %s, want value1", os.Getenv("PARTSCOUT_TEST_VAR_1"))
		}
		if os.Getenv("PARTSCOUT_TEST_VAR_2") != "value2" {
			t.Errorf("PARTSCOUT_TEST_VAR_2 = %s, want value2", os.Getenv("PARTSCOUT_TEST_VAR_2"))
		}
		if os.Getenv("PARTSCOUT_TEST_COMMENTED") != "" {
			t.Errorf("PARTSCOUT_TEST_COMMENTED should not be loaded from comment")
		}
	})

	t.Run("doesn't override existing environment variables", func(t *testing.T) {
		dir := chdirTemp(t)
		t.Setenv("PARTSCOUT_TEST_OVERRIDE", "existing-value")

		if err := os.WriteFile(dir+"/.env", []byte("PARTSCOUT_TEST_OVERRIDE=new-value"), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("PARTSCOUT_TEST_OVERRIDE") != "existing-value" {
			t.Errorf("PARTSCOUT_TEST_OVERRIDE = %s, want existing-value", os.Getenv("PARTSCOUT_TEST_OVERRIDE"))
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid configuration", mutate: func(c *Config) {}},
		{
			name:   "one source disabled",
			mutate: func(c *Config) { c.Sources.Guidecom = SourceConfig{} },
		},
		{
			name: "all sources disabled",
			mutate: func(c *Config) {
				c.Sources.Compuzone.Enabled = false
				c.Sources.Guidecom.Enabled = false
			},
			wantErr: "at least one source",
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Sources.Compuzone.BaseURL = "" },
			wantErr: "compuzone base URL",
		},
		{
			name:    "too many retries",
			mutate:  func(c *Config) { c.Sources.Guidecom.Retries = 3 },
			wantErr: "guidecom retries",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Sources.Guidecom.Retries = -1 },
			wantErr: "guidecom retries",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Sources.Compuzone.Timeout = 0 },
			wantErr: "compuzone timeout",
		},
		{
			name:    "zero rate",
			mutate:  func(c *Config) { c.Sources.Compuzone.RatePerSecond = 0 },
			wantErr: "compuzone rate limit",
		},
		{
			name:    "zero unit timeout",
			mutate:  func(c *Config) { c.Engine.UnitTimeout = 0 },
			wantErr: "unit timeout",
		},
		{
			name:    "negative per-source limit",
			mutate:  func(c *Config) { c.Engine.PerSourceLimit = -1 },
			wantErr: "per-source limit",
		},
		{
			name:    "invalid session store",
			mutate:  func(c *Config) { c.Session.Store = "invalid-type" },
			wantErr: "session store",
		},
		{
			name:    "redis without url",
			mutate:  func(c *Config) { c.Session.Store = "redis" },
			wantErr: "Redis URL",
		},
		{
			name:    "zero per-IP limit",
			mutate:  func(c *Config) { c.RateLimit.PerIP = 0 },
			wantErr: "per-IP",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
