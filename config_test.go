package pathsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Sync.AutoFlushDelay != 2*time.Second {
		t.Errorf("unexpected auto flush delay: %v", config.Sync.AutoFlushDelay)
	}
	if config.Sync.MinDrainQuality != "good" {
		t.Errorf("unexpected drain quality: %s", config.Sync.MinDrainQuality)
	}
	if config.Sync.AttemptCeiling != 5 {
		t.Errorf("unexpected attempt ceiling: %d", config.Sync.AttemptCeiling)
	}
	if config.Connection.FailureThreshold != 3 {
		t.Errorf("unexpected failure threshold: %d", config.Connection.FailureThreshold)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pathsync.yaml")
	content := `
remote:
  base_url: https://api.example.com
  auth_token: tok
store:
  backend: sqlite
  path: /tmp/progress.db
  compress: true
sync:
  auto_flush_delay: 5s
  min_drain_quality: excellent
connection:
  probe_interval: 10s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	config, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if config.Remote.BaseURL != "https://api.example.com" {
		t.Errorf("unexpected base URL: %s", config.Remote.BaseURL)
	}
	if config.Store.Backend != "sqlite" || !config.Store.Compress {
		t.Errorf("unexpected store config: %+v", config.Store)
	}
	if config.Sync.AutoFlushDelay != 5*time.Second {
		t.Errorf("unexpected flush delay: %v", config.Sync.AutoFlushDelay)
	}
	if config.Sync.MinDrainQuality != "excellent" {
		t.Errorf("unexpected drain quality: %s", config.Sync.MinDrainQuality)
	}
	// Unset fields keep their defaults.
	if config.Sync.AttemptCeiling != 5 {
		t.Errorf("expected default attempt ceiling, got %d", config.Sync.AttemptCeiling)
	}
	if config.Connection.ProbeInterval != 10*time.Second {
		t.Errorf("unexpected probe interval: %v", config.Connection.ProbeInterval)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	if _, err := LoadConfigFile("/nonexistent/pathsync.yaml"); err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"UnknownBackend", func(c *Config) { c.Store.Backend = "redis" }},
		{"SQLiteWithoutPath", func(c *Config) { c.Store.Backend = "sqlite"; c.Store.Path = "" }},
		{"BadDrainQuality", func(c *Config) { c.Sync.MinDrainQuality = "amazing" }},
		{"NegativeCeiling", func(c *Config) { c.Sync.AttemptCeiling = -1 }},
		{"ArchiveWithoutBucket", func(c *Config) { c.Archive.Enabled = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(&config)
			if err := config.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestParseQuality(t *testing.T) {
	quality, err := ParseQuality("excellent")
	if err != nil || quality != QualityExcellent {
		t.Errorf("expected excellent, got %v err=%v", quality, err)
	}
	if _, err := ParseQuality("stellar"); err == nil {
		t.Errorf("expected error for unknown quality")
	}
}

func TestStoreConfig_OpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory", func(t *testing.T) {
		store, err := StoreConfig{}.OpenStore(ctx)
		if err != nil {
			t.Fatalf("OpenStore: %v", err)
		}
		defer store.Close()
		if _, ok := store.(*MemoryStore); !ok {
			t.Errorf("expected MemoryStore, got %T", store)
		}
	})

	t.Run("Encrypted", func(t *testing.T) {
		store, err := StoreConfig{EncryptionPassword: "pw"}.OpenStore(ctx)
		if err != nil {
			t.Fatalf("OpenStore: %v", err)
		}
		defer store.Close()
		if _, ok := store.(*EncryptedStore); !ok {
			t.Errorf("expected EncryptedStore, got %T", store)
		}
	})

	t.Run("File", func(t *testing.T) {
		store, err := StoreConfig{Backend: "file", Path: t.TempDir()}.OpenStore(ctx)
		if err != nil {
			t.Fatalf("OpenStore: %v", err)
		}
		defer store.Close()
		if _, ok := store.(*FileStore); !ok {
			t.Errorf("expected FileStore, got %T", store)
		}
	})
}
