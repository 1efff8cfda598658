package pathsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration.
type Config struct {
	// Remote configures the HTTP client against the authoritative server.
	Remote RemoteConfig `yaml:"remote"`

	// Store configures local persistence.
	Store StoreConfig `yaml:"store"`

	// Sync configures flush and drain behavior.
	Sync SyncConfig `yaml:"sync"`

	// Connection configures the reachability monitor.
	Connection ConnectionConfig `yaml:"connection"`

	// Archive configures optional answer archival to object storage.
	Archive ArchiveConfig `yaml:"archive"`

	// Metrics configures Prometheus instrumentation.
	Metrics MetricsConfig `yaml:"metrics"`
}

// RemoteConfig groups remote API settings.
type RemoteConfig struct {
	// BaseURL of the progress API. Required.
	BaseURL string `yaml:"base_url"`

	// AuthToken sent as a bearer token when non-empty.
	AuthToken string `yaml:"auth_token"`

	// RequestTimeout per call. Default: 15s.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StoreConfig groups local persistence settings.
type StoreConfig struct {
	// Backend selects the store implementation: "memory", "file" or
	// "sqlite". Default: "memory".
	Backend string `yaml:"backend"`

	// Path is the database file (sqlite) or directory (file).
	Path string `yaml:"path"`

	// EncryptionPassword, when non-empty, wraps the store with AES-256-GCM
	// encryption at rest.
	EncryptionPassword string `yaml:"encryption_password"`

	// Compress enables snappy compression of large stored values.
	Compress bool `yaml:"compress"`
}

// SyncConfig groups flush and drain settings.
type SyncConfig struct {
	// AutoFlushDelay is the debounce window between a local write and the
	// automatic queue flush it schedules. Default: 2s.
	AutoFlushDelay time.Duration `yaml:"auto_flush_delay"`

	// MinDrainQuality is the lowest connection quality at which opportunistic
	// drains run: "poor", "good" or "excellent". Default: "good".
	MinDrainQuality string `yaml:"min_drain_quality"`

	// AttemptCeiling is the attempt count at or above which an activity
	// reports as locked. Default: 5.
	AttemptCeiling int `yaml:"attempt_ceiling"`
}

// ConnectionConfig groups reachability monitor settings.
type ConnectionConfig struct {
	// ProbeInterval between periodic checks. Default: 30s.
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// ProbeTimeout per probe. Default: 5s.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// ExcellentLatency is the upper bound for excellent quality. Default: 150ms.
	ExcellentLatency time.Duration `yaml:"excellent_latency"`

	// GoodLatency is the upper bound for good quality. Default: 600ms.
	GoodLatency time.Duration `yaml:"good_latency"`

	// FailureThreshold is the consecutive failures before offline. Default: 3.
	FailureThreshold int `yaml:"failure_threshold"`
}

// ArchiveConfig groups object-storage archival settings.
type ArchiveConfig struct {
	// Enabled turns archival on.
	Enabled bool `yaml:"enabled"`

	// Bucket is the S3 bucket name. Required when Enabled.
	Bucket string `yaml:"bucket"`

	// Prefix is prepended to every archive object key.
	Prefix string `yaml:"prefix"`

	// Region is the AWS region.
	Region string `yaml:"region"`

	// Endpoint overrides the S3 endpoint for S3-compatible stores.
	Endpoint string `yaml:"endpoint"`

	// AccessKeyID and SecretAccessKey are static credentials. When empty,
	// the default AWS credential chain is used.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// MetricsConfig groups Prometheus settings.
type MetricsConfig struct {
	// Enabled turns metric collection on.
	Enabled bool `yaml:"enabled"`

	// Namespace prefixes every metric name. Default: "pathsync".
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Remote: RemoteConfig{
			RequestTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Sync: SyncConfig{
			AutoFlushDelay:  2 * time.Second,
			MinDrainQuality: "good",
			AttemptCeiling:  5,
		},
		Connection: ConnectionConfig{
			ProbeInterval:    30 * time.Second,
			ProbeTimeout:     5 * time.Second,
			ExcellentLatency: 150 * time.Millisecond,
			GoodLatency:      600 * time.Millisecond,
			FailureThreshold: 3,
		},
		Metrics: MetricsConfig{
			Namespace: "pathsync",
		},
	}
}

// LoadConfigFile reads a YAML configuration file, layered over defaults.
func LoadConfigFile(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks the configuration for inconsistencies.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "", "memory":
	case "file", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("config: store backend %q requires a path", c.Store.Backend)
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}

	if c.Sync.MinDrainQuality != "" {
		if _, err := ParseQuality(c.Sync.MinDrainQuality); err != nil {
			return err
		}
	}
	if c.Sync.AttemptCeiling < 0 {
		return errors.New("config: attempt ceiling must be >= 0")
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return errors.New("config: archive requires a bucket")
	}

	return nil
}

// ParseQuality converts a quality name to its ordered value.
func ParseQuality(name string) (ConnectionQuality, error) {
	switch name {
	case "offline":
		return QualityOffline, nil
	case "poor":
		return QualityPoor, nil
	case "good":
		return QualityGood, nil
	case "excellent":
		return QualityExcellent, nil
	default:
		return QualityOffline, fmt.Errorf("config: unknown connection quality %q", name)
	}
}

// OpenStore builds the local store the configuration describes, including
// the encryption wrapper when a password is set.
func (c StoreConfig) OpenStore(ctx context.Context) (LocalStore, error) {
	var store LocalStore
	var err error

	switch c.Backend {
	case "", "memory":
		store = NewMemoryStore()
	case "file":
		store, err = NewFileStore(c.Path)
	case "sqlite":
		store, err = NewSQLiteStore(DefaultSQLiteStoreConfig(c.Path))
	default:
		return nil, fmt.Errorf("config: unknown store backend %q", c.Backend)
	}
	if err != nil {
		return nil, err
	}

	if c.EncryptionPassword != "" {
		encrypted, err := NewEncryptedStore(ctx, store, c.EncryptionPassword)
		if err != nil {
			store.Close()
			return nil, err
		}
		return encrypted, nil
	}
	return store, nil
}
