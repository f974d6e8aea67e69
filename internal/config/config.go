package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for vertebrae.
// The core treats it as immutable once loaded.
type Config struct {
	Destination        string   `toml:"destination"`
	WatchPaths         []string `toml:"watch_paths"`
	RescanIntervalSecs int64    `toml:"rescan_interval_secs"`
	FlushIntervalSecs  int64    `toml:"flush_interval_secs"`
	StateDir           string   `toml:"state_dir"`
	LogDir             string   `toml:"log_dir"`

	Store      StoreConfig      `toml:"store"`
	History    HistoryConfig    `toml:"history"`
	Encryption EncryptionConfig `toml:"encryption"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// StoreConfig selects the destination mirror backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type string `toml:"type"` // "filesystem" (default), "s3", or "memory"

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// HistoryConfig selects the operation history backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type HistoryConfig struct {
	Type string `toml:"type"` // "sqlite" (default), "memory", or "none"
}

// EncryptionConfig selects at-rest encryption of mirrored content.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default) or "age"
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

// FilesystemConfig holds source-tree settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// NewConfig creates a Config with the provided paths and sensible defaults.
func NewConfig(destination, stateDir string) *Config {
	return &Config{
		Destination:        destination,
		RescanIntervalSecs: 300,
		FlushIntervalSecs:  30,
		StateDir:           stateDir,
		LogDir:             filepath.Join(stateDir, "log"),
		Store:              StoreConfig{Type: "filesystem"},
		History:            HistoryConfig{Type: "sqlite"},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(stateDir, "keys", "vertebrae.pub"),
			PrivateKeyPath: filepath.Join(stateDir, "keys", "vertebrae.key"),
		},
	}
}

// Validate checks the parts of the config the core depends on. The
// destination-directory check lives in the filesystem store's
// ValidateSetup, since only that backend has a local destination.
func (c *Config) Validate() error {
	if len(c.WatchPaths) == 0 {
		return fmt.Errorf("at least one watch path is required")
	}
	for _, p := range c.WatchPaths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("watch path %s: %w", p, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("watch path is not a directory: %s", p)
		}
	}
	if c.RescanIntervalSecs <= 0 {
		return fmt.Errorf("rescan_interval_secs must be positive")
	}
	if c.FlushIntervalSecs <= 0 {
		return fmt.Errorf("flush_interval_secs must be positive")
	}
	if (c.Store.Type == "" || c.Store.Type == "filesystem") && c.Destination == "" {
		return fmt.Errorf("destination is required for the filesystem store")
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
