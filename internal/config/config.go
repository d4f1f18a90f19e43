package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the scanlog configuration file.
type Config struct {
	// Host names the machine whose files are recorded. Defaults to the
	// local hostname.
	Host     string `toml:"host"`
	DeviceID string `toml:"device_id,omitempty"`

	// CacheDir holds the store files.
	CacheDir string `toml:"cache_dir"`
	// StoreName, when set, overrides the per-partition "{host}.{device}.db"
	// file name.
	StoreName string `toml:"store_name,omitempty"`

	LogDir   string `toml:"log_dir"`
	LogLevel string `toml:"log_level,omitempty"` // debug, info (default), warn, error

	// StrictStatus rejects status changes outside the transition table.
	StrictStatus bool `toml:"strict_status"`

	Filesystem FilesystemConfig `toml:"filesystem"`
	Vaults     []VaultConfig    `toml:"vaults"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// EncryptionConfig selects how snapshots are encrypted before upload.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default), "none" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// FilesystemConfig holds settings for local crawls.
type FilesystemConfig struct {
	// Ignore holds gitignore-style patterns skipped by the crawler.
	Ignore []string `toml:"ignore"`
}

// VaultConfig describes one snapshot destination. Type selects which of the
// other fields apply.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3" or "filesystem"
	Name string `toml:"name"`

	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible services (MinIO etc.)
	// Static credentials. When empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// NewConfig returns a Config for host with every path under cacheDir.
func NewConfig(host, cacheDir string) *Config {
	return &Config{
		Host:     host,
		CacheDir: cacheDir,
		LogDir:   filepath.Join(cacheDir, "log"),
		LogLevel: "info",
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(cacheDir, "keys", "scanlog.pub"),
			PrivateKeyPath: filepath.Join(cacheDir, "keys", "scanlog.key"),
		},
	}
}

// Validate checks field values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir is required")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	seen := make(map[string]bool, len(c.Vaults))
	for _, v := range c.Vaults {
		if v.Name == "" {
			return fmt.Errorf("vault of type %q has no name", v.Type)
		}
		if seen[v.Name] {
			return fmt.Errorf("duplicate vault name %q", v.Name)
		}
		seen[v.Name] = true
	}
	return nil
}

// Vault returns the vault called name, or the first vault when name is
// empty.
func (c *Config) Vault(name string) (VaultConfig, error) {
	if len(c.Vaults) == 0 {
		return VaultConfig{}, fmt.Errorf("no vaults configured")
	}
	if name == "" {
		return c.Vaults[0], nil
	}
	for _, v := range c.Vaults {
		if v.Name == name {
			return v, nil
		}
	}
	return VaultConfig{}, fmt.Errorf("vault %q not configured", name)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from r. Unknown keys are rejected.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return &cfg, nil
}

// Write encodes cfg to w.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates the Config at path.
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
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
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

// Init writes cfg to path. It fails if a file already exists there.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
