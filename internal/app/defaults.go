package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppName names the per-user cache directory.
const AppName = "idrive-backup"

// Defaults holds the default locations and identity used when no config
// value overrides them.
type Defaults struct {
	ConfigPath string
	CacheDir   string
	LogDir     string
	Host       string
}

// GetDefaults returns application defaults, checking environment variables
// first:
//   - SCANLOG_CONFIG_PATH: config file (default ~/.config/scanlog.toml)
//   - XDG_CACHE_HOME: cache root (default ~/.cache); stores live in
//     <cache root>/idrive-backup
func GetDefaults() (*Defaults, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	cacheDir, err := getCacheDir()
	if err != nil {
		return nil, err
	}
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("cannot determine hostname: %w", err)
	}

	return &Defaults{
		ConfigPath: configPath,
		CacheDir:   cacheDir,
		LogDir:     filepath.Join(cacheDir, "log"),
		Host:       host,
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("SCANLOG_CONFIG_PATH"); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "scanlog.toml"), nil
}

func getCacheDir() (string, error) {
	root := os.Getenv("XDG_CACHE_HOME")
	if root == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		root = filepath.Join(homeDir, ".cache")
	}
	return filepath.Join(root, AppName), nil
}
