package app

import (
	"fmt"
	"os"
	"path/filepath"

	"vertebrae-go/internal/config"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - VERTEBRAE_CONFIG_PATH: config file location (default: ~/.config/vertebrae.toml)
//   - VERTEBRAE_HOME: base directory for daemon state (default: ~/.local/share/vertebrae)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// applyDefaults backfills state_dir and log_dir when the config file leaves
// them unset. log_dir follows state_dir so a user who only sets state_dir
// keeps their logs under it.
func applyDefaults(cfg *config.Config) error {
	if cfg.StateDir == "" || cfg.LogDir == "" {
		defaults, err := GetDefaults()
		if err != nil {
			return err
		}
		if cfg.StateDir == "" {
			cfg.StateDir = defaults["base_dir"]
			if cfg.LogDir == "" {
				cfg.LogDir = defaults["log_dir"]
			}
		}
		if cfg.LogDir == "" {
			cfg.LogDir = filepath.Join(cfg.StateDir, "log")
		}
	}
	return nil
}

// getConfigPath returns the config file path, checking VERTEBRAE_CONFIG_PATH
// env var first, then falling back to the default ~/.config/vertebrae.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("VERTEBRAE_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "vertebrae.toml"), nil
}

// getBaseDir returns the base directory for daemon state, checking
// VERTEBRAE_HOME env var first, then falling back to the XDG default
// ~/.local/share/vertebrae.
func getBaseDir() (string, error) {
	if path := os.Getenv("VERTEBRAE_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "vertebrae"), nil
}
