package config

import (
	"os"
	"path/filepath"

	"github.com/loocor/codmate/internal/logger"
)

// RuntimeConfig holds paths resolved for the current environment
type RuntimeConfig struct {
	HomeDir   string
	ConfigDir string // ~/.codmate
	StateDir  string // ~/.codmate/sessions
	TempDir   string
}

var (
	// Runtime is the global runtime configuration instance
	Runtime *RuntimeConfig
)

func init() {
	Runtime = DetectRuntime()
}

// DetectRuntime resolves the directory layout for the current user
func DetectRuntime() *RuntimeConfig {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv("HOME")
		if homeDir == "" {
			homeDir = "."
		}
	}

	configDir := filepath.Join(homeDir, ".codmate")
	if override := os.Getenv("CODMATE_HOME"); override != "" {
		configDir = override
	}

	cfg := &RuntimeConfig{
		HomeDir:   homeDir,
		ConfigDir: configDir,
		StateDir:  filepath.Join(configDir, "sessions"),
		TempDir:   os.TempDir(),
	}

	for _, dir := range []string{cfg.ConfigDir, cfg.StateDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Warnf("Failed to create directory %s: %v", dir, err)
		}
	}

	return cfg
}

// ConfigFilePath returns the path of the user configuration file
func (c *RuntimeConfig) ConfigFilePath() string {
	return filepath.Join(c.ConfigDir, "config.yaml")
}
