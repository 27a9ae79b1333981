package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// TerminalConfig holds appearance and cursor settings for hosted terminals
type TerminalConfig struct {
	FontFamily      string `yaml:"font_family"`
	FontSize        int    `yaml:"font_size"`
	Theme           string `yaml:"theme"`
	CursorFocused   string `yaml:"cursor_focused"`
	CursorUnfocused string `yaml:"cursor_unfocused"`
}

// ServerConfig holds settings for the display-layer API server
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the user-facing configuration loaded from config.yaml
type Config struct {
	Terminal TerminalConfig `yaml:"terminal"`
	Server   ServerConfig   `yaml:"server"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Terminal: TerminalConfig{
			FontFamily:      "monospace",
			FontSize:        13,
			Theme:           "default",
			CursorFocused:   "block-blink",
			CursorUnfocused: "block-outline",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:6369",
		},
	}
}

// Load reads config.yaml from the runtime config dir, falling back to
// defaults when the file is missing. Unknown fields are ignored.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Runtime.ConfigFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}
