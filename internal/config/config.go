package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. It is loaded once at
// startup and treated as immutable afterwards.
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Sidecar struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"sidecar"`

	Cloud struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"cloud"`

	Defaults struct {
		Mode     string `yaml:"mode"`
		Style    string `yaml:"style"`
		Language string `yaml:"language"`
		Pool     string `yaml:"pool"`
	} `yaml:"defaults"`

	Workers struct {
		Count int `yaml:"count"`
	} `yaml:"workers"`

	Storage struct {
		TempDir    string `yaml:"temp_dir"`
		OutputDir  string `yaml:"output_dir"`
		Database   string `yaml:"database"`
		LegacyFile string `yaml:"legacy_file"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.Host = "0.0.0.0"
	cfg.Sidecar.BaseURL = "http://127.0.0.1:8765"
	cfg.Sidecar.TimeoutSeconds = 60
	cfg.Cloud.BaseURL = "https://generativelanguage.googleapis.com"
	cfg.Cloud.Model = "gemini-2.0-flash"
	cfg.Defaults.Mode = "auto"
	cfg.Defaults.Style = "verbatim"
	cfg.Defaults.Language = ""
	cfg.Defaults.Pool = "General"
	cfg.Workers.Count = 2
	cfg.Storage.TempDir = "temp"
	cfg.Storage.OutputDir = "outputs"
	cfg.Storage.Database = "data/transcripts.db"
	cfg.Cleanup.IntervalMinutes = 30
	cfg.Cleanup.MaxAgeHours = 24
	cfg.GoogleDrive.FolderName = "Transcripts"
	cfg.Limits.MaxFileSizeMB = 10
	return cfg
}

// Load reads and parses a YAML config file. Missing fields keep their
// defaults; CLOUD_API_KEY in the environment overrides the file value.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnv(cfg)

	if cfg.Sidecar.TimeoutSeconds <= 0 {
		cfg.Sidecar.TimeoutSeconds = 60
	}
	if cfg.Workers.Count <= 0 {
		cfg.Workers.Count = 1
	}
	if cfg.Limits.MaxFileSizeMB <= 0 {
		cfg.Limits.MaxFileSizeMB = 10
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if key := os.Getenv("CLOUD_API_KEY"); key != "" {
		cfg.Cloud.APIKey = key
	}
}

// SidecarTimeout returns the transcribe timeout as a duration.
func (c *Config) SidecarTimeout() time.Duration {
	return time.Duration(c.Sidecar.TimeoutSeconds) * time.Second
}
