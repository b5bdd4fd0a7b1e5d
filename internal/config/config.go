package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	ScanDir string        `mapstructure:"scan_dir" yaml:"scan_dir"`
	DBPath  string        `mapstructure:"db_path" yaml:"db_path"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Nmap    NmapConfig    `mapstructure:"nmap" yaml:"nmap"`
	Nikto   NiktoConfig   `mapstructure:"nikto" yaml:"nikto"`
	Enrich  EnrichConfig  `mapstructure:"enrich" yaml:"enrich"`
	Scoring ScoringConfig `mapstructure:"scoring" yaml:"scoring"`
	AI      AIConfig      `mapstructure:"ai" yaml:"ai"`
}

// LogConfig controls the run-scoped logger
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// NmapConfig configures the primary scan driver
type NmapConfig struct {
	Path     string `mapstructure:"path" yaml:"path"`
	Flags    string `mapstructure:"flags" yaml:"flags"`
	Profile  string `mapstructure:"profile" yaml:"profile"`
	Adaptive bool   `mapstructure:"adaptive" yaml:"adaptive"`
}

// NiktoConfig configures the secondary scan fan-out driver
type NiktoConfig struct {
	Path        string `mapstructure:"path" yaml:"path"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
}

// EnrichConfig toggles the enrichment sources
type EnrichConfig struct {
	EPSSEnabled bool   `mapstructure:"epss_enabled" yaml:"epss_enabled"`
	NVDEnabled  bool   `mapstructure:"nvd_enabled" yaml:"nvd_enabled"`
	NVDAPIKey   string `mapstructure:"nvd_api_key" yaml:"nvd_api_key"`
}

// ScoringConfig holds the priority-scoring weights and ranking size.
// Weights are fractions of 1; each factor is normalized to [0,1] before
// weighting.
type ScoringConfig struct {
	CVSSWeight     float64 `mapstructure:"cvss_weight" yaml:"cvss_weight"`
	EPSSWeight     float64 `mapstructure:"epss_weight" yaml:"epss_weight"`
	ExploitWeight  float64 `mapstructure:"exploit_weight" yaml:"exploit_weight"`
	ExposureWeight float64 `mapstructure:"exposure_weight" yaml:"exposure_weight"`
	AgeWeight      float64 `mapstructure:"age_weight" yaml:"age_weight"`
	TopN           int     `mapstructure:"top_n" yaml:"top_n"`
}

// AIConfig selects and configures the AI analysis provider
type AIConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Provider string `mapstructure:"provider" yaml:"provider"` // openai or ollama
	Model    string `mapstructure:"model" yaml:"model"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Prompt   string `mapstructure:"prompt" yaml:"prompt"`
}

// Load reads and parses configuration from a YAML file.
// If path is empty, searches for vulnpipe.yaml in the current directory
// and ~/.config/vulnpipe/.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("vulnpipe")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "vulnpipe"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.ScanDir == "" {
		errs = append(errs, errors.New("scan_dir cannot be empty"))
	}

	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path cannot be empty"))
	}

	if c.Nikto.Concurrency < 1 || c.Nikto.Concurrency > 16 {
		errs = append(errs, errors.New("nikto concurrency must be between 1 and 16"))
	}

	for _, w := range []struct {
		name  string
		value float64
	}{
		{"cvss_weight", c.Scoring.CVSSWeight},
		{"epss_weight", c.Scoring.EPSSWeight},
		{"exploit_weight", c.Scoring.ExploitWeight},
		{"exposure_weight", c.Scoring.ExposureWeight},
		{"age_weight", c.Scoring.AgeWeight},
	} {
		if w.value < 0 || w.value > 1 {
			errs = append(errs, fmt.Errorf("scoring %s must be between 0 and 1", w.name))
		}
	}

	if c.Scoring.TopN <= 0 {
		errs = append(errs, errors.New("scoring top_n must be positive"))
	}

	if c.AI.Enabled {
		switch c.AI.Provider {
		case "openai", "ollama":
		default:
			errs = append(errs, fmt.Errorf("unknown ai provider %q (want openai or ollama)", c.AI.Provider))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
