package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		ScanDir: "scans",
		DBPath:  "vulnpipe.db",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Nmap: NmapConfig{
			Path:     "nmap",
			Flags:    "-sV -Pn",
			Profile:  "",
			Adaptive: false,
		},
		Nikto: NiktoConfig{
			Path:        "nikto",
			Concurrency: 2,
			Enabled:     true,
		},
		Enrich: EnrichConfig{
			EPSSEnabled: true,
			NVDEnabled:  true,
			NVDAPIKey:   "",
		},
		Scoring: ScoringConfig{
			CVSSWeight:     0.35,
			EPSSWeight:     0.25,
			ExploitWeight:  0.20,
			ExposureWeight: 0.10,
			AgeWeight:      0.10,
			TopN:           10,
		},
		AI: AIConfig{
			Enabled:  false,
			Provider: "openai",
			Model:    "gpt-4o-mini",
			APIKey:   "",
			BaseURL:  "",
			Prompt:   "",
		},
	}
}

// WriteDefault writes a default configuration to the specified path
func WriteDefault(path string) error {
	cfg := DefaultConfig()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
