package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hakim/vulnpipe/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "vulnpipe",
	Short: "Network vulnerability scan orchestrator",
	Long: `VulnPipe orchestrates network vulnerability scans end to end: it drives
nmap for host and service discovery, fans nikto out over discovered web
services, extracts CVE identifiers from both scanners, enriches them with
EPSS exploitation probabilities and NVD metadata, and ranks everything
into a prioritized remediation report.

Scan results are written to a per-scan directory and recorded in a local
history database.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Commands that work without (or before) a config file.
		skipConfig := map[string]bool{
			"check":   true,
			"init":    true,
			"help":    true,
			"version": true,
		}
		if skipConfig[cmd.Name()] {
			return nil
		}

		loaded, err := config.Load(cfgFile)
		if err != nil {
			// No config file anywhere is fine when the user did not ask
			// for one explicitly: run on defaults.
			var notFound viper.ConfigFileNotFoundError
			if cfgFile == "" && errors.As(err, &notFound) {
				cfg = config.DefaultConfig()
				return nil
			}
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: vulnpipe.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose (debug) logging")

	rootCmd.Version = "0.1.0-dev"
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
