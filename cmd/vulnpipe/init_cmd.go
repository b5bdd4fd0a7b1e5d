package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hakim/vulnpipe/internal/config"
	"github.com/hakim/vulnpipe/internal/storage"
)

var (
	initForce bool
	initDir   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize vulnpipe with default configuration",
	Long: `Creates a default configuration file (vulnpipe.yaml), the scan output
directory, and the history database.

This is typically the first command you run when setting up vulnpipe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := filepath.Join(initDir, "vulnpipe.yaml")

		if _, err := os.Stat(configPath); err == nil && !initForce {
			return fmt.Errorf("config file already exists at %s. Use --force to overwrite", configPath)
		}

		if err := config.WriteDefault(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		fmt.Printf("Created %s with default configuration\n", configPath)

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := storage.EnsureDir(cfg.ScanDir); err != nil {
			return fmt.Errorf("failed to create scan directory: %w", err)
		}
		fmt.Printf("Created scan directory: %s\n", cfg.ScanDir)

		store, err := storage.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()
		fmt.Printf("Initialized database: %s\n", cfg.DBPath)

		fmt.Println()
		fmt.Println("VulnPipe initialized successfully!")
		fmt.Println("Run 'vulnpipe check' to verify your scanners.")

		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config file")
	initCmd.Flags().StringVar(&initDir, "dir", ".", "output directory")
	rootCmd.AddCommand(initCmd)
}
