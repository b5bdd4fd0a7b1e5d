package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hakim/vulnpipe/internal/models"
	"github.com/hakim/vulnpipe/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show scan history",
	Long: `Display a formatted table of past scans, newest first. Each row shows the
scan ID (truncated), start time, status, and host/vulnerability counts.

With --target, only scans of that target are listed. Use --limit to cap
the number of rows shown (default: 10).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("target")
		limit, _ := cmd.Flags().GetInt("limit")

		if cfg == nil {
			return fmt.Errorf("config not loaded. Run 'vulnpipe init' first to create config")
		}

		store, err := storage.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		scans, err := store.ListScans(target)
		if err != nil {
			return fmt.Errorf("listing scans: %w", err)
		}
		if len(scans) == 0 {
			if target != "" {
				fmt.Printf("No scan history found for %s\n", target)
			} else {
				fmt.Println("No scan history found")
			}
			return nil
		}

		if limit > 0 && len(scans) > limit {
			scans = scans[:limit]
		}

		const separator = "────────────────────────────────────────────────────────────────────────"

		fmt.Println()
		fmt.Println("Scan History")
		fmt.Println(separator)
		fmt.Printf("  %-3s  %-12s  %-18s  %-16s  %-9s  %5s  %5s\n",
			"#", "Scan ID", "Target", "Started", "Status", "Hosts", "Vulns")
		fmt.Println(separator)

		for i, scan := range scans {
			fmt.Printf("  %-3d  %-12s  %-18s  %-16s  %-9s  %5d  %5d\n",
				i+1,
				shortScanID(scan.ID),
				truncateTarget(scan.Target),
				scan.StartedAt.UTC().Format("2006-01-02 15:04"),
				formatStatus(scan.Status),
				scan.HostCount,
				scan.VulnCount)
		}

		fmt.Println(separator)
		fmt.Printf("Total: %d scan(s)\n\n", len(scans))
		return nil
	},
}

// shortScanID returns the first 8 characters of a UUID followed by
// "..." for compact table display.
func shortScanID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

func truncateTarget(target string) string {
	if len(target) <= 18 {
		return target
	}
	return target[:15] + "..."
}

func formatStatus(s models.ScanStatus) string {
	switch s {
	case models.StatusComplete:
		return "complete"
	case models.StatusFailed:
		return "failed"
	case models.StatusRunning:
		return "running"
	case models.StatusPending:
		return "pending"
	default:
		return string(s)
	}
}

func init() {
	historyCmd.Flags().StringP("target", "t", "", "Filter by target")
	historyCmd.Flags().Int("limit", 10, "Maximum number of scans to display")
	rootCmd.AddCommand(historyCmd)
}
