package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hakim/vulnpipe/internal/logger"
	"github.com/hakim/vulnpipe/internal/models"
	"github.com/hakim/vulnpipe/internal/pipeline"
	"github.com/hakim/vulnpipe/internal/report"
	"github.com/hakim/vulnpipe/internal/storage"
	"github.com/hakim/vulnpipe/internal/tools"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a full vulnerability scan against one or more targets",
	Long: `Run the complete scan pipeline: nmap discovery, nikto web scanning,
CVE extraction, EPSS/NVD enrichment, priority scoring and attack-chain
correlation.

Targets may be IPs, CIDR ranges or hostnames, given with repeated -t
flags or one per line in a file via -f. The nmap flag set comes from a
named profile (--profile) or raw flags (--flags, wins over the profile).

Results are written to:
  {scan_dir}/{target}_{timestamp}/raw/       (nmap output in three formats)
  {scan_dir}/{target}_{timestamp}/web/       (nikto output per target)
  {scan_dir}/{target}_{timestamp}/reports/   (markdown report, CSV/JSON summaries)

Examples:
  vulnpipe scan -t 192.168.1.0/24
  vulnpipe scan -t scanme.example.com --profile thorough --adaptive
  vulnpipe scan -f targets.txt --flags "-sV -p 1-1024" --no-nikto
  vulnpipe scan -t 10.0.0.5 --ai --notify-webhook https://hooks.example.com/scan`,
	RunE: func(cmd *cobra.Command, args []string) error {
		targetFlags, _ := cmd.Flags().GetStringSlice("target")
		targetsFile, _ := cmd.Flags().GetString("targets-file")
		rawFlags, _ := cmd.Flags().GetString("flags")
		profile, _ := cmd.Flags().GetString("profile")
		adaptive, _ := cmd.Flags().GetBool("adaptive")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		noNikto, _ := cmd.Flags().GetBool("no-nikto")
		noEnrich, _ := cmd.Flags().GetBool("no-enrich")
		aiProvider, _ := cmd.Flags().GetString("ai")
		topN, _ := cmd.Flags().GetInt("top")
		webhookURL, _ := cmd.Flags().GetString("notify-webhook")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if cfg == nil {
			return fmt.Errorf("config not loaded. Run 'vulnpipe init' first to create config")
		}

		targets, err := gatherTargets(targetFlags, targetsFile)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return fmt.Errorf("no targets given: use -t or -f")
		}

		// Flags override the loaded config for this run only.
		if rawFlags != "" {
			cfg.Nmap.Flags = rawFlags
		}
		if profile != "" {
			cfg.Nmap.Profile = profile
		}
		if cmd.Flags().Changed("adaptive") {
			cfg.Nmap.Adaptive = adaptive
		}
		if concurrency > 0 {
			cfg.Nikto.Concurrency = concurrency
		}
		if noNikto {
			cfg.Nikto.Enabled = false
		}
		if noEnrich {
			cfg.Enrich.EPSSEnabled = false
			cfg.Enrich.NVDEnabled = false
		}
		if cmd.Flags().Changed("ai") {
			cfg.AI.Enabled = true
			if aiProvider != "default" {
				cfg.AI.Provider = aiProvider
			}
		}
		if topN > 0 {
			cfg.Scoring.TopN = topN
		}

		// Pre-flight: nmap is required, nikto only when the secondary
		// scan is enabled.
		if err := preflight(cfg.Nikto.Enabled); err != nil {
			return err
		}

		logCfg := logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}
		if verbose {
			logCfg.Level = "debug"
		}
		log, err := logger.New(logCfg)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		defer log.Sync()

		store, err := storage.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		orch := pipeline.New(cfg, store, log)
		orch.Progress = printProgress
		if webhookURL != "" {
			orch.Notify = &pipeline.NotifyConfig{WebhookURL: webhookURL}
		}

		// Ctrl-C cancels the run context so outstanding scanner
		// processes are killed and the partial results still get
		// reported and recorded.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		fmt.Printf("[*] Starting scan of %d target(s)\n", len(targets))
		start := time.Now()

		sc, runErr := orch.Run(ctx, targets)
		if sc == nil {
			return runErr
		}

		writeReports(sc)
		printSummary(sc, time.Since(start))

		if runErr != nil {
			return fmt.Errorf("scan failed: %w", runErr)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringSliceP("target", "t", nil, "Target IP, CIDR or hostname (repeatable)")
	scanCmd.Flags().StringP("targets-file", "f", "", "File with one target per line")
	scanCmd.Flags().String("flags", "", "Raw nmap flags (overrides --profile)")
	scanCmd.Flags().String("profile", "", "Scan profile: quick, default, thorough, vuln")
	scanCmd.Flags().Bool("adaptive", false, "Deep-rescan hosts running interesting services")
	scanCmd.Flags().Int("concurrency", 0, "Max simultaneous nikto processes (overrides config)")
	scanCmd.Flags().Bool("no-nikto", false, "Skip the web vulnerability scan")
	scanCmd.Flags().Bool("no-enrich", false, "Skip EPSS/NVD enrichment")
	scanCmd.Flags().String("ai", "", "Run AI analysis, optionally naming the provider (openai or ollama)")
	scanCmd.Flags().Lookup("ai").NoOptDefVal = "default"
	scanCmd.Flags().Int("top", 0, "Number of recommendations to produce (overrides config)")
	scanCmd.Flags().String("notify-webhook", "", "HTTP webhook URL to POST a completion summary to")
	scanCmd.Flags().Duration("timeout", 2*time.Hour, "Total scan timeout")

	rootCmd.AddCommand(scanCmd)
}

// gatherTargets merges -t flags with the lines of the targets file.
// Blank lines and #-comments in the file are ignored.
func gatherTargets(flags []string, file string) ([]string, error) {
	targets := append([]string{}, flags...)
	if file == "" {
		return targets, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("opening targets file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading targets file: %w", err)
	}
	return targets, nil
}

// preflight verifies external scanners before any directory is created.
func preflight(niktoEnabled bool) error {
	fmt.Println("[*] Pre-flight tool check:")
	for _, req := range tools.DefaultTools() {
		result := tools.CheckTool(req)
		status := "ok"
		if !result.Found {
			if req.Required {
				status = "MISSING (required)"
			} else {
				status = "not found (optional)"
			}
		}
		fmt.Printf("    %-8s %s\n", req.Name+":", status)

		if !result.Found && req.Required {
			return fmt.Errorf("required tool %q not found. Install with: %s", req.Name, req.InstallCmd)
		}
		if !result.Found && req.Name == "nikto" && niktoEnabled {
			fmt.Println("[!] Warning: nikto not found, the web scan phase will degrade")
		}
	}
	return nil
}

func printProgress(ev pipeline.ProgressEvent) {
	switch {
	case ev.ETC != "":
		fmt.Printf("[*] %s ETC: %s\n", ev.Tool, ev.ETC)
	case ev.Tool != "" && ev.Percent >= 0:
		if ev.Message != "" {
			fmt.Printf("[*] %s: %.1f%% (%s)\n", ev.Tool, ev.Percent, ev.Message)
		} else {
			fmt.Printf("[*] %s: %.1f%% done\n", ev.Tool, ev.Percent)
		}
	case ev.Message == "started":
		fmt.Printf("[*] Phase %d/%d: %s\n", ev.Phase.Ordinal(), pipeline.PhaseCount(), ev.Phase)
	}
}

// writeReports renders the markdown report and the open-port summaries
// into the scan's reports directory. Failures are warnings: the scan
// data itself is already on disk.
func writeReports(sc *models.ScanContext) {
	if sc.ScanDir == "" {
		return
	}
	reportsDir := filepath.Join(sc.ScanDir, "reports")

	if err := report.WriteScanReport(sc, filepath.Join(reportsDir, "scan_report.md")); err != nil {
		fmt.Printf("[!] Warning: writing scan report: %v\n", err)
	}

	if sc.RawFiles.Grep != "" {
		rows, err := tools.ParseGnmapFile(sc.RawFiles.Grep)
		if err != nil {
			fmt.Printf("[!] Warning: parsing port summary: %v\n", err)
			return
		}
		if err := report.WriteSummaryCSV(rows, filepath.Join(reportsDir, "ports.csv")); err != nil {
			fmt.Printf("[!] Warning: writing ports.csv: %v\n", err)
		}
		if err := report.WriteSummaryJSON(rows, filepath.Join(reportsDir, "ports.json")); err != nil {
			fmt.Printf("[!] Warning: writing ports.json: %v\n", err)
		}
		if err := report.WriteSummaryMarkdown(rows, filepath.Join(reportsDir, "ports.md")); err != nil {
			fmt.Printf("[!] Warning: writing ports.md: %v\n", err)
		}
	}
}

func printSummary(sc *models.ScanContext, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("[+] Scan finished")
	fmt.Printf("    Scan ID:   %s\n", sc.ID)
	fmt.Printf("    Scan dir:  %s\n", sc.ScanDir)
	fmt.Printf("    Status:    %s\n", sc.Status)
	fmt.Printf("    Hosts up:  %d\n", sc.HostCount)
	fmt.Printf("    Vulns:     %d\n", len(sc.Vulnerabilities))
	fmt.Printf("    Elapsed:   %s\n", elapsed.Round(time.Second))

	if len(sc.HighRiskHosts) > 0 {
		fmt.Printf("    High risk: %s\n", strings.Join(sc.HighRiskHosts, ", "))
	}
	if len(sc.Recommendations) > 0 {
		fmt.Println()
		fmt.Println("[+] Top recommendations:")
		for i, rec := range sc.Recommendations {
			fmt.Printf("    %d. %s (score %.1f): %s\n", i+1, rec.CVEID, rec.Score, rec.Action)
		}
	}
	if len(sc.PhaseErrors) > 0 {
		fmt.Println()
		fmt.Println("[!] Degraded phases:")
		for phase, msg := range sc.PhaseErrors {
			fmt.Printf("    %-16s %s\n", phase+":", msg)
		}
	}
}
