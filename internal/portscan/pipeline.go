package portscan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hakim/vulnpipe/internal/logger"
	"github.com/hakim/vulnpipe/internal/models"
	"github.com/hakim/vulnpipe/internal/tools"
)

// Config contains configuration for the primary scan pipeline
type Config struct {
	NmapPath  string
	Flags     string // free-form nmap flags, normalized and tokenized downstream
	Adaptive  bool   // rescan hosts with interesting services using DeepFlags
	DeepFlags string // flags for the adaptive deep rescan
	OutputDir string // directory for raw output files
}

// DefaultDeepFlags is the flag set used for adaptive deep rescans when
// the config leaves it empty.
const DefaultDeepFlags = "-sV -sC --script=vuln -A"

// Result contains the complete results of the primary scan phase
type Result struct {
	Hosts     []models.Host      `json:"hosts"`
	Raw       models.RawFiles    `json:"raw_files"`
	Summary   []tools.SummaryRow `json:"summary"`
	HostsUp   int                `json:"hosts_up"`
	OpenPorts int                `json:"open_ports"`
}

// interestingServices marks a host as a deep-rescan candidate when any of
// its ports runs one of these.
var interestingServices = map[string]bool{
	"http":       true,
	"https":      true,
	"ssh":        true,
	"ftp":        true,
	"mysql":      true,
	"postgresql": true,
	"smb":        true,
}

// Run executes the primary nmap scan and parses its structured output
// into the host inventory. A failing nmap process is returned as an
// error (fatal upstream); a missing or truncated structured-output file
// degrades to an empty inventory with a warning.
func Run(ctx context.Context, targets []string, cfg Config, log *logger.Logger, onProgress tools.NmapProgress) (*Result, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("portscan")

	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets provided")
	}

	logFile, lineSink := openScanLog(cfg.OutputDir, log)
	if logFile != nil {
		defer logFile.Close()
	}

	opts := tools.NmapOptions{
		Binary:    cfg.NmapPath,
		Flags:     cfg.Flags,
		OutputDir: cfg.OutputDir,
	}

	log.Infow("starting primary scan", "targets", len(targets), "flags", cfg.Flags)

	raw, err := tools.RunNmap(ctx, targets, opts, onProgress, lineSink)
	if err != nil {
		return nil, fmt.Errorf("nmap execution failed: %w", err)
	}

	hosts := parseInventory(raw.XML, log)

	summary, perr := tools.ParseGnmapFile(raw.Grep)
	if perr != nil {
		log.Warnw("greppable output unparsable", "error", perr)
	}

	if cfg.Adaptive {
		hosts = adaptiveRescan(ctx, hosts, cfg, log, lineSink)
	}

	result := &Result{
		Hosts:   hosts,
		Raw:     raw,
		Summary: summary,
		HostsUp: len(hosts),
	}
	for _, h := range hosts {
		result.OpenPorts += len(h.Ports)
	}

	log.Infow("primary scan complete",
		"hosts_up", result.HostsUp,
		"open_ports", result.OpenPorts,
	)

	return result, nil
}

// DeepScanCandidates returns the IPs of hosts exposing at least one
// interesting service, in inventory order.
func DeepScanCandidates(hosts []models.Host) []string {
	var candidates []string
	for _, host := range hosts {
		for _, port := range host.Ports {
			if interestingServices[port.ServiceName()] {
				candidates = append(candidates, host.IP)
				break
			}
		}
	}
	return candidates
}

// MergeHosts overlays deep-scan results onto the base inventory, keyed
// by IP. A deep port replaces the base port with the same (number,
// protocol); unseen ports and hosts are appended; the OS guess is
// upgraded only when the base had none.
func MergeHosts(base, overlay []models.Host) []models.Host {
	byIP := make(map[string]int, len(base))
	merged := make([]models.Host, len(base))
	copy(merged, base)
	for i, h := range merged {
		byIP[h.IP] = i
	}

	for _, deep := range overlay {
		idx, ok := byIP[deep.IP]
		if !ok {
			merged = append(merged, deep)
			byIP[deep.IP] = len(merged) - 1
			continue
		}

		host := &merged[idx]
		for _, dp := range deep.Ports {
			replaced := false
			for i, bp := range host.Ports {
				if bp.Number == dp.Number && bp.Protocol == dp.Protocol {
					host.Ports[i] = dp
					replaced = true
					break
				}
			}
			if !replaced {
				host.Ports = append(host.Ports, dp)
			}
		}
		if host.OSGuess == nil {
			host.OSGuess = deep.OSGuess
		}
		if host.Hostname == "" {
			host.Hostname = deep.Hostname
		}
	}

	return merged
}

// adaptiveRescan deep-scans candidate hosts and overlays the results.
// Any failure here degrades to the shallow inventory.
func adaptiveRescan(ctx context.Context, hosts []models.Host, cfg Config, log *logger.Logger, lineSink func(string)) []models.Host {
	candidates := DeepScanCandidates(hosts)
	if len(candidates) == 0 {
		return hosts
	}

	deepFlags := cfg.DeepFlags
	if deepFlags == "" {
		deepFlags = DefaultDeepFlags
	}

	deepDir := filepath.Join(cfg.OutputDir, "deep")
	if err := os.MkdirAll(deepDir, 0755); err != nil {
		log.Warnw("adaptive rescan skipped", "error", err)
		return hosts
	}

	log.Infow("adaptive deep rescan", "candidates", len(candidates), "flags", deepFlags)

	opts := tools.NmapOptions{
		Binary:    cfg.NmapPath,
		Flags:     deepFlags,
		OutputDir: deepDir,
	}

	raw, err := tools.RunNmap(ctx, candidates, opts, nil, lineSink)
	if err != nil {
		log.Warnw("adaptive rescan failed", "error", err)
		return hosts
	}

	deepHosts := parseInventory(raw.XML, log)
	return MergeHosts(hosts, deepHosts)
}

// parseInventory parses an XML report, downgrading parse failures to an
// empty inventory plus a warning.
func parseInventory(xmlPath string, log *logger.Logger) []models.Host {
	hosts, perr := tools.ParseNmapXMLFile(xmlPath)
	if perr != nil {
		log.Warnw("structured output unparsable", "path", xmlPath, "error", perr)
	}
	return hosts
}

// openScanLog opens the raw line log next to the scanner outputs. The
// returned sink is nil-safe for tools.RunNmap when the file cannot be
// created.
func openScanLog(dir string, log *logger.Logger) (*os.File, func(string)) {
	f, err := os.OpenFile(filepath.Join(dir, "nmap_scan.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Warnw("scan log unavailable", "error", err)
		return nil, nil
	}
	return f, func(line string) {
		fmt.Fprintln(f, line)
	}
}
