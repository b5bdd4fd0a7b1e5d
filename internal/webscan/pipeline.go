package webscan

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/hakim/vulnpipe/internal/logger"
	"github.com/hakim/vulnpipe/internal/models"
	"github.com/hakim/vulnpipe/internal/tools"
)

// WebTarget is one deduplicated (host, port, scheme) endpoint selected
// for a deep web scan.
type WebTarget struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Scheme string `json:"scheme"`
}

// URL renders the target as scheme://host:port
func (t WebTarget) URL() string {
	return fmt.Sprintf("%s://%s:%d", t.Scheme, t.Host, t.Port)
}

// Config contains configuration for the web scan fan-out
type Config struct {
	NiktoPath   string
	Concurrency int // hard cap on simultaneous nikto processes
	OutputDir   string
}

// Result contains the aggregated output of the web scan fan-out
type Result struct {
	Findings  []models.WebFinding `json:"findings"`
	Total     int                 `json:"total"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Errors    map[string]string   `json:"errors,omitempty"`
}

// Well-known web ports; a port is a candidate when its service name
// contains "http" or its number is in this set.
var webPorts = map[int]bool{
	80: true, 443: true, 3000: true, 5000: true, 8000: true,
	8001: true, 8080: true, 8443: true, 8888: true, 9000: true,
}

var sslPorts = map[int]bool{443: true, 8443: true}

// SelectTargets derives the deduplicated web-scan candidates from the
// host inventory. Output is sorted so downstream fan-out and reports are
// deterministic.
func SelectTargets(hosts []models.Host) []WebTarget {
	seen := make(map[WebTarget]bool)
	var targets []WebTarget

	for _, host := range hosts {
		for _, port := range host.Ports {
			service := strings.ToLower(port.ServiceName())
			if !strings.Contains(service, "http") && !webPorts[port.Number] {
				continue
			}

			scheme := "http"
			if strings.Contains(service, "https") || strings.Contains(service, "ssl") || sslPorts[port.Number] {
				scheme = "https"
			}

			t := WebTarget{Host: host.IP, Port: port.Number, Scheme: scheme}
			if !seen[t] {
				seen[t] = true
				targets = append(targets, t)
			}
		}
	}

	sort.Slice(targets, func(i, j int) bool {
		if targets[i].Host != targets[j].Host {
			return targets[i].Host < targets[j].Host
		}
		if targets[i].Port != targets[j].Port {
			return targets[i].Port < targets[j].Port
		}
		return targets[i].Scheme < targets[j].Scheme
	})

	return targets
}

// Run fans out one nikto process per target under a counting semaphore
// of size Concurrency. Workers are isolated: one target's failure is
// recorded and never cancels siblings. Each worker writes into its own
// result slot; slots are merged only after every worker has finished.
func Run(ctx context.Context, targets []WebTarget, cfg Config, log *logger.Logger, onProgress func(done, total int)) (*Result, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("webscan")

	result := &Result{
		Findings: []models.WebFinding{},
		Total:    len(targets),
		Errors:   make(map[string]string),
	}

	if len(targets) == 0 {
		log.Infow("no web-capable endpoints detected, skipping web scan")
		return result, nil
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	log.Infow("starting web scan fan-out",
		"targets", len(targets),
		"concurrency", concurrency,
	)

	sem := semaphore.NewWeighted(int64(concurrency))
	slots := make([][]models.WebFinding, len(targets))
	errs := make([]error, len(targets))

	var wg sync.WaitGroup
	var done atomic.Int64

	for i, target := range targets {
		wg.Add(1)
		go func(i int, target WebTarget) {
			defer wg.Done()
			defer func() {
				n := done.Add(1)
				if onProgress != nil {
					onProgress(int(n), len(targets))
				}
			}()

			if err := sem.Acquire(ctx, 1); err != nil {
				errs[i] = err
				return
			}
			defer sem.Release(1)

			slots[i], errs[i] = scanOne(ctx, target, cfg, log)
		}(i, target)
	}

	wg.Wait()

	// Merge private slots in target order so output is deterministic
	for i, target := range targets {
		if errs[i] != nil {
			result.Failed++
			result.Errors[target.URL()] = errs[i].Error()
			log.Warnw("web scan target failed", "target", target.URL(), "error", errs[i])
			continue
		}
		result.Succeeded++
		result.Findings = append(result.Findings, slots[i]...)
	}

	log.Infow("web scan complete",
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"findings", len(result.Findings),
	)

	return result, nil
}

// scanOne runs a single nikto process and converts its findings.
func scanOne(ctx context.Context, target WebTarget, cfg Config, log *logger.Logger) ([]models.WebFinding, error) {
	outFile := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%d.htm", target.Host, target.Port))

	stdout, err := tools.RunNikto(ctx, target.URL(), outFile, cfg.NiktoPath)
	if err != nil {
		return nil, err
	}

	parsed := tools.ParseNiktoOutput(stdout)
	findings := make([]models.WebFinding, 0, len(parsed))
	for _, f := range parsed {
		findings = append(findings, models.WebFinding{
			Host:        target.Host,
			Port:        target.Port,
			Scheme:      target.Scheme,
			Type:        f.Type,
			Description: f.Description,
			Severity:    f.Severity,
		})
	}

	log.Debugw("web scan target complete", "target", target.URL(), "findings", len(findings))
	return findings, nil
}
