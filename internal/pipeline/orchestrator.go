package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hakim/vulnpipe/internal/ai"
	"github.com/hakim/vulnpipe/internal/config"
	"github.com/hakim/vulnpipe/internal/enrich"
	"github.com/hakim/vulnpipe/internal/logger"
	"github.com/hakim/vulnpipe/internal/models"
	"github.com/hakim/vulnpipe/internal/portscan"
	"github.com/hakim/vulnpipe/internal/storage"
	"github.com/hakim/vulnpipe/internal/tools"
	"github.com/hakim/vulnpipe/internal/vulnscan"
	"github.com/hakim/vulnpipe/internal/webscan"
)

// StoreInterface is the minimal history-database contract the
// orchestrator needs: it checkpoints by upserting the whole record, so
// a single save method suffices. Using an interface keeps the package
// testable without a real bbolt file.
type StoreInterface interface {
	SaveScan(meta *models.ScanMeta) error
}

// Drivers holds the phase implementations. Production code uses the
// defaults wired by New; tests swap in fakes.
type Drivers struct {
	PortScan func(ctx context.Context, targets []string, cfg portscan.Config, log *logger.Logger, onProgress tools.NmapProgress) (*portscan.Result, error)
	WebScan  func(ctx context.Context, targets []webscan.WebTarget, cfg webscan.Config, log *logger.Logger, onProgress func(done, total int)) (*webscan.Result, error)
	Enrich   func(ctx context.Context, vulns []models.Vulnerability, log *logger.Logger) []models.Vulnerability
	Analyze  func(ctx context.Context, sc *models.ScanContext) (string, error)
}

// Orchestrator runs one scan end to end. It owns the scan context for
// the duration of Run and checkpoints metadata into the store after
// every phase.
type Orchestrator struct {
	cfg   *config.Config
	store StoreInterface
	log   *logger.Logger

	// Drivers may be replaced before Run is called.
	Drivers Drivers

	// Progress, when set, receives phase and tool progress events.
	Progress ProgressFunc

	// Notify, when set, is posted the completion payload after Run.
	Notify *NotifyConfig
}

// New builds an orchestrator with the production drivers. store may be
// nil, in which case no history is recorded.
func New(cfg *config.Config, store StoreInterface, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	o := &Orchestrator{
		cfg:   cfg,
		store: store,
		log:   log.WithComponent("pipeline"),
	}
	o.Drivers = Drivers{
		PortScan: portscan.Run,
		WebScan:  webscan.Run,
		Enrich:   o.defaultEnrich,
		Analyze:  o.defaultAnalyze,
	}
	return o
}

// Run executes the full phase sequence against targets. The returned
// scan context is always non-nil once the init phase succeeds, even
// when err is set: a failed primary scan still produces a context with
// status failed for the caller to report on.
func (o *Orchestrator) Run(ctx context.Context, targets []string) (*models.ScanContext, error) {
	targets = NormalizeTargets(targets)
	if err := ValidateTargets(targets); err != nil {
		return nil, err
	}

	sc := models.NewScanContext(targets)
	start := time.Now()

	if err := o.runPhase(PhaseInit, sc, func() error {
		return o.initScan(sc)
	}); err != nil {
		return nil, err
	}

	// Primary scan is the one fatal phase: without an inventory nothing
	// downstream can run.
	if err := o.runPhase(PhasePrimaryScan, sc, func() error {
		return o.primaryScan(ctx, sc)
	}); err != nil {
		o.finish(sc, models.StatusFailed, start)
		return sc, fmt.Errorf("primary scan: %w", err)
	}

	if o.cfg.Nikto.Enabled {
		o.runPhase(PhaseSecondaryScan, sc, func() error {
			return o.secondaryScan(ctx, sc)
		})
	}

	o.runPhase(PhaseExtract, sc, func() error {
		sc.Vulnerabilities = vulnscan.Extract(sc.Hosts, sc.WebFindings)
		return nil
	})

	if o.cfg.Enrich.EPSSEnabled || o.cfg.Enrich.NVDEnabled {
		o.runPhase(PhaseEnrich, sc, func() error {
			sc.Vulnerabilities = o.Drivers.Enrich(ctx, sc.Vulnerabilities, o.log)
			return ctx.Err()
		})
	}

	o.runPhase(PhaseScore, sc, func() error {
		sc.Scored = vulnscan.Score(sc.Vulnerabilities, o.weights())
		return nil
	})

	o.runPhase(PhaseCorrelate, sc, func() error {
		sc.AttackChains = vulnscan.Correlate(sc.Scored)
		sc.HighRiskHosts = vulnscan.HighRiskHosts(sc.Scored)
		sc.Recommendations = vulnscan.Recommend(sc.Scored, o.cfg.Scoring.TopN)
		return nil
	})

	if o.cfg.AI.Enabled {
		o.runPhase(PhaseAnalyze, sc, func() error {
			analysis, err := o.Drivers.Analyze(ctx, sc)
			if errors.Is(err, ai.ErrNotConfigured) {
				o.log.Infow("ai analysis skipped", "reason", "provider not configured")
				return nil
			}
			if err != nil {
				return err
			}
			sc.AIAnalysis = analysis
			return nil
		})
	}

	o.finish(sc, models.StatusComplete, start)
	return sc, nil
}

// runPhase wraps a phase with crash isolation: a panic inside fn is
// captured as a phase error instead of taking the process down. Every
// attempted phase is recorded and the metadata checkpointed.
func (o *Orchestrator) runPhase(phase Phase, sc *models.ScanContext, fn func() error) error {
	o.emit(ProgressEvent{Phase: phase, Percent: -1, Message: "started"})
	phaseStart := time.Now()

	err := func() (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				retErr = fmt.Errorf("phase %s panicked: %v", phase, r)
			}
		}()
		return fn()
	}()

	sc.PhasesRun = append(sc.PhasesRun, string(phase))
	if err != nil {
		sc.PhaseErrors[string(phase)] = err.Error()
		o.log.Warnw("phase degraded", "phase", phase, "error", err, "elapsed", time.Since(phaseStart))
	} else {
		o.log.Infow("phase complete", "phase", phase, "elapsed", time.Since(phaseStart))
	}

	o.checkpoint(sc)
	return err
}

func (o *Orchestrator) initScan(sc *models.ScanContext) error {
	scanDir, err := storage.CreateScanDir(o.cfg.ScanDir, sc.Target, sc.StartedAt)
	if err != nil {
		return fmt.Errorf("creating scan directory: %w", err)
	}
	sc.ScanDir = scanDir
	sc.Status = models.StatusRunning
	o.log.Infow("scan started", "id", sc.ID, "target", sc.Target, "targets", len(sc.Targets), "dir", scanDir)
	return nil
}

func (o *Orchestrator) primaryScan(ctx context.Context, sc *models.ScanContext) error {
	flags, err := ResolveFlags(o.cfg.Nmap.Profile, o.cfg.Nmap.Flags)
	if err != nil {
		return err
	}

	result, err := o.Drivers.PortScan(ctx, sc.Targets, portscan.Config{
		NmapPath:  o.cfg.Nmap.Path,
		Flags:     flags,
		Adaptive:  o.cfg.Nmap.Adaptive,
		OutputDir: filepath.Join(sc.ScanDir, "raw"),
	}, o.log, func(percent float64, etc string) {
		o.emit(ProgressEvent{Phase: PhasePrimaryScan, Tool: "nmap", Percent: percent, ETC: etc})
	})
	if err != nil {
		return err
	}

	sc.Hosts = result.Hosts
	sc.RawFiles = result.Raw
	sc.HostCount = result.HostsUp
	o.log.Infow("primary scan complete", "hosts_up", result.HostsUp, "open_ports", result.OpenPorts)
	return nil
}

func (o *Orchestrator) secondaryScan(ctx context.Context, sc *models.ScanContext) error {
	targets := webscan.SelectTargets(sc.Hosts)
	if len(targets) == 0 {
		o.log.Infow("no web services found, skipping secondary scan")
		return nil
	}

	result, err := o.Drivers.WebScan(ctx, targets, webscan.Config{
		NiktoPath:   o.cfg.Nikto.Path,
		Concurrency: o.cfg.Nikto.Concurrency,
		OutputDir:   filepath.Join(sc.ScanDir, "web"),
	}, o.log, func(done, total int) {
		o.emit(ProgressEvent{
			Phase:   PhaseSecondaryScan,
			Tool:    "nikto",
			Percent: 100 * float64(done) / float64(total),
			Message: fmt.Sprintf("%d/%d targets", done, total),
		})
	})
	if err != nil {
		return err
	}

	sc.WebFindings = result.Findings
	if result.Failed > 0 {
		o.log.Warnw("secondary scan partially failed", "failed", result.Failed, "total", result.Total)
	}
	return nil
}

// finish stamps the terminal state, snapshots the context to disk,
// updates the history record and fires the completion webhook.
func (o *Orchestrator) finish(sc *models.ScanContext, status models.ScanStatus, start time.Time) {
	now := time.Now()
	sc.Status = status
	sc.CompletedAt = &now
	sc.VulnCount = len(sc.Vulnerabilities)

	if _, err := storage.WriteContext(sc); err != nil {
		o.log.Warnw("could not write scan context snapshot", "error", err)
	}
	o.checkpoint(sc)

	o.log.Infow("scan finished",
		"id", sc.ID,
		"status", status,
		"hosts", sc.HostCount,
		"vulns", sc.VulnCount,
		"elapsed", now.Sub(start).Round(time.Millisecond),
	)

	if err := o.Notify.SendCompletion(sc, now.Sub(start)); err != nil {
		o.log.Warnw("completion webhook failed", "error", err)
	}
}

// checkpoint persists the current metadata. Persistence failures are
// warnings: the scan itself keeps going.
func (o *Orchestrator) checkpoint(sc *models.ScanContext) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveScan(&sc.ScanMeta); err != nil {
		o.log.Warnw("could not checkpoint scan record", "error", err)
	}
}

func (o *Orchestrator) emit(ev ProgressEvent) {
	if o.Progress != nil {
		o.Progress(ev)
	}
}

func (o *Orchestrator) weights() vulnscan.Weights {
	return vulnscan.Weights{
		CVSS:     o.cfg.Scoring.CVSSWeight,
		EPSS:     o.cfg.Scoring.EPSSWeight,
		Exploit:  o.cfg.Scoring.ExploitWeight,
		Exposure: o.cfg.Scoring.ExposureWeight,
		Age:      o.cfg.Scoring.AgeWeight,
	}
}

func (o *Orchestrator) defaultEnrich(ctx context.Context, vulns []models.Vulnerability, log *logger.Logger) []models.Vulnerability {
	registry := enrich.NewRegistry()
	if o.cfg.Enrich.EPSSEnabled {
		registry.Register(enrich.NewEPSSSource(""))
	}
	if o.cfg.Enrich.NVDEnabled {
		registry.Register(enrich.NewNVDSource("", o.cfg.Enrich.NVDAPIKey))
	}
	return registry.EnrichAll(ctx, vulns, log)
}

func (o *Orchestrator) defaultAnalyze(ctx context.Context, sc *models.ScanContext) (string, error) {
	provider, err := ai.NewProvider(o.cfg.AI.Provider, o.cfg.AI.Model, o.cfg.AI.APIKey, o.cfg.AI.BaseURL)
	if err != nil {
		return "", err
	}
	return provider.Analyze(ctx, sc, o.cfg.AI.Prompt)
}
