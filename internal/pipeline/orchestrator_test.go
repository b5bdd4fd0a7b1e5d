package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/vulnpipe/internal/ai"
	"github.com/hakim/vulnpipe/internal/config"
	"github.com/hakim/vulnpipe/internal/logger"
	"github.com/hakim/vulnpipe/internal/models"
	"github.com/hakim/vulnpipe/internal/portscan"
	"github.com/hakim/vulnpipe/internal/tools"
	"github.com/hakim/vulnpipe/internal/webscan"
)

type fakeStore struct {
	mu    sync.Mutex
	saves []models.ScanMeta
}

func (s *fakeStore) SaveScan(meta *models.ScanMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, *meta)
	return nil
}

func (s *fakeStore) lastSave(t *testing.T) models.ScanMeta {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.saves)
	return s.saves[len(s.saves)-1]
}

func scannedHost() models.Host {
	return models.Host{
		IP:    "10.0.0.1",
		State: "up",
		Ports: []models.Port{
			{
				Number:   80,
				Protocol: "tcp",
				State:    "open",
				Service:  &models.Service{Name: "http", Product: "nginx"},
				Scripts: []models.ScriptOutput{
					{ID: "http-vuln-check", Output: "VULNERABLE: CVE-2021-44228"},
				},
			},
		},
	}
}

func fakePortScan(hosts ...models.Host) func(context.Context, []string, portscan.Config, *logger.Logger, tools.NmapProgress) (*portscan.Result, error) {
	return func(ctx context.Context, targets []string, cfg portscan.Config, log *logger.Logger, onProgress tools.NmapProgress) (*portscan.Result, error) {
		openPorts := 0
		for _, h := range hosts {
			openPorts += len(h.Ports)
		}
		return &portscan.Result{Hosts: hosts, HostsUp: len(hosts), OpenPorts: openPorts}, nil
	}
}

func fakeWebScan(findings ...models.WebFinding) func(context.Context, []webscan.WebTarget, webscan.Config, *logger.Logger, func(done, total int)) (*webscan.Result, error) {
	return func(ctx context.Context, targets []webscan.WebTarget, cfg webscan.Config, log *logger.Logger, onProgress func(done, total int)) (*webscan.Result, error) {
		return &webscan.Result{Findings: findings, Total: len(targets), Succeeded: len(targets)}, nil
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ScanDir = t.TempDir()
	cfg.Enrich.EPSSEnabled = false
	cfg.Enrich.NVDEnabled = false
	cfg.AI.Enabled = false
	return cfg
}

func TestRunCompletesAllPhases(t *testing.T) {
	cfg := testConfig(t)
	cfg.Enrich.EPSSEnabled = true
	cfg.AI.Enabled = true

	store := &fakeStore{}
	orch := New(cfg, store, nil)
	orch.Drivers.PortScan = fakePortScan(scannedHost())
	orch.Drivers.WebScan = fakeWebScan(models.WebFinding{
		Host:        "10.0.0.1",
		Port:        80,
		Scheme:      "http",
		Description: "BIG-IP iControl REST vulnerable to CVE-2022-1388",
		Severity:    models.SeverityHigh,
	})
	orch.Drivers.Enrich = func(ctx context.Context, vulns []models.Vulnerability, log *logger.Logger) []models.Vulnerability {
		out := make([]models.Vulnerability, len(vulns))
		copy(out, vulns)
		for i := range out {
			out[i].Enrichment.ExploitAvailable = true
		}
		return out
	}
	orch.Drivers.Analyze = func(ctx context.Context, sc *models.ScanContext) (string, error) {
		return "canned analysis", nil
	}

	sc, err := orch.Run(context.Background(), []string{"10.0.0.1"})
	require.NoError(t, err)
	require.NotNil(t, sc)

	assert.Equal(t, models.StatusComplete, sc.Status)
	assert.Equal(t, []string{
		"init", "primary-scan", "secondary-scan", "extract",
		"enrich", "score", "correlate", "analysis",
	}, sc.PhasesRun)
	assert.Empty(t, sc.PhaseErrors)

	assert.Equal(t, 1, sc.HostCount)
	assert.Len(t, sc.Vulnerabilities, 2)
	for _, v := range sc.Vulnerabilities {
		assert.True(t, v.Enrichment.ExploitAvailable)
	}
	assert.Len(t, sc.Scored, 2)
	assert.NotEmpty(t, sc.Recommendations)
	assert.Equal(t, "canned analysis", sc.AIAnalysis)
	assert.NotNil(t, sc.CompletedAt)

	// One checkpoint per phase plus the terminal one.
	last := store.lastSave(t)
	assert.Equal(t, sc.ID, last.ID)
	assert.Equal(t, models.StatusComplete, last.Status)
	assert.Equal(t, 2, last.VulnCount)
	store.mu.Lock()
	assert.GreaterOrEqual(t, len(store.saves), len(sc.PhasesRun))
	store.mu.Unlock()
}

func TestRunPrimaryScanFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	store := &fakeStore{}
	orch := New(cfg, store, nil)
	orch.Drivers.PortScan = func(ctx context.Context, targets []string, pcfg portscan.Config, log *logger.Logger, onProgress tools.NmapProgress) (*portscan.Result, error) {
		return nil, fmt.Errorf("nmap exited with status 1")
	}

	sc, err := orch.Run(context.Background(), []string{"10.0.0.1"})
	require.Error(t, err)
	require.NotNil(t, sc)

	assert.Equal(t, models.StatusFailed, sc.Status)
	assert.Contains(t, err.Error(), "primary scan")
	assert.Contains(t, sc.PhaseErrors["primary-scan"], "nmap exited")
	assert.Equal(t, []string{"init", "primary-scan"}, sc.PhasesRun)
	assert.Equal(t, models.StatusFailed, store.lastSave(t).Status)
}

func TestRunIsolatesPanickingPhase(t *testing.T) {
	cfg := testConfig(t)
	orch := New(cfg, nil, nil)
	orch.Drivers.PortScan = fakePortScan(scannedHost())
	orch.Drivers.WebScan = func(ctx context.Context, targets []webscan.WebTarget, wcfg webscan.Config, log *logger.Logger, onProgress func(done, total int)) (*webscan.Result, error) {
		panic("nikto wrapper blew up")
	}

	sc, err := orch.Run(context.Background(), []string{"10.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusComplete, sc.Status)
	assert.Contains(t, sc.PhaseErrors["secondary-scan"], "panicked")
	assert.Contains(t, sc.PhaseErrors["secondary-scan"], "nikto wrapper blew up")

	// Downstream phases still ran on the primary results.
	assert.Contains(t, sc.PhasesRun, "score")
	assert.Len(t, sc.Vulnerabilities, 1)
}

func TestRunSkipsDisabledPhases(t *testing.T) {
	cfg := testConfig(t)
	cfg.Nikto.Enabled = false

	orch := New(cfg, nil, nil)
	orch.Drivers.PortScan = fakePortScan(scannedHost())
	orch.Drivers.WebScan = func(ctx context.Context, targets []webscan.WebTarget, wcfg webscan.Config, log *logger.Logger, onProgress func(done, total int)) (*webscan.Result, error) {
		t.Fatal("web scan must not run when disabled")
		return nil, nil
	}

	sc, err := orch.Run(context.Background(), []string{"10.0.0.1"})
	require.NoError(t, err)

	assert.NotContains(t, sc.PhasesRun, "secondary-scan")
	assert.NotContains(t, sc.PhasesRun, "enrich")
	assert.NotContains(t, sc.PhasesRun, "analysis")
	assert.Contains(t, sc.PhasesRun, "extract")
	assert.Contains(t, sc.PhasesRun, "correlate")
}

func TestRunAnalyzeNotConfiguredIsNotAnError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Nikto.Enabled = false
	cfg.AI.Enabled = true

	orch := New(cfg, nil, nil)
	orch.Drivers.PortScan = fakePortScan(scannedHost())
	orch.Drivers.Analyze = func(ctx context.Context, sc *models.ScanContext) (string, error) {
		return "", ai.ErrNotConfigured
	}

	sc, err := orch.Run(context.Background(), []string{"10.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusComplete, sc.Status)
	assert.Contains(t, sc.PhasesRun, "analysis")
	assert.NotContains(t, sc.PhaseErrors, "analysis")
	assert.Empty(t, sc.AIAnalysis)
}

func TestRunAnalyzeErrorDegrades(t *testing.T) {
	cfg := testConfig(t)
	cfg.Nikto.Enabled = false
	cfg.AI.Enabled = true

	orch := New(cfg, nil, nil)
	orch.Drivers.PortScan = fakePortScan(scannedHost())
	orch.Drivers.Analyze = func(ctx context.Context, sc *models.ScanContext) (string, error) {
		return "", errors.New("api quota exceeded")
	}

	sc, err := orch.Run(context.Background(), []string{"10.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusComplete, sc.Status)
	assert.Contains(t, sc.PhaseErrors["analysis"], "api quota exceeded")
}

func TestRunCancelledMidScanReturnsPartialContext(t *testing.T) {
	cfg := testConfig(t)
	store := &fakeStore{}
	orch := New(cfg, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	orch.Drivers.PortScan = func(ctx context.Context, targets []string, pcfg portscan.Config, log *logger.Logger, onProgress tools.NmapProgress) (*portscan.Result, error) {
		// Simulates an interrupt arriving while nmap is running.
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}

	sc, err := orch.Run(ctx, []string{"10.0.0.1"})
	require.Error(t, err)
	require.NotNil(t, sc)

	assert.Equal(t, models.StatusFailed, sc.Status)
	assert.Contains(t, sc.PhaseErrors["primary-scan"], "context canceled")
	assert.NotNil(t, sc.CompletedAt)
	assert.NotEmpty(t, sc.ScanDir)
	assert.Equal(t, models.StatusFailed, store.lastSave(t).Status)
}

func TestRunRejectsInvalidTargets(t *testing.T) {
	orch := New(testConfig(t), nil, nil)

	sc, err := orch.Run(context.Background(), []string{"not a target!!"})
	require.Error(t, err)
	assert.Nil(t, sc)

	sc, err = orch.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, sc)
}

func TestRunReportsPhaseProgress(t *testing.T) {
	cfg := testConfig(t)
	cfg.Nikto.Enabled = false

	orch := New(cfg, nil, nil)
	orch.Drivers.PortScan = fakePortScan(scannedHost())

	var mu sync.Mutex
	var phases []Phase
	orch.Progress = func(ev ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Message == "started" {
			phases = append(phases, ev.Phase)
		}
	}

	_, err := orch.Run(context.Background(), []string{"10.0.0.1"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{
		PhaseInit, PhasePrimaryScan, PhaseExtract, PhaseScore, PhaseCorrelate,
	}, phases)
}
