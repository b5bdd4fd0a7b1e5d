package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/vulnpipe/internal/models"
)

func fptr(v float64) *float64 { return &v }

func reportScanContext() *models.ScanContext {
	sc := models.NewScanContext([]string{"10.0.0.0/24", "example.com"})
	sc.Status = models.StatusComplete
	sc.HostCount = 1
	sc.Hosts = []models.Host{
		{
			IP:       "10.0.0.5",
			Hostname: "web01",
			State:    "up",
			OSGuess:  &models.OSGuess{Name: "Linux 5.4", Accuracy: 96},
			Ports: []models.Port{
				{Number: 443, Protocol: "tcp", State: "open",
					Service: &models.Service{Name: "https", Product: "nginx", Version: "1.18.0"}},
				{Number: 22, Protocol: "tcp", State: "open",
					Service: &models.Service{Name: "ssh"}},
			},
		},
	}
	sc.Vulnerabilities = []models.Vulnerability{
		{CVEID: "CVE-2021-44228", Host: "10.0.0.5", Port: 443, Service: "https", Source: models.SourcePrimaryScript},
	}
	sc.Scored = []models.ScoredVulnerability{
		{
			Vulnerability: models.Vulnerability{
				CVEID: "CVE-2021-44228", Host: "10.0.0.5", Port: 443, Service: "https",
				Enrichment: models.Enrichment{CVSSScore: fptr(10.0), EPSSScore: fptr(0.944)},
			},
			PriorityScore: 92.5,
			RiskLevel:     models.RiskCritical,
		},
	}
	sc.AttackChains = []models.AttackChain{
		{
			Type:      "rce_to_privesc",
			Host:      "10.0.0.5",
			CVEIDs:    []string{"CVE-2021-44228", "CVE-2021-4034"},
			Rationale: "Remote code execution followed by local privilege escalation",
			Risk:      models.RiskCritical,
		},
	}
	sc.HighRiskHosts = []string{"10.0.0.5"}
	sc.Recommendations = []models.Recommendation{
		{CVEID: "CVE-2021-44228", Severity: models.RiskCritical, Score: 92.5,
			Action: "Patch immediately", Rationale: "high CVSS (10.0)"},
	}
	sc.AIAnalysis = "The scanned segment exposes one critically vulnerable web server."
	sc.PhaseErrors["enrich"] = "epss endpoint unreachable"
	return sc
}

func TestWriteScanReport(t *testing.T) {
	sc := reportScanContext()
	path := filepath.Join(t.TempDir(), "scan_report.md")
	require.NoError(t, WriteScanReport(sc, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	report := string(data)

	assert.Contains(t, report, "# Vulnerability Scan Report")
	assert.Contains(t, report, "**Target:** 10.0.0.0/24")
	assert.Contains(t, report, "**Targets:** 10.0.0.0/24, example.com")
	assert.Contains(t, report, "**Scan ID:** "+sc.ID)
	assert.Contains(t, report, "**Status:** complete")

	assert.Contains(t, report, "### 10.0.0.5 (web01)")
	assert.Contains(t, report, "**OS:** Linux 5.4 (96% accuracy)")
	assert.Contains(t, report, "| 443 | tcp | https | nginx | 1.18.0 |")
	assert.Contains(t, report, "| 22 | tcp | ssh | - | - |")

	assert.Contains(t, report, "| CVE-2021-44228 | 10.0.0.5 | 443 | https | 10.0 | 0.944 | 92.5 | critical |")

	assert.Contains(t, report, "**rce_to_privesc** on 10.0.0.5: CVE-2021-44228 then CVE-2021-4034 (critical risk)")
	assert.Contains(t, report, "## High-Risk Hosts")
	assert.Contains(t, report, "- 10.0.0.5")

	assert.Contains(t, report, "1. **CVE-2021-44228** (score 92.5, critical): Patch immediately")
	assert.Contains(t, report, "## Analysis")
	assert.Contains(t, report, "critically vulnerable web server")

	assert.Contains(t, report, "## Degraded Phases")
	assert.Contains(t, report, "- **enrich**: epss endpoint unreachable")
}

func TestWriteScanReportEmptySections(t *testing.T) {
	sc := models.NewScanContext([]string{"10.0.0.1"})
	sc.Status = models.StatusComplete
	path := filepath.Join(t.TempDir(), "scan_report.md")
	require.NoError(t, WriteScanReport(sc, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	report := string(data)

	assert.Contains(t, report, "No hosts up.")
	assert.Contains(t, report, "None found.")
	assert.Contains(t, report, "None identified.")
	assert.NotContains(t, report, "**Targets:**")
	assert.NotContains(t, report, "## High-Risk Hosts")
	assert.NotContains(t, report, "## Analysis")
	assert.NotContains(t, report, "## Degraded Phases")
}

func TestWriteScanReportMissingEnrichmentRendersDash(t *testing.T) {
	sc := models.NewScanContext([]string{"10.0.0.1"})
	sc.Scored = []models.ScoredVulnerability{
		{
			Vulnerability: models.Vulnerability{CVEID: "CVE-2022-1234", Host: "10.0.0.1", Port: 80},
			PriorityScore: 12.0,
			RiskLevel:     models.RiskLow,
		},
	}
	path := filepath.Join(t.TempDir(), "scan_report.md")
	require.NoError(t, WriteScanReport(sc, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "| CVE-2022-1234 | 10.0.0.1 | 80 | - | - | - | 12.0 | low |")
}

func TestWriteScanReportBadPath(t *testing.T) {
	sc := models.NewScanContext([]string{"10.0.0.1"})
	err := WriteScanReport(sc, filepath.Join(t.TempDir(), "missing", "report.md"))
	require.Error(t, err)
}
