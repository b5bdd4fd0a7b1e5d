package report

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hakim/vulnpipe/internal/models"
)

// WriteScanReport renders the full scan report as markdown and writes
// it to outputPath.
func WriteScanReport(sc *models.ScanContext, outputPath string) error {
	var b strings.Builder

	b.WriteString("# Vulnerability Scan Report\n\n")
	b.WriteString(fmt.Sprintf("**Target:** %s\n", sc.Target))
	if len(sc.Targets) > 1 {
		b.WriteString(fmt.Sprintf("**Targets:** %s\n", strings.Join(sc.Targets, ", ")))
	}
	b.WriteString(fmt.Sprintf("**Scan ID:** %s\n", sc.ID))
	b.WriteString(fmt.Sprintf("**Date:** %s\n", sc.StartedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("**Status:** %s\n", sc.Status))
	b.WriteString(fmt.Sprintf("**Hosts up:** %d | **Vulnerabilities:** %d | **Web findings:** %d\n\n",
		sc.HostCount, len(sc.Vulnerabilities), len(sc.WebFindings)))

	writeHostSection(&b, sc.Hosts)
	writeVulnSection(&b, sc.Scored)
	writeChainSection(&b, sc.AttackChains, sc.HighRiskHosts)
	writeRecommendationSection(&b, sc.Recommendations)

	if sc.AIAnalysis != "" {
		b.WriteString("## Analysis\n\n")
		b.WriteString(sc.AIAnalysis)
		b.WriteString("\n\n")
	}

	writePhaseErrorSection(&b, sc.PhaseErrors)

	if err := os.WriteFile(outputPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("writing report to %s: %w", outputPath, err)
	}
	return nil
}

func writeHostSection(b *strings.Builder, hosts []models.Host) {
	b.WriteString("## Host Inventory\n\n")
	if len(hosts) == 0 {
		b.WriteString("No hosts up.\n\n")
		return
	}

	for _, host := range hosts {
		name := host.Hostname
		if name == "" {
			name = "unknown"
		}
		b.WriteString(fmt.Sprintf("### %s (%s)\n\n", host.IP, name))
		if host.OSGuess != nil {
			b.WriteString(fmt.Sprintf("**OS:** %s (%d%% accuracy)\n\n", host.OSGuess.Name, host.OSGuess.Accuracy))
		}

		if len(host.Ports) == 0 {
			b.WriteString("No open ports.\n\n")
			continue
		}
		b.WriteString("| Port | Protocol | Service | Product | Version |\n")
		b.WriteString("|------|----------|---------|---------|----------|\n")
		for _, port := range host.Ports {
			product, version := "-", "-"
			if port.Service != nil {
				if port.Service.Product != "" {
					product = port.Service.Product
				}
				if port.Service.Version != "" {
					version = port.Service.Version
				}
			}
			b.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
				port.Number, port.Protocol, orDash(port.ServiceName()), product, version))
		}
		b.WriteString("\n")
	}
}

func writeVulnSection(b *strings.Builder, scored []models.ScoredVulnerability) {
	b.WriteString("## Prioritized Vulnerabilities\n\n")
	if len(scored) == 0 {
		b.WriteString("None found.\n\n")
		return
	}

	b.WriteString("| CVE | Host | Port | Service | CVSS | EPSS | Score | Risk |\n")
	b.WriteString("|-----|------|------|---------|------|------|-------|------|\n")
	for _, v := range scored {
		b.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s | %s | %.1f | %s |\n",
			v.CVEID, v.Host, v.Port, orDash(v.Service),
			formatFloat(v.Enrichment.CVSSScore, "%.1f"),
			formatFloat(v.Enrichment.EPSSScore, "%.3f"),
			v.PriorityScore, v.RiskLevel))
	}
	b.WriteString("\n")
}

func writeChainSection(b *strings.Builder, chains []models.AttackChain, highRisk []string) {
	b.WriteString("## Attack Chains\n\n")
	if len(chains) == 0 {
		b.WriteString("None identified.\n")
	} else {
		for _, chain := range chains {
			b.WriteString(fmt.Sprintf("- **%s** on %s: %s (%s risk)\n",
				chain.Type, chain.Host, strings.Join(chain.CVEIDs, " then "), chain.Risk))
			b.WriteString(fmt.Sprintf("  %s\n", chain.Rationale))
		}
	}
	b.WriteString("\n")

	if len(highRisk) > 0 {
		b.WriteString("## High-Risk Hosts\n\n")
		for _, host := range highRisk {
			b.WriteString(fmt.Sprintf("- %s\n", host))
		}
		b.WriteString("\n")
	}
}

func writeRecommendationSection(b *strings.Builder, recs []models.Recommendation) {
	b.WriteString("## Recommendations\n\n")
	if len(recs) == 0 {
		b.WriteString("None.\n\n")
		return
	}

	for i, rec := range recs {
		b.WriteString(fmt.Sprintf("%d. **%s** (score %.1f, %s): %s\n", i+1, rec.CVEID, rec.Score, rec.Severity, rec.Action))
		b.WriteString(fmt.Sprintf("   %s\n", rec.Rationale))
	}
	b.WriteString("\n")
}

func writePhaseErrorSection(b *strings.Builder, errs map[string]string) {
	if len(errs) == 0 {
		return
	}
	phases := make([]string, 0, len(errs))
	for phase := range errs {
		phases = append(phases, phase)
	}
	sort.Strings(phases)

	b.WriteString("## Degraded Phases\n\n")
	for _, phase := range phases {
		b.WriteString(fmt.Sprintf("- **%s**: %s\n", phase, errs[phase]))
	}
	b.WriteString("\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatFloat(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
