package vulnscan

import (
	"regexp"
	"strings"

	"github.com/hakim/vulnpipe/internal/models"
)

// cveRe matches well-formed CVE identifiers. Malformed ids (bad year
// width, missing sequence) do not match and are silently ignored.
var cveRe = regexp.MustCompile(`CVE-\d{4}-\d+`)

const descriptionLimit = 200

// Extract pulls CVE identifiers out of both drivers' outputs: detection
// script results from the primary scan and finding descriptions from the
// web scan. One Vulnerability is emitted per (identifier, host) pair;
// duplicates are resolved by Dedupe.
func Extract(hosts []models.Host, findings []models.WebFinding) []models.Vulnerability {
	var vulns []models.Vulnerability

	for _, host := range hosts {
		for _, port := range host.Ports {
			for _, script := range port.Scripts {
				if !isVulnScript(script.ID) {
					continue
				}
				for _, cve := range cveRe.FindAllString(script.Output, -1) {
					vulns = append(vulns, models.Vulnerability{
						CVEID:   cve,
						Host:    host.IP,
						Port:    port.Number,
						Service: port.ServiceName(),
						Source:  models.SourcePrimaryScript,
					})
				}
			}
		}
	}

	for _, finding := range findings {
		for _, cve := range cveRe.FindAllString(finding.Description, -1) {
			vulns = append(vulns, models.Vulnerability{
				CVEID:       cve,
				Host:        finding.Host,
				Port:        finding.Port,
				Service:     "http",
				Source:      models.SourceSecondaryScan,
				Description: truncateDescription(finding.Description),
			})
		}
	}

	return Dedupe(vulns)
}

// Dedupe drops later duplicates by (CVE id, host), preserving insertion
// order. Idempotent: running it over an already-deduplicated list is a
// no-op.
func Dedupe(vulns []models.Vulnerability) []models.Vulnerability {
	type key struct {
		cveID string
		host  string
	}

	seen := make(map[key]bool, len(vulns))
	out := make([]models.Vulnerability, 0, len(vulns))
	for _, v := range vulns {
		k := key{v.CVEID, v.Host}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// isVulnScript reports whether a detection script's id marks it as
// vulnerability-related.
func isVulnScript(id string) bool {
	lower := strings.ToLower(id)
	return strings.Contains(lower, "cve") || strings.Contains(lower, "vuln")
}

func truncateDescription(s string) string {
	runes := []rune(s)
	if len(runes) <= descriptionLimit {
		return s
	}
	return string(runes[:descriptionLimit])
}
