package vulnscan

import (
	"fmt"
	"strings"

	"github.com/hakim/vulnpipe/internal/models"
)

// ChainTypeRCEToPrivesc links a remotely exploitable vulnerability with
// a privilege-escalation one on the same host.
const ChainTypeRCEToPrivesc = "rce_to_privesc"

// Correlate derives attack chains from the scored vulnerability list.
// Per host, at most one chain per pattern type is emitted: the first
// remote-exploitable match paired with the first privilege-escalation
// match, in list order.
func Correlate(scored []models.ScoredVulnerability) []models.AttackChain {
	type hostVulns struct {
		remote  *models.ScoredVulnerability
		privesc *models.ScoredVulnerability
	}

	byHost := make(map[string]*hostVulns)
	var hostOrder []string

	for i := range scored {
		v := &scored[i]
		hv, ok := byHost[v.Host]
		if !ok {
			hv = &hostVulns{}
			byHost[v.Host] = hv
			hostOrder = append(hostOrder, v.Host)
		}
		if hv.remote == nil && isRemoteExploitable(v.Vulnerability) {
			hv.remote = v
		}
		if hv.privesc == nil && isPrivilegeEscalation(v.Vulnerability) {
			hv.privesc = v
		}
	}

	var chains []models.AttackChain
	for _, host := range hostOrder {
		hv := byHost[host]
		if hv.remote == nil || hv.privesc == nil {
			continue
		}
		chains = append(chains, models.AttackChain{
			Type:   ChainTypeRCEToPrivesc,
			Host:   host,
			CVEIDs: []string{hv.remote.CVEID, hv.privesc.CVEID},
			Rationale: fmt.Sprintf(
				"%s is remotely exploitable and %s enables privilege escalation on the same host",
				hv.remote.CVEID, hv.privesc.CVEID),
			Risk: models.RiskCritical,
		})
	}

	return chains
}

// HighRiskHosts flags hosts with at least 2 critical vulnerabilities, or
// at least 1 critical and 2 high. Order follows first appearance in the
// scored list.
func HighRiskHosts(scored []models.ScoredVulnerability) []string {
	type counts struct {
		critical int
		high     int
	}

	byHost := make(map[string]*counts)
	var hostOrder []string

	for _, v := range scored {
		c, ok := byHost[v.Host]
		if !ok {
			c = &counts{}
			byHost[v.Host] = c
			hostOrder = append(hostOrder, v.Host)
		}
		switch v.RiskLevel {
		case models.RiskCritical:
			c.critical++
		case models.RiskHigh:
			c.high++
		}
	}

	var flagged []string
	for _, host := range hostOrder {
		c := byHost[host]
		if c.critical >= 2 || (c.critical >= 1 && c.high >= 2) {
			flagged = append(flagged, host)
		}
	}
	return flagged
}

// isRemoteExploitable matches the remote indicator: the description
// mentions "remote" or the CVSS base score is 9.0 or higher.
func isRemoteExploitable(v models.Vulnerability) bool {
	if strings.Contains(strings.ToLower(v.Description), "remote") {
		return true
	}
	return v.Enrichment.CVSSScore != nil && *v.Enrichment.CVSSScore >= 9.0
}

// isPrivilegeEscalation matches the privilege-escalation indicator.
func isPrivilegeEscalation(v models.Vulnerability) bool {
	return strings.Contains(strings.ToLower(v.Description), "privilege")
}
