package vulnscan

import (
	"fmt"
	"strings"
	"time"

	"github.com/hakim/vulnpipe/internal/models"
)

// Recommend turns the top-N scored vulnerabilities into remediation
// recommendations. The input must already be in ranking order (Score
// guarantees this); ties were broken by ascending CVE id there.
func Recommend(scored []models.ScoredVulnerability, topN int) []models.Recommendation {
	if topN <= 0 || topN > len(scored) {
		topN = len(scored)
	}

	recs := make([]models.Recommendation, 0, topN)
	for _, v := range scored[:topN] {
		recs = append(recs, models.Recommendation{
			CVEID:     v.CVEID,
			Severity:  v.RiskLevel,
			Score:     v.PriorityScore,
			Action:    actionFor(v.RiskLevel),
			Rationale: rationaleFor(v),
		})
	}
	return recs
}

func actionFor(risk models.RiskLevel) string {
	switch risk {
	case models.RiskCritical:
		return "Patch immediately"
	case models.RiskHigh:
		return "Patch within 7 days"
	case models.RiskMedium:
		return "Schedule remediation"
	default:
		return "Track in backlog"
	}
}

// rationaleFor names the factors that drove the score.
func rationaleFor(v models.ScoredVulnerability) string {
	var factors []string

	if v.Enrichment.CVSSScore != nil && *v.Enrichment.CVSSScore >= 7.0 {
		factors = append(factors, fmt.Sprintf("high CVSS (%.1f)", *v.Enrichment.CVSSScore))
	}
	if v.Enrichment.ExploitAvailable {
		factors = append(factors, "known exploit available")
	}
	if v.Enrichment.EPSSScore != nil && *v.Enrichment.EPSSScore >= 0.5 {
		factors = append(factors, fmt.Sprintf("high EPSS (%.2f)", *v.Enrichment.EPSSScore))
	}
	if strings.Contains(strings.ToLower(v.Service), "http") {
		factors = append(factors, "exposed web service")
	}
	if ageFactor(v.Enrichment.PublishedDate, time.Now()) >= 0.9 {
		factors = append(factors, "recently published")
	}

	if len(factors) == 0 {
		return fmt.Sprintf("%s on %s ranked by composite priority score", v.CVEID, v.Host)
	}
	return fmt.Sprintf("%s on %s: %s", v.CVEID, v.Host, strings.Join(factors, ", "))
}
