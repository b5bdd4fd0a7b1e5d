package vulnscan

import (
	"sort"
	"strings"
	"time"

	"github.com/hakim/vulnpipe/internal/models"
)

// Weights are the scoring coefficients for the five priority factors.
// Each factor is normalized to [0,1] before weighting; the weighted sum
// is clipped to [0,1] and scaled to a 0-100 priority score.
type Weights struct {
	CVSS     float64
	EPSS     float64
	Exploit  float64
	Exposure float64
	Age      float64
}

// DefaultWeights returns the standard factor weights.
func DefaultWeights() Weights {
	return Weights{
		CVSS:     0.35,
		EPSS:     0.25,
		Exploit:  0.20,
		Exposure: 0.10,
		Age:      0.10,
	}
}

// Remotely exploitable service classes, weighted below web services
var remoteServices = map[string]bool{
	"ssh": true, "ftp": true, "smb": true, "telnet": true, "rdp": true,
	"mysql": true, "postgresql": true, "ms-sql-s": true, "oracle": true,
	"mongodb": true, "redis": true,
}

// Score computes the priority score and risk bucket for every
// vulnerability. Missing enrichment factors contribute 0. Output is
// sorted by descending score, ties broken by ascending CVE id, so every
// downstream consumer sees a stable ranking.
func Score(vulns []models.Vulnerability, w Weights) []models.ScoredVulnerability {
	scored := make([]models.ScoredVulnerability, 0, len(vulns))
	now := time.Now()

	for _, v := range vulns {
		raw := w.CVSS*cvssFactor(v) +
			w.EPSS*epssFactor(v) +
			w.Exploit*exploitFactor(v) +
			w.Exposure*exposureFactor(v) +
			w.Age*ageFactor(v.Enrichment.PublishedDate, now)

		score := 100 * clip(raw, 0, 1)

		scored = append(scored, models.ScoredVulnerability{
			Vulnerability: v,
			PriorityScore: score,
			RiskLevel:     riskLevel(score),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].PriorityScore != scored[j].PriorityScore {
			return scored[i].PriorityScore > scored[j].PriorityScore
		}
		return scored[i].CVEID < scored[j].CVEID
	})

	return scored
}

// riskLevel buckets a priority score: >=90 critical, >=70 high,
// >=40 medium, else low.
func riskLevel(score float64) models.RiskLevel {
	switch {
	case score >= 90:
		return models.RiskCritical
	case score >= 70:
		return models.RiskHigh
	case score >= 40:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func cvssFactor(v models.Vulnerability) float64 {
	if v.Enrichment.CVSSScore == nil {
		return 0
	}
	return clip(*v.Enrichment.CVSSScore/10, 0, 1)
}

func epssFactor(v models.Vulnerability) float64 {
	if v.Enrichment.EPSSScore == nil {
		return 0
	}
	return clip(*v.Enrichment.EPSSScore, 0, 1)
}

func exploitFactor(v models.Vulnerability) float64 {
	if v.Enrichment.ExploitAvailable {
		return 1
	}
	return 0
}

// exposureFactor rates how reachable the vulnerable service is: web
// services are fully exposed, classic remote services most of the way,
// anything with a known port halfway, unknown placement not at all.
func exposureFactor(v models.Vulnerability) float64 {
	service := strings.ToLower(v.Service)
	switch {
	case strings.Contains(service, "http"):
		return 1.0
	case remoteServices[service]:
		return 0.7
	case v.Port > 0:
		return 0.5
	default:
		return 0
	}
}

// ageFactor favors recently published CVEs: 1.0 within the first year,
// decaying linearly to 0 at five years. Unknown publication dates
// contribute 0.
func ageFactor(published string, now time.Time) float64 {
	t, ok := parsePublished(published)
	if !ok {
		return 0
	}
	years := now.Sub(t).Hours() / (24 * 365)
	return clip((5-years)/4, 0, 1)
}

// parsePublished accepts the date layouts the enrichment sources emit.
func parsePublished(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
