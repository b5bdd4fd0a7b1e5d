package tools

import (
	"context"
	"regexp"
	"strings"

	"github.com/hakim/vulnpipe/internal/models"
)

// NiktoFinding is one parsed line of nikto output, before it is attached
// to the target it was observed on.
type NiktoFinding struct {
	Type        string
	Description string
	Severity    models.Severity
}

// Nikto prints findings as "+ <type>: <description>" lines
var niktoFindingRe = regexp.MustCompile(`\+\s+([^:]+):\s+(.+)`)

// Severity keywords, scanned in priority order: the first bucket with a
// match wins.
var severityKeywords = []struct {
	severity models.Severity
	words    []string
}{
	{models.SeverityHigh, []string{"critical", "dangerous", "exploit"}},
	{models.SeverityMedium, []string{"vulnerable", "security", "risk"}},
	{models.SeverityLow, []string{"warning", "outdated"}},
}

// RunNikto executes one nikto scan against url, writing the HTML report
// to outFile and returning captured stdout for line parsing.
func RunNikto(ctx context.Context, url, outFile, binary string) (string, error) {
	if binary == "" {
		binary = "nikto"
	}

	args := []string{
		"-h", url,
		"-o", outFile,
		"-Format", "htm",
		"-nointeractive",
	}

	result, err := RunTool(ctx, binary, args...)
	if err != nil {
		return "", err
	}
	return string(result.Stdout), nil
}

// ParseNiktoOutput extracts findings from raw nikto stdout.
func ParseNiktoOutput(output string) []NiktoFinding {
	var findings []NiktoFinding

	for _, line := range strings.Split(output, "\n") {
		m := niktoFindingRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		desc := strings.TrimSpace(m[2])
		findings = append(findings, NiktoFinding{
			Type:        strings.TrimSpace(m[1]),
			Description: desc,
			Severity:    ClassifySeverity(desc),
		})
	}

	return findings
}

// ClassifySeverity assigns a severity by keyword heuristic. Unmatched
// descriptions are informational.
func ClassifySeverity(description string) models.Severity {
	lower := strings.ToLower(description)
	for _, bucket := range severityKeywords {
		for _, word := range bucket.words {
			if strings.Contains(lower, word) {
				return bucket.severity
			}
		}
	}
	return models.SeverityInfo
}
