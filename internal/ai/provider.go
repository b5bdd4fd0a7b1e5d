package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hakim/vulnpipe/internal/models"
)

// ErrNotConfigured is returned by a provider that has no credentials or
// endpoint to work with. Callers treat it as "skip analysis", not as a
// run failure.
var ErrNotConfigured = errors.New("ai provider not configured")

// Provider produces a free-text analysis of a completed scan.
// Validate reports whether the provider is usable before any scan data
// is sent to it; ErrNotConfigured means "skip", anything else is a
// reachability problem worth logging.
type Provider interface {
	Name() string
	Validate(ctx context.Context) error
	Analyze(ctx context.Context, sc *models.ScanContext, prompt string) (string, error)
}

// NewProvider selects an implementation by configured provider name.
func NewProvider(provider, model, apiKey, baseURL string) (Provider, error) {
	switch provider {
	case "openai", "":
		return NewOpenAIProvider(model, apiKey, baseURL), nil
	case "ollama":
		return NewOllamaProvider(model, baseURL), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", provider)
	}
}

// DefaultPrompt is used when the configuration leaves the prompt empty.
const DefaultPrompt = `You are a penetration tester reviewing scan results. ` +
	`Summarize the most significant exposures, explain which hosts to focus on first and why, ` +
	`and suggest concrete next steps. Be specific and concise.`

// BuildSummary renders the scan context into the plain-text digest the
// providers attach to the prompt. Only findings relevant to triage are
// included to keep token usage bounded.
func BuildSummary(sc *models.ScanContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Scan of %s: %d hosts up, %d vulnerabilities.\n\n", sc.Target, len(sc.Hosts), len(sc.Vulnerabilities))

	for _, h := range sc.Hosts {
		fmt.Fprintf(&b, "Host %s", h.IP)
		if h.Hostname != "" {
			fmt.Fprintf(&b, " (%s)", h.Hostname)
		}
		if h.OSGuess != nil {
			fmt.Fprintf(&b, " [%s]", h.OSGuess.Name)
		}
		b.WriteString("\n")
		for _, p := range h.Ports {
			fmt.Fprintf(&b, "  %d/%s %s\n", p.Number, p.Protocol, p.ServiceName())
		}
	}

	if len(sc.Scored) > 0 {
		b.WriteString("\nTop vulnerabilities by priority:\n")
		limit := len(sc.Scored)
		if limit > 20 {
			limit = 20
		}
		for _, v := range sc.Scored[:limit] {
			fmt.Fprintf(&b, "  %s on %s:%d (%s, score %.1f)\n", v.CVEID, v.Host, v.Port, v.RiskLevel, v.PriorityScore)
		}
	}

	for _, chain := range sc.AttackChains {
		fmt.Fprintf(&b, "\nPossible attack chain on %s: %s (%s)\n", chain.Host, strings.Join(chain.CVEIDs, " -> "), chain.Rationale)
	}

	return b.String()
}
