package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hakim/vulnpipe/internal/models"
)

// NotifyConfig configures the scan-completion webhook.
type NotifyConfig struct {
	WebhookURL string
}

type completionPayload struct {
	ScanID          string            `json:"scan_id"`
	Target          string            `json:"target"`
	Status          string            `json:"status"`
	HostsUp         int               `json:"hosts_up"`
	Vulnerabilities int               `json:"vulnerabilities"`
	HighRiskHosts   []string          `json:"high_risk_hosts,omitempty"`
	PhasesRun       []string          `json:"phases_run"`
	PhaseErrors     map[string]string `json:"phase_errors,omitempty"`
	ElapsedSeconds  float64           `json:"elapsed_seconds"`
}

// SendCompletion posts the scan outcome as JSON. A nil config or empty
// URL is a no-op; errors are returned for the caller to log, never to
// fail the run on.
func (n *NotifyConfig) SendCompletion(sc *models.ScanContext, elapsed time.Duration) error {
	if n == nil || n.WebhookURL == "" {
		return nil
	}

	body, err := json.Marshal(completionPayload{
		ScanID:          sc.ID,
		Target:          sc.Target,
		Status:          string(sc.Status),
		HostsUp:         sc.HostCount,
		Vulnerabilities: sc.VulnCount,
		HighRiskHosts:   sc.HighRiskHosts,
		PhasesRun:       sc.PhasesRun,
		PhaseErrors:     sc.PhaseErrors,
		ElapsedSeconds:  elapsed.Seconds(),
	})
	if err != nil {
		return fmt.Errorf("notify: marshaling payload: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(n.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: posting to %s: %w", n.WebhookURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
