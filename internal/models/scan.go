package models

import (
	"time"

	"github.com/google/uuid"
)

// RawFiles records where the primary scanner wrote its three output formats
type RawFiles struct {
	Normal string `json:"normal,omitempty"`
	Grep   string `json:"grep,omitempty"`
	XML    string `json:"xml,omitempty"`
}

// ScanMeta contains metadata about a scan, persisted to the database
type ScanMeta struct {
	ID          string     `json:"id"`
	Target      string     `json:"target"`
	Targets     []string   `json:"targets,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      ScanStatus `json:"status"`
	ScanDir     string     `json:"scan_dir"`
	PhasesRun   []string   `json:"phases_run,omitempty"`
	HostCount   int        `json:"host_count"`
	VulnCount   int        `json:"vuln_count"`
}

// ScanContext is the single mutable aggregate for one pipeline run.
// The orchestrator owns it exclusively: each phase's results are merged
// in sequentially, and the struct is treated as frozen once Run returns.
type ScanContext struct {
	ScanMeta

	Hosts           []Host                `json:"hosts,omitempty"`
	WebFindings     []WebFinding          `json:"web_findings,omitempty"`
	Vulnerabilities []Vulnerability       `json:"vulnerabilities,omitempty"`
	Scored          []ScoredVulnerability `json:"scored,omitempty"`
	Recommendations []Recommendation      `json:"recommendations,omitempty"`
	AttackChains    []AttackChain         `json:"attack_chains,omitempty"`
	HighRiskHosts   []string              `json:"high_risk_hosts,omitempty"`
	AIAnalysis      string                `json:"ai_analysis,omitempty"`
	RawFiles        RawFiles              `json:"raw_files,omitempty"`

	// PhaseErrors maps phase name to error message for every phase that
	// degraded. A failed primary scan additionally sets Status failed.
	PhaseErrors map[string]string `json:"phase_errors,omitempty"`
}

// NewScanContext creates a run aggregate with initialized metadata.
// Target holds the first target for display and indexing; Targets keeps
// the full list.
func NewScanContext(targets []string) *ScanContext {
	target := ""
	if len(targets) > 0 {
		target = targets[0]
	}
	return &ScanContext{
		ScanMeta: ScanMeta{
			ID:        uuid.New().String(),
			Target:    target,
			Targets:   targets,
			StartedAt: time.Now(),
			Status:    StatusPending,
			PhasesRun: []string{},
		},
		PhaseErrors: make(map[string]string),
	}
}
