package models

// Vulnerability is one CVE observed on one host, tagged with its origin
type Vulnerability struct {
	CVEID       string     `json:"cve_id"`
	Host        string     `json:"host"`
	Port        int        `json:"port,omitempty"`
	Service     string     `json:"service,omitempty"`
	Source      VulnSource `json:"source"`
	Description string     `json:"description,omitempty"`

	Enrichment Enrichment `json:"enrichment,omitempty"`
}

// Enrichment holds optional third-party data merged onto a vulnerability.
// Zero values mean "not enriched"; pointer fields distinguish a real 0.0
// score from an absent one.
type Enrichment struct {
	CVSSScore        *float64 `json:"cvss_score,omitempty"`
	CVSSSeverity     string   `json:"cvss_severity,omitempty"`
	EPSSScore        *float64 `json:"epss_score,omitempty"`
	EPSSPercentile   *float64 `json:"epss_percentile,omitempty"`
	ExploitAvailable bool     `json:"exploit_available,omitempty"`
	References       []string `json:"references,omitempty"`
	PublishedDate    string   `json:"published_date,omitempty"`
}

// ScoredVulnerability is a vulnerability with its computed priority
type ScoredVulnerability struct {
	Vulnerability
	PriorityScore float64   `json:"priority_score"`
	RiskLevel     RiskLevel `json:"risk_level"`
}

// AttackChain links vulnerabilities on one host into a compromise path
type AttackChain struct {
	Type      string    `json:"type"`
	Host      string    `json:"host"`
	CVEIDs    []string  `json:"cve_ids"`
	Rationale string    `json:"rationale"`
	Risk      RiskLevel `json:"risk"`
}

// Recommendation is one entry in the ranked remediation list
type Recommendation struct {
	CVEID     string    `json:"cve_id"`
	Severity  RiskLevel `json:"severity"`
	Score     float64   `json:"score"`
	Action    string    `json:"action"`
	Rationale string    `json:"rationale"`
}
