package models

// ScanStatus represents the current state of a scan
type ScanStatus string

const (
	StatusPending  ScanStatus = "pending"
	StatusRunning  ScanStatus = "running"
	StatusComplete ScanStatus = "complete"
	StatusFailed   ScanStatus = "failed"
)

// Severity represents the severity level of a web finding
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
	SeverityInfo   Severity = "info"
)

// RiskLevel is the priority bucket assigned to a scored vulnerability
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
)

// VulnSource identifies which scanner produced a vulnerability record
type VulnSource string

const (
	SourcePrimaryScript VulnSource = "primary-script"
	SourceSecondaryScan VulnSource = "secondary-scan"
)
