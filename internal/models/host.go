package models

// Host represents a discovered live host with its open ports
type Host struct {
	IP       string   `json:"ip"`
	Hostname string   `json:"hostname,omitempty"`
	State    string   `json:"state"`
	OSGuess  *OSGuess `json:"os_guess,omitempty"`
	Ports    []Port   `json:"ports,omitempty"`
}

// OSGuess is the top OS fingerprint match reported by the scanner
type OSGuess struct {
	Name     string `json:"name"`
	Accuracy int    `json:"accuracy"`
}

// Port represents an open port with service information
type Port struct {
	Number   int            `json:"number"`
	Protocol string         `json:"protocol"`
	State    string         `json:"state"`
	Service  *Service       `json:"service,omitempty"`
	Scripts  []ScriptOutput `json:"scripts,omitempty"`
}

// Service describes the service fingerprint for a port
type Service struct {
	Name      string `json:"name"`
	Product   string `json:"product,omitempty"`
	Version   string `json:"version,omitempty"`
	ExtraInfo string `json:"extra_info,omitempty"`
}

// ScriptOutput is the output of one detection script run against a port
type ScriptOutput struct {
	ID     string `json:"id"`
	Output string `json:"output"`
}

// WebFinding is a single finding from the web scanner against one endpoint
type WebFinding struct {
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	Scheme      string   `json:"scheme"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// ServiceName returns the service name for a port, or "" when unknown.
func (p Port) ServiceName() string {
	if p.Service == nil {
		return ""
	}
	return p.Service.Name
}
