package tools

import (
	"bytes"
	"os/exec"
	"strings"
)

// ToolRequirement represents an external tool dependency
type ToolRequirement struct {
	Name       string // Display name
	Binary     string // Executable name
	Required   bool   // Whether the tool is required
	InstallCmd string // Installation command
	Purpose    string // One-line description
}

// CheckResult represents the result of checking a single tool
type CheckResult struct {
	Tool    ToolRequirement
	Found   bool
	Path    string
	Version string
}

// DefaultTools returns the list of external tools used by vulnpipe
func DefaultTools() []ToolRequirement {
	return []ToolRequirement{
		{
			Name:       "nmap",
			Binary:     "nmap",
			Required:   true,
			InstallCmd: "apt install nmap (or brew install nmap on macOS)",
			Purpose:    "Host/port discovery and service fingerprinting",
		},
		{
			Name:       "nikto",
			Binary:     "nikto",
			Required:   false,
			InstallCmd: "apt install nikto (or brew install nikto on macOS)",
			Purpose:    "Web vulnerability scanning",
		},
	}
}

// CheckTools checks all tools in the provided list
func CheckTools(tools []ToolRequirement) []CheckResult {
	results := make([]CheckResult, len(tools))
	for i, tool := range tools {
		results[i] = CheckTool(tool)
	}
	return results
}

// CheckTool checks if a single tool is available
func CheckTool(tool ToolRequirement) CheckResult {
	result := CheckResult{
		Tool:  tool,
		Found: false,
	}

	path, err := exec.LookPath(tool.Binary)
	if err != nil {
		return result
	}

	result.Found = true
	result.Path = path
	result.Version = getVersion(tool.Binary)

	return result
}

// getVersion attempts to get the version of a tool
func getVersion(binary string) string {
	// Try common version flags
	versionFlags := []string{"--version", "-version", "-Version", "-v"}

	for _, flag := range versionFlags {
		cmd := exec.Command(binary, flag)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		err := cmd.Run()
		if err == nil && out.Len() > 0 {
			firstLine := strings.Split(out.String(), "\n")[0]
			version := strings.TrimSpace(firstLine)
			if len(version) > 50 {
				version = version[:50] + "..."
			}
			return version
		}
	}

	return "unknown"
}
