package pipeline

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// Targets may be IPs, CIDR ranges or hostnames; labels follow DNS
// rules (alphanumerics and hyphens, no leading or trailing hyphen).
var hostnameRe = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9\-]*[a-zA-Z0-9])?\.)*[a-zA-Z0-9]([a-zA-Z0-9\-]*[a-zA-Z0-9])?$`)

// NormalizeTargets trims whitespace and drops empty entries and
// duplicates while preserving order.
func NormalizeTargets(targets []string) []string {
	seen := make(map[string]bool, len(targets))
	var out []string
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// ValidateTargets checks every target is a syntactically valid IP,
// CIDR range or hostname. The list must be non-empty.
func ValidateTargets(targets []string) error {
	if len(targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	for _, t := range targets {
		if err := validateTarget(t); err != nil {
			return err
		}
	}
	return nil
}

func validateTarget(target string) error {
	if net.ParseIP(target) != nil {
		return nil
	}
	if _, _, err := net.ParseCIDR(target); err == nil {
		return nil
	}
	if len(target) <= 253 && hostnameRe.MatchString(target) {
		return nil
	}
	return fmt.Errorf("invalid target %q: not an IP, CIDR range or hostname", target)
}
