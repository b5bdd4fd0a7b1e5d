package pipeline

import (
	"fmt"
	"sort"
)

// Profile is a named nmap flag preset.
type Profile struct {
	Name        string
	Description string
	Flags       string
}

var builtinProfiles = map[string]Profile{
	"quick": {
		Name:        "quick",
		Description: "Fast sweep of the most common ports, no version detection",
		Flags:       "-T4 -F",
	},
	"default": {
		Name:        "default",
		Description: "Version detection, host discovery skipped",
		Flags:       "-sV -Pn",
	},
	"thorough": {
		Name:        "thorough",
		Description: "All ports with version detection, default scripts and OS fingerprinting",
		Flags:       "-sV -sC -O -p-",
	},
	"vuln": {
		Name:        "vuln",
		Description: "Version detection plus the vuln script category",
		Flags:       "-sV --script=vuln",
	},
}

// BuiltinProfiles returns the available profiles sorted by name.
func BuiltinProfiles() []Profile {
	out := make([]Profile, 0, len(builtinProfiles))
	for _, p := range builtinProfiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResolveFlags picks the nmap flags for a run. Explicit flags win over
// the profile; an empty profile means "default".
func ResolveFlags(profile, flags string) (string, error) {
	if flags != "" {
		return flags, nil
	}
	if profile == "" {
		profile = "default"
	}
	p, ok := builtinProfiles[profile]
	if !ok {
		names := make([]string, 0, len(builtinProfiles))
		for name := range builtinProfiles {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", fmt.Errorf("unknown scan profile %q, available: %v", profile, names)
	}
	return p.Flags, nil
}
