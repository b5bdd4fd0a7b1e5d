package tools

import (
	"fmt"
	"strings"
)

// NotFoundError indicates an external tool binary is not installed or not
// in PATH. Fatal for the primary scanner, degrade-to-skip for the rest.
type NotFoundError struct {
	Tool string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found in PATH", e.Tool)
}

// ExitError indicates a tool started but exited non-zero. It carries
// enough context for the phase boundary to log usefully.
type ExitError struct {
	Argv     []string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s",
		strings.Join(e.Argv, " "), e.ExitCode, e.Stderr)
}

// ParseError indicates a tool's structured output file was missing or
// malformed. Callers treat it as an empty result, not a failure.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// truncate shortens s for log output, keeping the head.
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
