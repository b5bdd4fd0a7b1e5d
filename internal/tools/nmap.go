package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/hakim/vulnpipe/internal/models"
)

// XML parsing structs for nmap -oX output (unexported - internal parsing details)
type nmapRun struct {
	XMLName xml.Name   `xml:"nmaprun"`
	Hosts   []nmapHost `xml:"host"`
}

type nmapHost struct {
	Status    nmapStatus     `xml:"status"`
	Addresses []nmapAddress  `xml:"address"`
	Hostnames []nmapHostname `xml:"hostnames>hostname"`
	Ports     nmapPorts      `xml:"ports"`
	OSMatches []nmapOSMatch  `xml:"os>osmatch"`
}

type nmapStatus struct {
	State string `xml:"state,attr"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type nmapHostname struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type nmapPorts struct {
	Ports []nmapPort `xml:"port"`
}

type nmapPort struct {
	Protocol string       `xml:"protocol,attr"`
	PortID   int          `xml:"portid,attr"`
	State    nmapState    `xml:"state"`
	Service  nmapService  `xml:"service"`
	Scripts  []nmapScript `xml:"script"`
}

type nmapState struct {
	State string `xml:"state,attr"`
}

type nmapService struct {
	Name      string `xml:"name,attr"`
	Product   string `xml:"product,attr"`
	Version   string `xml:"version,attr"`
	ExtraInfo string `xml:"extrainfo,attr"`
}

type nmapScript struct {
	ID     string `xml:"id,attr"`
	Output string `xml:"output,attr"`
}

type nmapOSMatch struct {
	Name     string `xml:"name,attr"`
	Accuracy string `xml:"accuracy,attr"`
}

// Progress patterns emitted on nmap's streams when --stats-every is set
var (
	nmapProgressRe = regexp.MustCompile(`About\s+([0-9]+(?:\.[0-9]+)?)%\s+done`)
	nmapETCRe      = regexp.MustCompile(`ETC:\s*([^\r\n]+)`)
)

// NmapProgress receives fractional progress and the estimated-completion
// text as nmap reports them. etc is empty when the line carried none.
type NmapProgress func(percent float64, etc string)

// NmapOptions configures a single nmap invocation
type NmapOptions struct {
	Binary    string // empty means "nmap" from PATH
	Flags     string // free-form user flags, shell-tokenized
	OutputDir string // directory for targets file and the three outputs
}

// NormalizeDashes replaces unicode en/em dashes with a plain double
// hyphen so copy-pasted flag strings tokenize correctly.
func NormalizeDashes(s string) string {
	s = strings.ReplaceAll(s, "—", "--") // em dash
	s = strings.ReplaceAll(s, "–", "--") // en dash
	return s
}

// SplitFlags tokenizes a flag string the way a shell would: fields split
// on whitespace, with single or double quotes grouping a field.
func SplitFlags(s string) []string {
	var out []string
	var cur strings.Builder
	var quote rune
	inField := false

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inField = true
		case r == ' ' || r == '\t' || r == '\n':
			if inField {
				out = append(out, cur.String())
				cur.Reset()
				inField = false
			}
		default:
			cur.WriteRune(r)
			inField = true
		}
	}
	if inField {
		out = append(out, cur.String())
	}
	return out
}

// BuildNmapArgs assembles the full argument list: targets file, the
// user's tokenized flags, then the fixed progress and output flags.
func BuildNmapArgs(targetsFile, flags string, raw models.RawFiles) []string {
	args := []string{"-iL", targetsFile}
	args = append(args, SplitFlags(NormalizeDashes(flags))...)
	args = append(args,
		"--stats-every", "2s",
		"-oN", raw.Normal,
		"-oG", raw.Grep,
		"-oX", raw.XML,
		"-v",
	)
	return args
}

// RunNmap executes nmap against the given targets, streaming progress as
// the scan advances. Targets are written to a file in opts.OutputDir and
// passed via -iL. On return the three output files exist (unless the
// process died early); parsing them is the caller's job so that a
// truncated XML from a killed scan degrades instead of failing the run.
func RunNmap(ctx context.Context, targets []string, opts NmapOptions, onProgress NmapProgress, onLine func(string)) (models.RawFiles, error) {
	raw := models.RawFiles{
		Normal: filepath.Join(opts.OutputDir, "nmap_results.nmap"),
		Grep:   filepath.Join(opts.OutputDir, "nmap_results.gnmap"),
		XML:    filepath.Join(opts.OutputDir, "nmap_results.xml"),
	}

	if len(targets) == 0 {
		return raw, fmt.Errorf("no targets provided")
	}

	binary := "nmap"
	if opts.Binary != "" {
		binary = opts.Binary
	}

	targetsFile := filepath.Join(opts.OutputDir, "targets.txt")
	if err := os.WriteFile(targetsFile, []byte(strings.Join(targets, "\n")+"\n"), 0644); err != nil {
		return raw, fmt.Errorf("writing targets file: %w", err)
	}

	args := BuildNmapArgs(targetsFile, opts.Flags, raw)

	lineSink := func(line string) {
		if onLine != nil {
			onLine(line)
		}
		if onProgress == nil {
			return
		}
		if m := nmapProgressRe.FindStringSubmatch(line); m != nil {
			if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
				onProgress(pct, "")
			}
		}
		if m := nmapETCRe.FindStringSubmatch(line); m != nil {
			onProgress(-1, strings.TrimSpace(m[1]))
		}
	}

	if _, err := RunToolStreaming(ctx, lineSink, binary, args...); err != nil {
		return raw, err
	}

	if onProgress != nil {
		onProgress(100, "")
	}
	return raw, nil
}

// ParseNmapXMLFile parses the structured report at path into hosts.
// A missing or truncated file yields an empty host list and a
// *ParseError the caller should log, never treat as fatal.
func ParseNmapXMLFile(path string) ([]models.Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return []models.Host{}, &ParseError{Path: path, Err: err}
	}
	hosts, err := ParseNmapXML(data)
	if err != nil {
		return []models.Host{}, &ParseError{Path: path, Err: err}
	}
	return hosts, nil
}

// ParseNmapXML parses raw -oX bytes into hosts. Only hosts whose status
// is "up" and ports whose state is "open" are retained; the OS guess is
// the top osmatch when present.
func ParseNmapXML(data []byte) ([]models.Host, error) {
	var run nmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return nil, err
	}

	hosts := make([]models.Host, 0, len(run.Hosts))
	for _, h := range run.Hosts {
		if h.Status.State != "up" {
			continue
		}

		ip := pickAddress(h.Addresses)
		if ip == "" {
			continue
		}

		host := models.Host{
			IP:       ip,
			Hostname: pickHostname(h.Hostnames),
			State:    "up",
		}

		for _, p := range h.Ports.Ports {
			if p.State.State != "open" {
				continue
			}
			port := models.Port{
				Number:   p.PortID,
				Protocol: p.Protocol,
				State:    p.State.State,
			}
			if p.Service.Name != "" || p.Service.Product != "" {
				port.Service = &models.Service{
					Name:      p.Service.Name,
					Product:   p.Service.Product,
					Version:   p.Service.Version,
					ExtraInfo: p.Service.ExtraInfo,
				}
			}
			for _, s := range p.Scripts {
				port.Scripts = append(port.Scripts, models.ScriptOutput{
					ID:     s.ID,
					Output: s.Output,
				})
			}
			host.Ports = append(host.Ports, port)
		}

		if len(h.OSMatches) > 0 {
			accuracy, _ := strconv.Atoi(h.OSMatches[0].Accuracy)
			host.OSGuess = &models.OSGuess{
				Name:     h.OSMatches[0].Name,
				Accuracy: accuracy,
			}
		}

		hosts = append(hosts, host)
	}

	return hosts, nil
}

// pickAddress prefers an IPv4 address, falling back to IPv6, then any.
func pickAddress(addrs []nmapAddress) string {
	for _, a := range addrs {
		if a.AddrType == "ipv4" {
			return a.Addr
		}
	}
	for _, a := range addrs {
		if a.AddrType == "ipv6" {
			return a.Addr
		}
	}
	if len(addrs) > 0 {
		return addrs[0].Addr
	}
	return ""
}

// pickHostname prefers the user-supplied hostname over PTR records.
func pickHostname(names []nmapHostname) string {
	for _, n := range names {
		if n.Type == "user" && n.Name != "" {
			return n.Name
		}
	}
	for _, n := range names {
		if n.Name != "" {
			return n.Name
		}
	}
	return ""
}
