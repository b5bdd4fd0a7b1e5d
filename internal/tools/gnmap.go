package tools

import (
	"bufio"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SummaryRow is one open port extracted from the greppable report
type SummaryRow struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Proto   string `json:"proto"`
	Service string `json:"service"`
}

var gnmapPortsRe = regexp.MustCompile(`^.*Ports:\s*`)

// ParseGnmapFile reads a greppable report and returns its open-port rows.
// A missing file yields an empty slice and a *ParseError.
func ParseGnmapFile(path string) ([]SummaryRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return []SummaryRow{}, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	var rows []SummaryRow
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		rows = append(rows, ParseGnmapLine(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return []SummaryRow{}, &ParseError{Path: path, Err: err}
	}

	return dedupeRows(rows), nil
}

// ParseGnmapLine extracts open-port rows from a single greppable line of
// the form:
//
//	Host: <ip> (<name>) Status: Up Ports: <port>/<state>/<proto>/.../<service>/... [, ...]
//
// Lines without both a Host and Ports section yield nothing; segments
// whose state is not "open" are dropped.
func ParseGnmapLine(line string) []SummaryRow {
	if !strings.Contains(line, "Host: ") || !strings.Contains(line, "Ports: ") {
		return nil
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil
	}
	host := fields[1]

	portsStr := gnmapPortsRe.ReplaceAllString(strings.TrimSpace(line), "")

	var rows []SummaryRow
	for _, seg := range strings.Split(portsStr, ",") {
		seg = strings.TrimSpace(seg)
		bits := strings.Split(seg, "/")
		if len(bits) < 5 {
			continue
		}
		if bits[1] != "open" {
			continue
		}
		port, err := strconv.Atoi(bits[0])
		if err != nil {
			continue
		}
		service := bits[4]
		if service == "" {
			service = "-"
		}
		rows = append(rows, SummaryRow{
			Host:    host,
			Port:    port,
			Proto:   bits[2],
			Service: service,
		})
	}
	return rows
}

// dedupeRows sorts rows and removes duplicates, mirroring the summary
// table's stable presentation order.
func dedupeRows(rows []SummaryRow) []SummaryRow {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Host != rows[j].Host {
			return rows[i].Host < rows[j].Host
		}
		if rows[i].Port != rows[j].Port {
			return rows[i].Port < rows[j].Port
		}
		return rows[i].Proto < rows[j].Proto
	})

	out := rows[:0]
	var prev SummaryRow
	for i, r := range rows {
		if i > 0 && r == prev {
			continue
		}
		out = append(out, r)
		prev = r
	}
	return out
}
