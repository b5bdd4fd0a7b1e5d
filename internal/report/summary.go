package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hakim/vulnpipe/internal/tools"
)

// WriteSummaryCSV writes the open-port summary as host,port,proto,service rows.
func WriteSummaryCSV(rows []tools.SummaryRow, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outputPath, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"host", "port", "protocol", "service"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write([]string{row.Host, strconv.Itoa(row.Port), row.Proto, row.Service}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteSummaryJSON writes the open-port summary as a JSON array.
func WriteSummaryJSON(rows []tools.SummaryRow, outputPath string) error {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	return nil
}

// WriteSummaryMarkdown writes the open-port summary grouped by host.
// Rows are assumed sorted by host then port, which is how the parser
// hands them over.
func WriteSummaryMarkdown(rows []tools.SummaryRow, outputPath string) error {
	var b strings.Builder
	b.WriteString("# Open Port Summary\n\n")

	if len(rows) == 0 {
		b.WriteString("No open ports found.\n")
	}

	current := ""
	for _, row := range rows {
		if row.Host != current {
			if current != "" {
				b.WriteString("\n")
			}
			current = row.Host
			b.WriteString(fmt.Sprintf("## %s\n\n", current))
			b.WriteString("| Port | Protocol | Service |\n")
			b.WriteString("|------|----------|--------|\n")
		}
		b.WriteString(fmt.Sprintf("| %d | %s | %s |\n", row.Port, row.Proto, orDash(row.Service)))
	}

	if err := os.WriteFile(outputPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("writing report to %s: %w", outputPath, err)
	}
	return nil
}
