package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/vulnpipe/internal/models"
)

func TestParseNiktoOutput(t *testing.T) {
	output := `- Nikto v2.5.0
+ Server: Apache/2.4.41 (Ubuntu)
+ /admin/: This might be interesting.
+ /cgi-bin/test.cgi: Vulnerable to remote exploit, see CVE-2021-41773.
no finding marker on this line
+ OSVDB-3092: /backup/: Outdated backup directory found.
`
	findings := ParseNiktoOutput(output)
	require.Len(t, findings, 4)

	assert.Equal(t, "Server", findings[0].Type)
	assert.Equal(t, "Apache/2.4.41 (Ubuntu)", findings[0].Description)
	assert.Equal(t, models.SeverityInfo, findings[0].Severity)

	assert.Equal(t, "/cgi-bin/test.cgi", findings[2].Type)
	assert.Equal(t, models.SeverityHigh, findings[2].Severity)

	assert.Equal(t, models.SeverityLow, findings[3].Severity)
}

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		desc string
		want models.Severity
	}{
		{"Dangerous default credentials found", models.SeverityHigh},
		{"Known exploit published for this version", models.SeverityHigh},
		{"Server is vulnerable to request smuggling", models.SeverityMedium},
		{"Missing security headers", models.SeverityMedium},
		{"Warning: directory indexing enabled", models.SeverityLow},
		{"Outdated server banner", models.SeverityLow},
		{"Interesting response header", models.SeverityInfo},
		// High-bucket keywords win even when lower-bucket words co-occur.
		{"Outdated and vulnerable version, public exploit available", models.SeverityHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifySeverity(tt.desc), tt.desc)
	}
}
