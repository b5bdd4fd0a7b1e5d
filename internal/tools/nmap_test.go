package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/vulnpipe/internal/models"
)

const sampleNmapXML = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap" version="7.94">
  <host>
    <status state="up"/>
    <address addr="192.168.1.1" addrtype="ipv4"/>
    <hostnames>
      <hostname name="gw.local" type="PTR"/>
      <hostname name="gateway" type="user"/>
    </hostnames>
    <ports>
      <port protocol="tcp" portid="443">
        <state state="open"/>
        <service name="https" product="nginx" version="1.18.0"/>
        <script id="ssl-cve-check" output="VULNERABLE: CVE-2021-44228 and CVE-2022-1234 detected"/>
      </port>
      <port protocol="tcp" portid="23">
        <state state="closed"/>
        <service name="telnet"/>
      </port>
    </ports>
    <os>
      <osmatch name="Linux 5.4" accuracy="96"/>
      <osmatch name="Linux 4.15" accuracy="91"/>
    </os>
  </host>
  <host>
    <status state="down"/>
    <address addr="192.168.1.2" addrtype="ipv4"/>
  </host>
</nmaprun>`

func TestParseNmapXML(t *testing.T) {
	hosts, err := ParseNmapXML([]byte(sampleNmapXML))
	require.NoError(t, err)
	require.Len(t, hosts, 1, "down hosts must be dropped")

	h := hosts[0]
	assert.Equal(t, "192.168.1.1", h.IP)
	assert.Equal(t, "gateway", h.Hostname, "user-supplied hostname preferred over PTR")
	assert.Equal(t, "up", h.State)

	require.Len(t, h.Ports, 1, "closed ports must be dropped")
	p := h.Ports[0]
	assert.Equal(t, 443, p.Number)
	assert.Equal(t, "tcp", p.Protocol)
	require.NotNil(t, p.Service)
	assert.Equal(t, "https", p.Service.Name)
	assert.Equal(t, "nginx", p.Service.Product)
	assert.Equal(t, "1.18.0", p.Service.Version)

	require.Len(t, p.Scripts, 1)
	assert.Equal(t, "ssl-cve-check", p.Scripts[0].ID)
	assert.Contains(t, p.Scripts[0].Output, "CVE-2021-44228")

	require.NotNil(t, h.OSGuess)
	assert.Equal(t, "Linux 5.4", h.OSGuess.Name, "top osmatch wins")
	assert.Equal(t, 96, h.OSGuess.Accuracy)
}

func TestParseNmapXMLDeterministic(t *testing.T) {
	first, err := ParseNmapXML([]byte(sampleNmapXML))
	require.NoError(t, err)
	second, err := ParseNmapXML([]byte(sampleNmapXML))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseNmapXMLMalformed(t *testing.T) {
	hosts, err := ParseNmapXML([]byte("<nmaprun><host>"))
	assert.Error(t, err)
	assert.Empty(t, hosts)
}

func TestParseNmapXMLFileMissing(t *testing.T) {
	hosts, err := ParseNmapXMLFile(filepath.Join(t.TempDir(), "nope.xml"))

	require.Error(t, err)
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
	assert.NotNil(t, hosts, "missing file must degrade to an empty inventory")
	assert.Empty(t, hosts)
}

func TestParseNmapXMLFileTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncated.xml")
	require.NoError(t, os.WriteFile(path, []byte(sampleNmapXML[:100]), 0644))

	hosts, err := ParseNmapXMLFile(path)
	assert.Error(t, err)
	assert.Empty(t, hosts)
}

func TestNormalizeDashes(t *testing.T) {
	assert.Equal(t, "--script=vuln --top-ports 100", NormalizeDashes("—script=vuln –top-ports 100"))
	assert.Equal(t, "-sV -Pn", NormalizeDashes("-sV -Pn"))
}

func TestSplitFlags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "-sV -Pn", []string{"-sV", "-Pn"}},
		{"extra whitespace", "  -sV \t -p   1-1024 ", []string{"-sV", "-p", "1-1024"}},
		{"double quotes", `--script "http-enum,http-title"`, []string{"--script", "http-enum,http-title"}},
		{"single quotes", `--script-args 'user=admin pass=x'`, []string{"--script-args", "user=admin pass=x"}},
		{"empty", "", nil},
		{"quoted empty field", `""`, []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitFlags(tt.in))
		})
	}
}

func TestBuildNmapArgs(t *testing.T) {
	raw := models.RawFiles{Normal: "out.nmap", Grep: "out.gnmap", XML: "out.xml"}
	args := BuildNmapArgs("targets.txt", "-sV —top-ports 50", raw)

	assert.Equal(t, []string{
		"-iL", "targets.txt",
		"-sV", "--top-ports", "50",
		"--stats-every", "2s",
		"-oN", "out.nmap",
		"-oG", "out.gnmap",
		"-oX", "out.xml",
		"-v",
	}, args)
}

func TestProgressPatterns(t *testing.T) {
	m := nmapProgressRe.FindStringSubmatch("Stats: 0:00:12 elapsed; About 42.50% done; ETC: 14:06 (0:00:17 remaining)")
	require.NotNil(t, m)
	assert.Equal(t, "42.50", m[1])

	m = nmapETCRe.FindStringSubmatch("About 42.50% done; ETC: 14:06 (0:00:17 remaining)")
	require.NotNil(t, m)
	assert.Equal(t, "14:06 (0:00:17 remaining)", m[1])

	assert.Nil(t, nmapProgressRe.FindStringSubmatch("Discovered open port 443/tcp"))
}
