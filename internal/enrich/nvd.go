package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hakim/vulnpipe/internal/models"
)

const (
	defaultNVDEndpoint = "https://services.nvd.nist.gov/rest/json/cves/2.0"

	// NVD rate guidance: ~5 req / 30 s without a key, 50 with one.
	nvdDelayUnkeyed = 600 * time.Millisecond
	nvdDelayKeyed   = 100 * time.Millisecond
)

// NVDSource fills in CVSS scores, descriptions, references and publish
// dates from the NVD REST 2.0 API, one CVE per request with an
// in-memory cache so duplicate ids across hosts cost a single lookup.
type NVDSource struct {
	endpoint string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter

	mu    sync.Mutex
	cache map[string]*nvdDetail
}

type nvdDetail struct {
	cvssScore    *float64
	cvssSeverity string
	description  string
	references   []string
	published    string
}

func NewNVDSource(endpoint, apiKey string) *NVDSource {
	if endpoint == "" {
		endpoint = defaultNVDEndpoint
	}
	delay := nvdDelayUnkeyed
	if apiKey != "" {
		delay = nvdDelayKeyed
	}
	return &NVDSource{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(delay), 1),
		cache:    make(map[string]*nvdDetail),
	}
}

func (s *NVDSource) Name() string { return "nvd" }

func (s *NVDSource) Validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := s.newRequest(ctx, "CVE-2021-44228")
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("nvd api unreachable: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound:
		return nil
	case http.StatusForbidden:
		return fmt.Errorf("nvd api rejected request: check api key")
	default:
		return fmt.Errorf("nvd api returned status %d", resp.StatusCode)
	}
}

// Enrich looks up each distinct CVE id. Lookup failures leave the
// affected vulnerabilities without CVSS data rather than failing the
// whole source.
func (s *NVDSource) Enrich(ctx context.Context, vulns []models.Vulnerability) ([]models.Vulnerability, error) {
	out := make([]models.Vulnerability, len(vulns))
	copy(out, vulns)

	for i := range out {
		if !strings.HasPrefix(out[i].CVEID, "CVE-") {
			continue
		}
		detail, err := s.lookup(ctx, out[i].CVEID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if detail == nil {
			continue
		}
		out[i].Enrichment.CVSSScore = detail.cvssScore
		out[i].Enrichment.CVSSSeverity = detail.cvssSeverity
		out[i].Enrichment.References = detail.references
		out[i].Enrichment.PublishedDate = detail.published
		if out[i].Description == "" {
			out[i].Description = detail.description
		}
	}
	return out, nil
}

func (s *NVDSource) lookup(ctx context.Context, cveID string) (*nvdDetail, error) {
	s.mu.Lock()
	detail, ok := s.cache[cveID]
	s.mu.Unlock()
	if ok {
		return detail, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := s.newRequest(ctx, cveID)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nvd lookup for %s returned status %d", cveID, resp.StatusCode)
	}

	var body nvdResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	detail = parseNVDResponse(&body)

	s.mu.Lock()
	s.cache[cveID] = detail
	s.mu.Unlock()
	return detail, nil
}

func (s *NVDSource) newRequest(ctx context.Context, cveID string) (*http.Request, error) {
	query := url.Values{"cveId": {cveID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if s.apiKey != "" {
		req.Header.Set("apiKey", s.apiKey)
	}
	return req, nil
}

type nvdResponse struct {
	Vulnerabilities []struct {
		CVE struct {
			Published    string `json:"published"`
			Descriptions []struct {
				Lang  string `json:"lang"`
				Value string `json:"value"`
			} `json:"descriptions"`
			Metrics struct {
				CVSSMetricV31 []nvdCVSSMetric `json:"cvssMetricV31"`
				CVSSMetricV30 []nvdCVSSMetric `json:"cvssMetricV30"`
				CVSSMetricV2  []nvdCVSSMetric `json:"cvssMetricV2"`
			} `json:"metrics"`
			References []struct {
				URL string `json:"url"`
			} `json:"references"`
		} `json:"cve"`
	} `json:"vulnerabilities"`
}

type nvdCVSSMetric struct {
	CVSSData struct {
		BaseScore    float64 `json:"baseScore"`
		BaseSeverity string  `json:"baseSeverity"`
	} `json:"cvssData"`
	BaseSeverity string `json:"baseSeverity"`
}

// parseNVDResponse returns nil when the response carries no match,
// which happens for ids NVD has not published.
func parseNVDResponse(body *nvdResponse) *nvdDetail {
	if len(body.Vulnerabilities) == 0 {
		return nil
	}
	cve := body.Vulnerabilities[0].CVE

	detail := &nvdDetail{published: cve.Published}
	for _, d := range cve.Descriptions {
		if d.Lang == "en" {
			detail.description = d.Value
			break
		}
	}
	for _, ref := range cve.References {
		detail.references = append(detail.references, ref.URL)
	}

	// Prefer the newest CVSS version present.
	for _, metrics := range [][]nvdCVSSMetric{
		cve.Metrics.CVSSMetricV31,
		cve.Metrics.CVSSMetricV30,
		cve.Metrics.CVSSMetricV2,
	} {
		if len(metrics) == 0 {
			continue
		}
		m := metrics[0]
		score := m.CVSSData.BaseScore
		detail.cvssScore = &score
		detail.cvssSeverity = m.CVSSData.BaseSeverity
		if detail.cvssSeverity == "" {
			detail.cvssSeverity = m.BaseSeverity
		}
		break
	}
	return detail
}
