package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hakim/vulnpipe/internal/models"
)

const (
	defaultEPSSEndpoint = "https://api.first.org/data/v1/epss"
	epssBatchSize       = 30
	epssBatchInterval   = 500 * time.Millisecond

	// Percentile at which we treat public exploitation as likely.
	epssExploitPercentile = 0.95
)

// EPSSSource fills in EPSS exploitation probabilities from the FIRST.org
// public API. Queries are batched to keep request counts down; the API
// needs no credentials.
type EPSSSource struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewEPSSSource(endpoint string) *EPSSSource {
	if endpoint == "" {
		endpoint = defaultEPSSEndpoint
	}
	return &EPSSSource{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(epssBatchInterval), 1),
	}
}

func (s *EPSSSource) Name() string { return "epss" }

func (s *EPSSSource) Validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?cve=CVE-2021-44228", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("epss api unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("epss api returned status %d", resp.StatusCode)
	}
	return nil
}

type epssRecord struct {
	CVE        string `json:"cve"`
	EPSS       string `json:"epss"`
	Percentile string `json:"percentile"`
}

type epssResponse struct {
	Data []epssRecord `json:"data"`
}

// Enrich looks up scores for every distinct CVE id in the list. A
// failing batch is skipped; its CVEs stay unenriched.
func (s *EPSSSource) Enrich(ctx context.Context, vulns []models.Vulnerability) ([]models.Vulnerability, error) {
	ids := distinctCVEIDs(vulns)
	if len(ids) == 0 {
		return vulns, nil
	}

	scores := make(map[string]epssRecord, len(ids))
	for start := 0; start < len(ids); start += epssBatchSize {
		end := start + epssBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		if err := s.fetchBatch(ctx, ids[start:end], scores); err != nil {
			// Skip this batch, keep going with the rest.
			continue
		}
	}

	out := make([]models.Vulnerability, len(vulns))
	copy(out, vulns)
	for i := range out {
		rec, ok := scores[out[i].CVEID]
		if !ok {
			continue
		}
		if score, err := strconv.ParseFloat(rec.EPSS, 64); err == nil {
			v := score
			out[i].Enrichment.EPSSScore = &v
		}
		if pct, err := strconv.ParseFloat(rec.Percentile, 64); err == nil {
			v := pct
			out[i].Enrichment.EPSSPercentile = &v
			if v >= epssExploitPercentile {
				out[i].Enrichment.ExploitAvailable = true
			}
		}
	}
	return out, nil
}

func (s *EPSSSource) fetchBatch(ctx context.Context, ids []string, scores map[string]epssRecord) error {
	query := url.Values{"cve": {strings.Join(ids, ",")}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("epss batch returned status %d", resp.StatusCode)
	}

	var body epssResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}
	for _, rec := range body.Data {
		scores[rec.CVE] = rec
	}
	return nil
}

func distinctCVEIDs(vulns []models.Vulnerability) []string {
	seen := make(map[string]bool, len(vulns))
	var ids []string
	for _, v := range vulns {
		if !strings.HasPrefix(v.CVEID, "CVE-") || seen[v.CVEID] {
			continue
		}
		seen[v.CVEID] = true
		ids = append(ids, v.CVEID)
	}
	return ids
}
