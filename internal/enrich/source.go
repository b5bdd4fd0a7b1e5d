package enrich

import (
	"context"

	"github.com/hakim/vulnpipe/internal/logger"
	"github.com/hakim/vulnpipe/internal/models"
)

// Source is the enrichment collaborator contract. Implementations must
// be idempotent, pass unknown CVE ids through unchanged, and never let
// a network failure escape Enrich as a mutated list — on error the
// caller keeps the input it handed in.
type Source interface {
	Name() string

	// Validate checks the source's own preconditions (reachability,
	// credentials) before the run starts. A failing source is excluded
	// from the run with a warning, not an error.
	Validate(ctx context.Context) error

	Enrich(ctx context.Context, vulns []models.Vulnerability) ([]models.Vulnerability, error)
}

// Registry holds the enabled enrichment sources in execution order,
// selected by name at configuration time.
type Registry struct {
	sources []Source
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(s Source) {
	r.sources = append(r.sources, s)
}

// Names returns the registered source names in execution order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		names = append(names, s.Name())
	}
	return names
}

// EnrichAll runs every registered source over the list in order. A
// source that fails validation is skipped; a source that errors
// mid-enrichment leaves the list as it was before that source ran.
func (r *Registry) EnrichAll(ctx context.Context, vulns []models.Vulnerability, log *logger.Logger) []models.Vulnerability {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("enrich")

	for _, source := range r.sources {
		if err := source.Validate(ctx); err != nil {
			log.Warnw("enrichment source excluded", "source", source.Name(), "error", err)
			continue
		}

		enriched, err := source.Enrich(ctx, vulns)
		if err != nil {
			log.Warnw("enrichment source failed", "source", source.Name(), "error", err)
			continue
		}
		vulns = enriched
		log.Infow("enrichment source complete", "source", source.Name(), "vulns", len(vulns))
	}

	return vulns
}
