package workers

import (
	"context"
	"fmt"
	"time"

	"verifast/models"
	"verifast/services"
)

// SourceAdapter fetches raw candidate articles from one external source type
// and normalizes them into the common ContentCandidate DTO. One
// implementation per source type, selected via the registry — no type-string
// branching in the pipeline.
type SourceAdapter interface {
	Type() models.SourceType
	Fetch(ctx context.Context, source *models.ContentSource, limit int) ([]services.ContentCandidate, error)
}

// AdapterRegistry resolves the adapter for a source's type.
type AdapterRegistry struct {
	adapters map[models.SourceType]SourceAdapter
}

// NewAdapterRegistry wires the built-in adapters over a shared fetcher.
func NewAdapterRegistry(fetcher *Fetcher) *AdapterRegistry {
	r := &AdapterRegistry{adapters: make(map[models.SourceType]SourceAdapter)}
	r.Register(NewRSSAdapter(fetcher))
	r.Register(NewNewsDataAdapter(fetcher))
	r.Register(NewGNewsAdapter(fetcher))
	r.Register(NewNewsAPIAdapter(fetcher))
	return r
}

// Register adds or replaces an adapter.
func (r *AdapterRegistry) Register(a SourceAdapter) {
	r.adapters[a.Type()] = a
}

// For returns the adapter for a source type.
func (r *AdapterRegistry) For(t models.SourceType) (SourceAdapter, error) {
	a, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for source type %q", t)
	}
	return a, nil
}

// sourceLanguage picks the candidate language for a source, defaulting to en.
func sourceLanguage(source *models.ContentSource) string {
	if len(source.Languages) > 0 {
		return source.Languages[0]
	}
	return "en"
}

// parseTimestamp tries the timestamp layouts seen across the news APIs.
func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
		time.RFC1123Z,
		time.RFC1123,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
