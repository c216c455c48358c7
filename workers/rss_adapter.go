package workers

import (
	"context"
	"fmt"
	"strings"

	"verifast/models"
	"verifast/services"

	"github.com/mmcdole/gofeed"
)

// RSSAdapter parses RSS/Atom feeds into candidates.
type RSSAdapter struct {
	fetcher *Fetcher
}

func NewRSSAdapter(fetcher *Fetcher) *RSSAdapter {
	return &RSSAdapter{fetcher: fetcher}
}

func (a *RSSAdapter) Type() models.SourceType { return models.SourceTypeRSS }

func (a *RSSAdapter) Fetch(ctx context.Context, source *models.ContentSource, limit int) ([]services.ContentCandidate, error) {
	if err := a.fetcher.Limiter.WaitForHost(ctx, source.Endpoint); err != nil {
		return nil, err
	}

	fp := gofeed.NewParser()
	fp.Client = a.fetcher.Client
	fp.UserAgent = userAgent
	feed, err := fp.ParseURLWithContext(source.Endpoint, ctx)
	if err != nil {
		return nil, fmt.Errorf("error parsing feed %s: %w", source.Endpoint, err)
	}

	lang := sourceLanguage(source)
	if feed.Language != "" {
		// Feed-declared language wins over source config; keep the base tag
		lang = strings.SplitN(strings.ToLower(feed.Language), "-", 2)[0]
	}

	var candidates []services.ContentCandidate
	for _, item := range feed.Items {
		if len(candidates) >= limit {
			break
		}
		if item.Link == "" || strings.TrimSpace(item.Title) == "" {
			continue
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}

		c := services.ContentCandidate{
			SourceID:   source.ID,
			SourceType: models.SourceTypeRSS,
			URL:        item.Link,
			Title:      strings.TrimSpace(item.Title),
			Content:    a.fetcher.ExtractText(content),
			Language:   lang,
			Tags:       item.Categories,
		}
		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			c.PublicationDate = &t
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}
