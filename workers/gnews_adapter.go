package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"verifast/models"
	"verifast/services"
)

// GNewsAdapter normalizes GNews responses.
type GNewsAdapter struct {
	fetcher *Fetcher
}

func NewGNewsAdapter(fetcher *Fetcher) *GNewsAdapter {
	return &GNewsAdapter{fetcher: fetcher}
}

func (a *GNewsAdapter) Type() models.SourceType { return models.SourceTypeGNews }

type gnewsResponse struct {
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (a *GNewsAdapter) Fetch(ctx context.Context, source *models.ContentSource, limit int) ([]services.ContentCandidate, error) {
	endpoint, err := url.Parse(source.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("bad endpoint for %s: %w", source.Name, err)
	}
	q := endpoint.Query()
	q.Set("apikey", source.APIKey)
	q.Set("lang", sourceLanguage(source))
	q.Set("max", strconv.Itoa(limit))
	endpoint.RawQuery = q.Encode()

	body, err := a.fetcher.Get(ctx, endpoint.String())
	if err != nil {
		return nil, err
	}

	var resp gnewsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode GNews response: %w", err)
	}

	var candidates []services.ContentCandidate
	for _, item := range resp.Articles {
		if len(candidates) >= limit {
			break
		}
		if item.URL == "" || strings.TrimSpace(item.Title) == "" {
			continue
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}

		candidates = append(candidates, services.ContentCandidate{
			SourceID:        source.ID,
			SourceType:      models.SourceTypeGNews,
			URL:             item.URL,
			Title:           strings.TrimSpace(item.Title),
			Content:         a.fetcher.ExtractText(content),
			Language:        sourceLanguage(source),
			PublicationDate: parseTimestamp(item.PublishedAt),
		})
	}
	return candidates, nil
}
