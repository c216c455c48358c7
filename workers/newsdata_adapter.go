package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"verifast/models"
	"verifast/services"
)

// NewsDataAdapter normalizes NewsData.io responses.
type NewsDataAdapter struct {
	fetcher *Fetcher
}

func NewNewsDataAdapter(fetcher *Fetcher) *NewsDataAdapter {
	return &NewsDataAdapter{fetcher: fetcher}
}

func (a *NewsDataAdapter) Type() models.SourceType { return models.SourceTypeNewsData }

type newsDataResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Title       string   `json:"title"`
		Link        string   `json:"link"`
		Description string   `json:"description"`
		Content     string   `json:"content"`
		PubDate     string   `json:"pubDate"`
		Language    string   `json:"language"`
		Keywords    []string `json:"keywords"`
	} `json:"results"`
}

func (a *NewsDataAdapter) Fetch(ctx context.Context, source *models.ContentSource, limit int) ([]services.ContentCandidate, error) {
	endpoint, err := url.Parse(source.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("bad endpoint for %s: %w", source.Name, err)
	}
	q := endpoint.Query()
	q.Set("apikey", source.APIKey)
	q.Set("language", sourceLanguage(source))
	endpoint.RawQuery = q.Encode()

	body, err := a.fetcher.Get(ctx, endpoint.String())
	if err != nil {
		return nil, err
	}

	var resp newsDataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode NewsData response: %w", err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("NewsData returned status %q", resp.Status)
	}

	var candidates []services.ContentCandidate
	for _, item := range resp.Results {
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
		lang := item.Language
		if lang == "" {
			lang = sourceLanguage(source)
		}

		candidates = append(candidates, services.ContentCandidate{
			SourceID:        source.ID,
			SourceType:      models.SourceTypeNewsData,
			URL:             item.Link,
			Title:           strings.TrimSpace(item.Title),
			Content:         a.fetcher.ExtractText(content),
			Language:        lang,
			Tags:            item.Keywords,
			PublicationDate: parseTimestamp(item.PubDate),
		})
	}
	return candidates, nil
}
