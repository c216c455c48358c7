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

// NewsAPIAdapter normalizes NewsAPI.org responses.
type NewsAPIAdapter struct {
	fetcher *Fetcher
}

func NewNewsAPIAdapter(fetcher *Fetcher) *NewsAPIAdapter {
	return &NewsAPIAdapter{fetcher: fetcher}
}

func (a *NewsAPIAdapter) Type() models.SourceType { return models.SourceTypeNewsAPI }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (a *NewsAPIAdapter) Fetch(ctx context.Context, source *models.ContentSource, limit int) ([]services.ContentCandidate, error) {
	endpoint, err := url.Parse(source.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("bad endpoint for %s: %w", source.Name, err)
	}
	q := endpoint.Query()
	q.Set("apiKey", source.APIKey)
	q.Set("language", sourceLanguage(source))
	q.Set("pageSize", strconv.Itoa(limit))
	endpoint.RawQuery = q.Encode()

	body, err := a.fetcher.Get(ctx, endpoint.String())
	if err != nil {
		return nil, err
	}

	var resp newsAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode NewsAPI response: %w", err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("NewsAPI returned status %q: %s", resp.Status, resp.Message)
	}

	var candidates []services.ContentCandidate
	for _, item := range resp.Articles {
		if len(candidates) >= limit {
			break
		}
		if item.URL == "" || strings.TrimSpace(item.Title) == "" {
			continue
		}
		// NewsAPI marks delisted articles this way
		if item.Title == "[Removed]" {
			continue
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}

		candidates = append(candidates, services.ContentCandidate{
			SourceID:        source.ID,
			SourceType:      models.SourceTypeNewsAPI,
			URL:             item.URL,
			Title:           strings.TrimSpace(item.Title),
			Content:         a.fetcher.ExtractText(content),
			Language:        sourceLanguage(source),
			PublicationDate: parseTimestamp(item.PublishedAt),
		})
	}
	return candidates, nil
}
