package workers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"
)

const (
	fetchTimeout   = 25 * time.Second
	hostInterval   = 2 * time.Second
	maxRawBodySize = 5 << 20 // 5MB
	userAgent      = "VeriFast/1.0 (+https://verifast.app/bot)"
)

// HostRateLimiter throttles outbound requests per host so one acquisition
// run never hammers a single site.
type HostRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	interval time.Duration
}

func NewHostRateLimiter(interval time.Duration) *HostRateLimiter {
	return &HostRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

func (h *HostRateLimiter) WaitForHost(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if parsed.Host == "" {
		return errors.New("missing host in URL")
	}
	return h.limiterFor(parsed.Host).Wait(ctx)
}

func (h *HostRateLimiter) limiterFor(host string) *rate.Limiter {
	h.mu.RLock()
	limiter, ok := h.limiters[host]
	h.mu.RUnlock()
	if ok {
		return limiter
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if limiter, ok := h.limiters[host]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Every(h.interval), 1)
	h.limiters[host] = limiter
	return limiter
}

// Fetcher is the shared outbound HTTP client for all source adapters and the
// full-content step: one timeout, one politeness limiter, one sanitizer.
type Fetcher struct {
	Client    *http.Client
	Limiter   *HostRateLimiter
	sanitizer *bluemonday.Policy
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:    &http.Client{Timeout: fetchTimeout},
		Limiter:   NewHostRateLimiter(hostInterval),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Get performs a rate-limited GET and returns the body, capped at
// maxRawBodySize. There is no mid-fetch cancellation beyond the client
// timeout; a stuck source times out and is recorded as a failure.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.Limiter.WaitForHost(ctx, rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxRawBodySize))
}

// ExtractText converts raw article HTML to sanitized plain text, trying
// readability first and falling back to paragraph scraping.
func (f *Fetcher) ExtractText(rawHTML string) string {
	trimmed := strings.TrimSpace(rawHTML)
	if trimmed == "" {
		return ""
	}

	if text := extractWithReadability(trimmed); text != "" {
		return f.sanitizeText(text)
	}
	return f.sanitizeText(extractParagraphs(trimmed))
}

func (f *Fetcher) sanitizeText(text string) string {
	return strings.TrimSpace(f.sanitizer.Sanitize(text))
}

func extractWithReadability(html string) string {
	article, err := readability.FromReader(strings.NewReader(html), nil)
	if err != nil {
		return ""
	}
	var buf strings.Builder
	if err := article.RenderText(&buf); err != nil {
		return ""
	}
	return normalizeWhitespace(buf.String())
}

// extractParagraphs pulls header/paragraph/list text out of arbitrary HTML,
// separated by blank lines.
func extractParagraphs(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, nav, header, footer, aside").Remove()

	var paragraphs []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return normalizeWhitespace(doc.Text())
	}
	return strings.Join(paragraphs, "\n\n")
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, strings.Join(strings.Fields(line), " "))
		}
	}
	return strings.Join(out, "\n")
}

// WordCount counts whitespace-separated tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// LetterCount counts non-whitespace runes.
func LetterCount(s string) int {
	count := 0
	for _, r := range s {
		if !strings.ContainsRune(" \t\n\r", r) {
			count++
		}
	}
	return count
}
