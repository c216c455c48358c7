package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFetcher drops the politeness interval so tests can hit the same
// httptest host repeatedly.
func newTestFetcher() *Fetcher {
	f := NewFetcher()
	f.Limiter = NewHostRateLimiter(time.Millisecond)
	return f
}

func TestFetcherGet(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("hello body"))
	}))
	defer server.Close()

	f := newTestFetcher()
	body, err := f.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "hello body", string(body))
	assert.Equal(t, userAgent, gotUA)
}

func TestFetcherGetNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := newTestFetcher()
	_, err := f.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 503")
}

func TestFetcherGetRejectsBadURL(t *testing.T) {
	f := newTestFetcher()
	_, err := f.Get(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestHostRateLimiterThrottlesPerHost(t *testing.T) {
	limiter := NewHostRateLimiter(80 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.WaitForHost(ctx, "https://a.example.com/x"))
	require.NoError(t, limiter.WaitForHost(ctx, "https://b.example.com/y"))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "different hosts don't wait on each other")

	require.NoError(t, limiter.WaitForHost(ctx, "https://a.example.com/z"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond, "same host waits out the interval")
}

func TestHostRateLimiterRespectsCancellation(t *testing.T) {
	limiter := NewHostRateLimiter(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, limiter.WaitForHost(ctx, "https://slow.example.com/1"))
	assert.Error(t, limiter.WaitForHost(ctx, "https://slow.example.com/2"))
}

func TestExtractTextFromHTML(t *testing.T) {
	f := newTestFetcher()

	html := `<html><head><script>var x = 1;</script></head><body>
		<nav>Skip this menu</nav>
		<h1>Rising Tides</h1>
		<p>Coastal towns prepare for higher water levels.</p>
		<p>Engineers proposed new barriers last month.</p>
		<footer>Copyright</footer>
	</body></html>`

	text := f.ExtractText(html)
	assert.Contains(t, text, "Coastal towns prepare for higher water levels.")
	assert.Contains(t, text, "Engineers proposed new barriers last month.")
	assert.NotContains(t, text, "var x = 1")
	assert.NotContains(t, text, "Skip this menu")
	assert.NotContains(t, text, "<p>")
}

func TestExtractTextPlainAndEmpty(t *testing.T) {
	f := newTestFetcher()
	assert.Equal(t, "", f.ExtractText("   "))
	assert.Contains(t, f.ExtractText("Just a plain sentence."), "Just a plain sentence.")
}

func TestWordAndLetterCounts(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 5, WordCount("five words are in here"))
	assert.Equal(t, 3, WordCount("  spaced \n out\ttokens "))

	assert.Equal(t, 0, LetterCount(" \n\t"))
	assert.Equal(t, 10, LetterCount("hello world"))
	assert.Equal(t, 4, LetterCount("añio")) // runes, not bytes
}
