package workers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"verifast/models"
	"verifast/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	quiz  json.RawMessage
	tags  []string
	level float64
	err   error
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context, article *models.Article) (json.RawMessage, []string, float64, error) {
	g.calls++
	if g.err != nil {
		return nil, nil, 0, g.err
	}
	return g.quiz, g.tags, g.level, nil
}

func TestProcessArticleStoresGeneratedQuiz(t *testing.T) {
	db := setupTestDB(t)
	article := models.Article{
		Title: "Pending Article", Slug: "pending-article",
		URL: "https://example.com/pending", Content: "body", Language: "en",
		QuizStatus: models.QuizStatusPending, Tags: []string{"original"},
	}
	require.NoError(t, db.Create(&article).Error)

	gen := &stubGenerator{
		quiz:  json.RawMessage(`[{"question":"Q1","options":["A","B"],"answer":0}]`),
		tags:  []string{"economy", "markets"},
		level: 7.5,
	}
	worker := NewQuizGenWorker(db, disabledCache(t), gen)
	worker.processArticle(context.Background(), article.ID)

	var reloaded models.Article
	require.NoError(t, db.First(&reloaded, "id = ?", article.ID).Error)
	assert.Equal(t, models.QuizStatusReady, reloaded.QuizStatus)
	assert.JSONEq(t, string(gen.quiz), string(reloaded.Quiz))
	assert.Equal(t, 7.5, reloaded.ReadingLevel)
	assert.Equal(t, []string{"economy", "markets"}, reloaded.Tags)
}

func TestProcessArticleRecordsFailure(t *testing.T) {
	db := setupTestDB(t)
	article := models.Article{
		Title: "Doomed Article", Slug: "doomed-article",
		URL: "https://example.com/doomed", Content: "body", Language: "en",
		QuizStatus: models.QuizStatusPending,
	}
	require.NoError(t, db.Create(&article).Error)

	worker := NewQuizGenWorker(db, disabledCache(t), &stubGenerator{err: errors.New("model overloaded")})
	worker.processArticle(context.Background(), article.ID)

	var reloaded models.Article
	require.NoError(t, db.First(&reloaded, "id = ?", article.ID).Error)
	assert.Equal(t, models.QuizStatusFailed, reloaded.QuizStatus)
	assert.Contains(t, reloaded.QuizError, "model overloaded")
}

func TestProcessArticleSkipsNonPending(t *testing.T) {
	db := setupTestDB(t)
	article := models.Article{
		Title: "Done Article", Slug: "done-article",
		URL: "https://example.com/done", Content: "body", Language: "en",
		QuizStatus: models.QuizStatusReady,
	}
	require.NoError(t, db.Create(&article).Error)

	gen := &stubGenerator{}
	worker := NewQuizGenWorker(db, disabledCache(t), gen)
	worker.processArticle(context.Background(), article.ID)
	assert.Zero(t, gen.calls)
}

func TestEnqueuePublishesToStream(t *testing.T) {
	db := setupTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := services.NewCacheServiceWithClient(client)
	t.Cleanup(func() { cache.Close() })

	worker := NewQuizGenWorker(db, cache, &stubGenerator{})
	worker.Enqueue(context.Background(), "article-123")

	entries, err := client.XLen(context.Background(), quizStream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), entries)

	// Disabled cache is a silent no-op
	NewQuizGenWorker(db, disabledCache(t), &stubGenerator{}).Enqueue(context.Background(), "article-456")
}

func TestHTTPQuizGeneratorGenerate(t *testing.T) {
	var gotPath, gotToken string
	var gotPayload map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("X-Service-Token")
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Write([]byte(`{"quiz": [{"question":"Q"}], "tags": ["history"], "reading_level": 6.2}`))
	}))
	defer server.Close()

	gen := NewHTTPQuizGenerator(server.URL, "svc-token")
	quiz, tags, level, err := gen.Generate(context.Background(), &models.Article{
		ID: "a-1", Title: "Title", Content: "Content", Language: "en",
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/quizzes", gotPath)
	assert.Equal(t, "svc-token", gotToken)
	assert.Equal(t, "a-1", gotPayload["article_id"])
	assert.JSONEq(t, `[{"question":"Q"}]`, string(quiz))
	assert.Equal(t, []string{"history"}, tags)
	assert.Equal(t, 6.2, level)
}

func TestHTTPQuizGeneratorErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusTooManyRequests)
	}))
	defer server.Close()

	gen := NewHTTPQuizGenerator(server.URL, "svc-token")
	_, _, _, err := gen.Generate(context.Background(), &models.Article{ID: "a-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}
