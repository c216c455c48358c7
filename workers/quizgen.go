package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"verifast/models"
	"verifast/services"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	quizStream       = "verifast:quizgen"
	quizConsumerName = "quizgen-worker"
	quizGroupName    = "quizgen"
)

// QuizGenerator is the opaque quiz-generation call: given an article it
// returns a structured quiz, tags and a reading-level estimate. Prompting and
// model mechanics live behind this boundary.
type QuizGenerator interface {
	Generate(ctx context.Context, article *models.Article) (quiz json.RawMessage, tags []string, readingLevel float64, err error)
}

// HTTPQuizGenerator calls an external generation service.
type HTTPQuizGenerator struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPQuizGenerator(baseURL, token string) *HTTPQuizGenerator {
	return &HTTPQuizGenerator{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *HTTPQuizGenerator) Generate(ctx context.Context, article *models.Article) (json.RawMessage, []string, float64, error) {
	payload, err := json.Marshal(map[string]string{
		"article_id": article.ID,
		"title":      article.Title,
		"content":    article.Content,
		"language":   article.Language,
	})
	if err != nil {
		return nil, nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/api/v1/quizzes", bytes.NewReader(payload))
	if err != nil {
		return nil, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", g.Token)

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, nil, 0, fmt.Errorf("quiz service returned status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Quiz         json.RawMessage `json:"quiz"`
		Tags         []string        `json:"tags"`
		ReadingLevel float64         `json:"reading_level"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, 0, fmt.Errorf("failed to decode quiz service response: %w", err)
	}
	return out.Quiz, out.Tags, out.ReadingLevel, nil
}

// QuizGenWorker consumes the quiz-generation handoff. Enqueue is
// fire-and-forget: the acquisition pipeline never awaits generation.
type QuizGenWorker struct {
	DB        *gorm.DB
	Cache     *services.CacheService
	Generator QuizGenerator
}

func NewQuizGenWorker(db *gorm.DB, cache *services.CacheService, generator QuizGenerator) *QuizGenWorker {
	return &QuizGenWorker{DB: db, Cache: cache, Generator: generator}
}

// Enqueue publishes an article id onto the generation stream. Without Redis
// the article stays pending and the polling fallback picks it up.
func (w *QuizGenWorker) Enqueue(ctx context.Context, articleID string) {
	if !w.Cache.Enabled() {
		return
	}
	err := w.Cache.Client().XAdd(ctx, &redis.XAddArgs{
		Stream: quizStream,
		Values: map[string]interface{}{"article_id": articleID},
	}).Err()
	if err != nil {
		log.Printf("⚠️  failed to enqueue quiz generation for %s: %v", articleID, err)
	}
}

// Run consumes the stream when Redis is wired, and otherwise polls for
// pending articles. Blocks until the context is cancelled.
func (w *QuizGenWorker) Run(ctx context.Context, pollInterval time.Duration) {
	if w.Cache.Enabled() {
		w.runStream(ctx)
		return
	}
	w.runPolling(ctx, pollInterval)
}

func (w *QuizGenWorker) runStream(ctx context.Context) {
	log.Println("Starting quiz generation worker (stream-backed)...")
	client := w.Cache.Client()

	// Create the consumer group; BUSYGROUP just means it already exists
	if err := client.XGroupCreateMkStream(ctx, quizStream, quizGroupName, "0").Err(); err != nil &&
		err.Error() != "BUSYGROUP Consumer Group name already exists" {
		log.Printf("⚠️  failed to create consumer group: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("Quiz generation worker stopped.")
			return
		default:
		}

		streams, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    quizGroupName,
			Consumer: quizConsumerName,
			Streams:  []string{quizStream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			log.Printf("❌ quiz stream read failed: %v", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				if id, ok := msg.Values["article_id"].(string); ok {
					w.processArticle(ctx, id)
				}
				client.XAck(ctx, quizStream, quizGroupName, msg.ID)
			}
		}
	}
}

func (w *QuizGenWorker) runPolling(ctx context.Context, pollInterval time.Duration) {
	log.Println("Starting quiz generation worker (DB polling)...")
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Quiz generation worker stopped.")
			return
		case <-ticker.C:
			var pending []models.Article
			err := w.DB.Select("id").
				Where("quiz_status = ?", models.QuizStatusPending).
				Order("created_at ASC").
				Limit(10).
				Find(&pending).Error
			if err != nil {
				log.Printf("❌ failed to list pending articles: %v", err)
				continue
			}
			for _, a := range pending {
				w.processArticle(ctx, a.ID)
			}
		}
	}
}

// processArticle runs one generation. Failures are recorded against the
// article, never retried in-loop.
func (w *QuizGenWorker) processArticle(ctx context.Context, articleID string) {
	var article models.Article
	if err := w.DB.Where("id = ?", articleID).First(&article).Error; err != nil {
		log.Printf("⚠️  quiz generation: article %s not found: %v", articleID, err)
		return
	}
	if article.QuizStatus != models.QuizStatusPending {
		return
	}

	quiz, tags, readingLevel, err := w.Generator.Generate(ctx, &article)
	if err != nil {
		log.Printf("❌ quiz generation failed for %s: %v", articleID, err)
		w.DB.Model(&article).Updates(map[string]interface{}{
			"quiz_status": models.QuizStatusFailed,
			"quiz_error":  err.Error(),
		})
		return
	}

	article.Quiz = quiz
	article.QuizStatus = models.QuizStatusReady
	article.ReadingLevel = readingLevel
	if len(tags) > 0 {
		article.Tags = tags
	}
	err = w.DB.Model(&article).
		Select("quiz", "quiz_status", "reading_level", "tags").
		Updates(&article).Error
	if err != nil {
		log.Printf("❌ failed to store generated quiz for %s: %v", articleID, err)
		return
	}
	log.Printf("✅ quiz ready for article %s (%s)", article.ID, article.Title)
}
