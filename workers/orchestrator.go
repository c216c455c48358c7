package workers

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"verifast/models"
	"verifast/services"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// Candidates below this word count get a full-content fetch from the
	// origin before validation.
	fullFetchThreshold = 150

	defaultMaxArticles = 50
)

// SnapshotArchiver stores the accepted article's source document in object
// storage and returns its key. Nil archiver disables archiving.
type SnapshotArchiver interface {
	Archive(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Orchestrator drives one acquisition run: rank sources, walk them in order
// under a global article cap, and push every candidate through the
// classify → dedup → validate → persist pipeline. A failing source never
// aborts the run.
type Orchestrator struct {
	DB        *gorm.DB
	Ranker    *services.SourceHealthRanker
	Registry  *AdapterRegistry
	Fetcher   *Fetcher
	Dedup     *services.Deduplicator
	Validator *services.LanguageValidator
	QuizGen   *QuizGenWorker
	Archiver  SnapshotArchiver
}

func NewOrchestrator(db *gorm.DB, fetcher *Fetcher, quizGen *QuizGenWorker, archiver SnapshotArchiver) *Orchestrator {
	return &Orchestrator{
		DB:        db,
		Ranker:    services.NewSourceHealthRanker(db),
		Registry:  NewAdapterRegistry(fetcher),
		Fetcher:   fetcher,
		Dedup:     services.NewDeduplicator(db),
		Validator: services.NewLanguageValidator(),
		QuizGen:   quizGen,
		Archiver:  archiver,
	}
}

// Run executes one acquisition pass and returns the persisted job row.
// triggeredBy is "scheduler" or the admin account id.
func (o *Orchestrator) Run(ctx context.Context, triggeredBy string, languages []string, maxArticles int) (*models.ContentAcquisitionJob, error) {
	if maxArticles <= 0 {
		maxArticles = defaultMaxArticles
	}

	job := &models.ContentAcquisitionJob{
		TriggeredBy: triggeredBy,
		Languages:   languages,
		MaxArticles: maxArticles,
		Status:      models.JobStatusRunning,
	}
	if err := o.DB.Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to create acquisition job: %w", err)
	}

	log.Printf("🔄 acquisition run %s started (trigger=%s, languages=%v, cap=%d)",
		job.ID, triggeredBy, languages, maxArticles)

	ranked, err := o.Ranker.Rank(languages, time.Now())
	if err != nil {
		job.Fail(time.Now(), "source ranking failed: "+err.Error())
		o.DB.Save(job)
		return job, err
	}

	remaining := maxArticles
	for _, rs := range ranked {
		if remaining <= 0 {
			break
		}
		if ctx.Err() != nil {
			job.Fail(time.Now(), "run cancelled")
			o.DB.Save(job)
			return job, ctx.Err()
		}
		accepted := o.runSource(ctx, job, rs, remaining)
		remaining -= accepted
	}

	job.Complete(time.Now())
	if err := o.DB.Save(job).Error; err != nil {
		return job, fmt.Errorf("failed to persist acquisition job: %w", err)
	}

	log.Printf("✅ acquisition run %s finished: %d/%d sources ok, %d found, %d accepted, %d duplicated, %d rejected",
		job.ID, job.SourcesSuccessful, job.SourcesProcessed,
		job.ArticlesFound, job.ArticlesProcessed, job.ArticlesDuplicated, job.ArticlesRejected)
	return job, nil
}

// runSource fetches one source's batch and processes its candidates. Returns
// the number of accepted articles.
func (o *Orchestrator) runSource(ctx context.Context, job *models.ContentAcquisitionJob, rs services.RankedSource, remaining int) int {
	source := rs.Source
	now := time.Now()

	if !source.CanMakeRequest(now) {
		log.Printf("⚠️  source %s skipped: rate budget exhausted", source.Name)
		return 0
	}

	adapter, err := o.Registry.For(source.SourceType)
	if err != nil {
		job.RecordSourceError(source.Name, err)
		return 0
	}

	limit := rs.Quota
	if limit > remaining {
		limit = remaining
	}

	job.SourcesProcessed++
	candidates, fetchErr := adapter.Fetch(ctx, &source, limit)
	source.RecordRequest(fetchErr == nil, time.Now())
	if err := o.DB.Save(&source).Error; err != nil {
		log.Printf("⚠️  failed to persist source counters for %s: %v", source.Name, err)
	}

	if fetchErr != nil {
		log.Printf("❌ source %s fetch failed: %v", source.Name, fetchErr)
		job.RecordSourceError(source.Name, fetchErr)
		o.recordMetric(source.ID, sourceLanguage(&source), 0, 0, 0, 1, 1)
		return 0
	}

	job.SourcesSuccessful++
	job.ArticlesFound += len(candidates)

	accepted := 0
	for i := range candidates {
		if accepted >= limit {
			break
		}
		c := &candidates[i]
		ok, err := o.processCandidate(ctx, job, &source, c)
		if err != nil {
			job.RecordSourceError(source.Name, fmt.Errorf("%s: %w", c.URL, err))
			continue
		}
		if ok {
			accepted++
		}
	}
	// Per-candidate outcomes were already rolled up; this records the request
	o.recordMetric(source.ID, sourceLanguage(&source), 0, 0, 0, 1, 0)
	return accepted
}

// processCandidate runs one candidate through the full pipeline. Returns true
// when an article was persisted.
func (o *Orchestrator) processCandidate(ctx context.Context, job *models.ContentAcquisitionJob, source *models.ContentSource, c *services.ContentCandidate) (bool, error) {
	c.URL = strings.TrimSpace(c.URL)
	c.Title = strings.TrimSpace(c.Title)
	if c.URL == "" || c.Title == "" {
		job.ArticlesRejected++
		return false, nil
	}

	// Thin feed entries carry a summary only; pull the full document
	var rawHTML []byte
	if WordCount(c.Content) < fullFetchThreshold {
		body, err := o.Fetcher.Get(ctx, c.URL)
		if err != nil {
			job.ArticlesRejected++
			o.recordMetric(source.ID, c.Language, 0, 0, 1, 0, 0)
			return false, fmt.Errorf("full-content fetch failed: %w", err)
		}
		rawHTML = body
		if text := o.Fetcher.ExtractText(string(body)); text != "" {
			c.Content = text
		}
	}

	c.TopicCategory = services.ClassifyTopic(c.Title, c.Content)

	dup, err := o.Dedup.CheckDuplicate(c)
	if err != nil {
		return false, fmt.Errorf("duplicate check failed: %w", err)
	}
	if dup.IsDuplicate {
		job.ArticlesDuplicated++
		o.recordMetric(source.ID, c.Language, 0, 1, 0, 0, 0)
		return false, nil
	}

	if outcome := o.Validator.Validate(c.Language, c.Title, c.Content); !outcome.Valid {
		job.ArticlesRejected++
		o.recordMetric(source.ID, c.Language, 0, 0, 1, 0, 0)
		log.Printf("⚠️  candidate rejected (%s): %s", outcome.Reason, c.URL)
		return false, nil
	}

	article := &models.Article{
		Title:           c.Title,
		Slug:            o.uniqueSlug(c.Title),
		URL:             c.URL,
		Content:         c.Content,
		Language:        c.Language,
		WordCount:       WordCount(c.Content),
		LetterCount:     LetterCount(c.Content),
		TopicCategory:   string(c.TopicCategory),
		SourceID:        &source.ID,
		PublicationDate: c.PublicationDate,
		Tags:            c.Tags,
		QuizStatus:      models.QuizStatusPending,
	}
	if err := o.DB.Create(article).Error; err != nil {
		return false, fmt.Errorf("failed to persist article: %w", err)
	}

	_, isDup, err := o.Dedup.CreateFingerprint(c, &article.ID)
	if err != nil {
		o.DB.Delete(article)
		return false, fmt.Errorf("failed to record fingerprint: %w", err)
	}
	if isDup {
		// A concurrent run fingerprinted the same content first
		o.DB.Delete(article)
		job.ArticlesDuplicated++
		o.recordMetric(source.ID, c.Language, 0, 1, 0, 0, 0)
		return false, nil
	}

	o.archiveSnapshot(ctx, article, rawHTML)
	o.QuizGen.Enqueue(ctx, article.ID)

	job.ArticlesProcessed++
	o.recordMetric(source.ID, c.Language, 1, 0, 0, 0, 0)
	log.Printf("📰 accepted article %q (%s, %d words, topic=%s)",
		article.Title, article.Language, article.WordCount, article.TopicCategory)
	return true, nil
}

// archiveSnapshot stores the source document (raw HTML when fetched, plain
// text otherwise) and stamps the object key on the article. Best-effort.
func (o *Orchestrator) archiveSnapshot(ctx context.Context, article *models.Article, rawHTML []byte) {
	if o.Archiver == nil {
		return
	}

	body := rawHTML
	contentType := "text/html; charset=utf-8"
	ext := "html"
	if len(body) == 0 {
		body = []byte(article.Content)
		contentType = "text/plain; charset=utf-8"
		ext = "txt"
	}

	key := fmt.Sprintf("snapshots/%s/%s.%s", time.Now().Format("2006-01-02"), article.Slug, ext)
	url, err := o.Archiver.Archive(ctx, key, body, contentType)
	if err != nil {
		log.Printf("⚠️  snapshot archive failed for %s: %v", article.Slug, err)
		return
	}
	if err := o.DB.Model(article).Update("snapshot_url", url).Error; err != nil {
		log.Printf("⚠️  failed to store snapshot url for %s: %v", article.Slug, err)
	}
}

// uniqueSlug derives a URL slug from the title, suffixing on collision.
func (o *Orchestrator) uniqueSlug(title string) string {
	base := slug.Make(title)
	if base == "" {
		base = "article"
	}
	if len(base) > 80 {
		base = base[:80]
	}

	var count int64
	o.DB.Model(&models.Article{}).Where("slug = ?", base).Count(&count)
	if count == 0 {
		return base
	}
	return base + "-" + uuid.NewString()[:8]
}

// recordMetric upserts the daily per-source/language rollup.
func (o *Orchestrator) recordMetric(sourceID, language string, accepted, duplicated, rejected, requests, failed int) {
	if language == "" {
		language = "en"
	}
	metric := models.AcquisitionMetric{
		Date:               startOfToday(),
		SourceID:           sourceID,
		Language:           language,
		ArticlesAccepted:   accepted,
		ArticlesDuplicated: duplicated,
		ArticlesRejected:   rejected,
		RequestsMade:       requests,
		RequestsFailed:     failed,
	}
	err := o.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}, {Name: "source_id"}, {Name: "language"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"articles_accepted":   gorm.Expr("acquisition_metrics.articles_accepted + ?", accepted),
			"articles_duplicated": gorm.Expr("acquisition_metrics.articles_duplicated + ?", duplicated),
			"articles_rejected":   gorm.Expr("acquisition_metrics.articles_rejected + ?", rejected),
			"requests_made":       gorm.Expr("acquisition_metrics.requests_made + ?", requests),
			"requests_failed":     gorm.Expr("acquisition_metrics.requests_failed + ?", failed),
		}),
	}).Create(&metric).Error
	if err != nil {
		log.Printf("⚠️  failed to upsert acquisition metric: %v", err)
	}
}

func startOfToday() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
