package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"verifast/models"

	"gorm.io/gorm"
)

// Dedup thresholds
const (
	titleSimilarityThreshold    = 0.8
	semanticSimilarityThreshold = 0.90
	titleSimilarityWindow       = 7 * 24 * time.Hour
	semanticSimilarityWindow    = 3 * 24 * time.Hour
	topicSaturationLimit        = 4 // fingerprints per (topic, language) per day
	sourceDiversityLimit        = 2 // fingerprints per source per topic+language per day
	semanticVectorDim           = 256
	semanticContentHead         = 600

	// Content length bounds. Semantically a quality rejection, but reported
	// through the single duplicate-check channel.
	minCandidateChars = 300
	maxCandidateChars = 50000
)

// ContentCandidate is the normalized DTO produced by a source adapter. It is
// transient: either discarded or materialized into an Article + fingerprint.
type ContentCandidate struct {
	SourceID        string
	SourceType      models.SourceType
	URL             string
	Title           string
	Content         string
	Language        string
	PublicationDate *time.Time
	Tags            []string
	TopicCategory   TopicCategory // set by the pipeline, not the adapter
}

// DupResult is the outcome of a duplicate check.
type DupResult struct {
	IsDuplicate bool   `json:"is_duplicate"`
	Reason      string `json:"reason,omitempty"`
	Details     string `json:"details,omitempty"`
}

// Deduplicator runs hash-based exact-duplicate detection, topic saturation
// and lightweight semantic near-duplicate detection against the fingerprint
// table. CheckDuplicate is a dry run; accepted candidates must be recorded
// with CreateFingerprint in a separate step.
type Deduplicator struct {
	DB *gorm.DB
}

func NewDeduplicator(db *gorm.DB) *Deduplicator {
	return &Deduplicator{DB: db}
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(s))))
	return hex.EncodeToString(sum[:])
}

// CheckDuplicate runs the ordered checks; first match wins.
func (d *Deduplicator) CheckDuplicate(c *ContentCandidate) (*DupResult, error) {
	urlHash := hashHex(c.URL)
	contentHash := hashHex(c.Content)

	// 1. Exact URL match
	var count int64
	if err := d.DB.Model(&models.ContentFingerprint{}).
		Where("url_hash = ?", urlHash).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return &DupResult{IsDuplicate: true, Reason: "Exact URL duplicate", Details: c.URL}, nil
	}

	// 2. Exact content match
	if err := d.DB.Model(&models.ContentFingerprint{}).
		Where("content_hash = ?", contentHash).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return &DupResult{IsDuplicate: true, Reason: "Exact content duplicate"}, nil
	}

	// 3. Title similarity against same-language fingerprints, last 7 days
	var recentTitles []models.ContentFingerprint
	err := d.DB.Select("title").
		Where("language = ? AND first_seen >= ?", c.Language, time.Now().Add(-titleSimilarityWindow)).
		Find(&recentTitles).Error
	if err != nil {
		return nil, err
	}
	for _, fp := range recentTitles {
		if ratio := TitleSimilarity(c.Title, fp.Title); ratio >= titleSimilarityThreshold {
			return &DupResult{
				IsDuplicate: true,
				Reason:      "Similar title",
				Details:     fmt.Sprintf("ratio %.2f vs %q", ratio, fp.Title),
			}, nil
		}
	}

	// 4. Topic saturation for today
	today := startOfDay(time.Now())
	if err := d.DB.Model(&models.ContentFingerprint{}).
		Where("topic_category = ? AND language = ? AND first_seen >= ?", string(c.TopicCategory), c.Language, today).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count >= topicSaturationLimit {
		return &DupResult{
			IsDuplicate: true,
			Reason:      "Topic saturated",
			Details:     fmt.Sprintf("%d articles for %s/%s today", count, c.TopicCategory, c.Language),
		}, nil
	}

	// 5. Content length bounds
	if len(c.Content) < minCandidateChars || len(c.Content) > maxCandidateChars {
		return &DupResult{
			IsDuplicate: true,
			Reason:      "Content length out of bounds",
			Details:     fmt.Sprintf("%d chars, want [%d,%d]", len(c.Content), minCandidateChars, maxCandidateChars),
		}, nil
	}

	// 6. Source diversity for this topic+language today
	if c.SourceID != "" {
		if err := d.DB.Model(&models.ContentFingerprint{}).
			Where("source_id = ? AND topic_category = ? AND language = ? AND first_seen >= ?",
				c.SourceID, string(c.TopicCategory), c.Language, today).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count >= sourceDiversityLimit {
			return &DupResult{
				IsDuplicate: true,
				Reason:      "Source diversity limit",
				Details:     fmt.Sprintf("%d articles from this source for %s/%s today", count, c.TopicCategory, c.Language),
			}, nil
		}
	}

	// 7. Semantic near-duplicate: hashed bag-of-words cosine against
	// same-topic/language fingerprints from the last 3 days. A cheap
	// approximation — no embedding model, to keep the pipeline fast.
	vector := SemanticVector(c.Title, c.Content)
	var recent []models.ContentFingerprint
	err = d.DB.Select("semantic_vector", "title").
		Where("topic_category = ? AND language = ? AND first_seen >= ?",
			string(c.TopicCategory), c.Language, time.Now().Add(-semanticSimilarityWindow)).
		Find(&recent).Error
	if err != nil {
		return nil, err
	}
	for _, fp := range recent {
		if sim := CosineSimilarity(vector, fp.SemanticVector); sim >= semanticSimilarityThreshold {
			return &DupResult{
				IsDuplicate: true,
				Reason:      "High semantic similarity",
				Details:     fmt.Sprintf("cosine %.2f vs %q", sim, fp.Title),
			}, nil
		}
	}

	return &DupResult{}, nil
}

// CreateFingerprint records an accepted (or rejected-but-tracked) candidate.
// A unique-constraint violation on the hash tuple means a concurrent run won
// the race; the caller must treat that as "duplicate after all".
func (d *Deduplicator) CreateFingerprint(c *ContentCandidate, articleID *string) (*models.ContentFingerprint, bool, error) {
	fp := models.ContentFingerprint{
		URLHash:        hashHex(c.URL),
		TitleHash:      hashHex(c.Title),
		ContentHash:    hashHex(c.Content),
		Title:          c.Title,
		TopicCategory:  string(c.TopicCategory),
		Language:       c.Language,
		ArticleID:      articleID,
		SemanticVector: SemanticVector(c.Title, c.Content),
	}
	if c.SourceID != "" {
		sid := c.SourceID
		fp.SourceID = &sid
	}

	if err := d.DB.Create(&fp).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, true, nil
		}
		return nil, false, err
	}
	return &fp, false, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// CleanupFingerprints deletes fingerprints older than the retention window
// that never materialized into an article.
func (d *Deduplicator) CleanupFingerprints(retention time.Duration) (int64, error) {
	res := d.DB.Where("article_id IS NULL AND first_seen < ?", time.Now().Add(-retention)).
		Delete(&models.ContentFingerprint{})
	return res.RowsAffected, res.Error
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// TitleSimilarity is a Ratcliff/Obershelp sequence-matcher ratio over
// lowercased runes: 2*matches / total length, in [0,1].
func TitleSimilarity(a, b string) float64 {
	ra := []rune(strings.ToLower(strings.TrimSpace(a)))
	rb := []rune(strings.ToLower(strings.TrimSpace(b)))
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	matches := matchingChars(ra, rb)
	return 2 * float64(matches) / float64(len(ra)+len(rb))
}

// matchingChars recursively sums longest-common-substring matches, the
// Ratcliff/Obershelp way.
func matchingChars(a, b []rune) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingChars(a[:ai], b[:bi])
	total += matchingChars(a[ai+size:], b[bi+size:])
	return total
}

func longestCommonSubstring(a, b []rune) (ai, bi, size int) {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					ai = i - size
					bi = j - size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return ai, bi, size
}

// SemanticVector builds the fixed-dimension hashed bag-of-words feature
// vector over title + the first 600 content chars, L2-normalized.
func SemanticVector(title, content string) []float32 {
	text := strings.ToLower(title + " " + contentHead(content, semanticContentHead))
	vector := make([]float32, semanticVectorDim)
	for _, token := range strings.FieldsFunc(text, func(r rune) bool { return !isWordChar(r) }) {
		if len(token) < 2 {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(token))
		vector[h.Sum32()%semanticVectorDim]++
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vector
	}
	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
	return vector
}

// CosineSimilarity between two L2-normalized vectors is their dot product.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
