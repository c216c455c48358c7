package services

import (
	"sort"
	"time"

	"verifast/models"

	"gorm.io/gorm"
)

var priorityWeight = map[models.SourcePriority]float64{
	models.PriorityHigh:   100,
	models.PriorityMedium: 60,
	models.PriorityLow:    30,
}

var baseQuota = map[models.SourcePriority]int{
	models.PriorityHigh:   12,
	models.PriorityMedium: 8,
	models.PriorityLow:    5,
}

const minSourceQuota = 2

// RankedSource pairs a source with its derived scores for one run.
type RankedSource struct {
	Source             models.ContentSource
	HealthScore        float64
	PerformanceScore   float64
	OrchestrationScore float64
	Quota              int
}

// SourceHealthRanker scores and orders sources by priority, health and
// recent performance. Scores are derived on read, never stored.
type SourceHealthRanker struct {
	DB *gorm.DB
}

func NewSourceHealthRanker(db *gorm.DB) *SourceHealthRanker {
	return &SourceHealthRanker{DB: db}
}

// HealthScore starts at 100 and decays with staleness, failures and status.
func HealthScore(s *models.ContentSource, now time.Time) float64 {
	score := 100.0

	if s.LastSuccessfulFetch != nil {
		switch since := now.Sub(*s.LastSuccessfulFetch); {
		case since > 24*time.Hour:
			score -= 50
		case since > 12*time.Hour:
			score -= 25
		case since > 6*time.Hour:
			score -= 10
		}
	}

	score -= 10 * float64(s.ConsecutiveFailures)

	if !s.IsActive {
		score -= 30
	}

	switch s.Status {
	case models.SourceStatusError:
		score -= 40
	case models.SourceStatusRateLimited:
		score -= 20
	case models.SourceStatusMaintenance:
		score -= 15
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// performanceScore blends article processing rate and request success rate
// over the trailing 7 days of metrics. Sources with no history score a
// neutral 50.
func (r *SourceHealthRanker) performanceScore(sourceID string, now time.Time) float64 {
	var metrics []models.AcquisitionMetric
	err := r.DB.Where("source_id = ? AND date >= ?", sourceID, now.AddDate(0, 0, -7)).
		Find(&metrics).Error
	if err != nil || len(metrics) == 0 {
		return 50
	}

	var accepted, handled, requests, failed int
	for _, m := range metrics {
		accepted += m.ArticlesAccepted
		handled += m.ArticlesAccepted + m.ArticlesDuplicated + m.ArticlesRejected
		requests += m.RequestsMade
		failed += m.RequestsFailed
	}

	processingRate := 0.0
	if handled > 0 {
		processingRate = float64(accepted) / float64(handled)
	}
	successRate := 0.0
	if requests > 0 {
		successRate = float64(requests-failed) / float64(requests)
	}
	return (processingRate*0.5 + successRate*0.5) * 100
}

// Score computes the full ranked view of one source.
func (r *SourceHealthRanker) Score(s models.ContentSource, now time.Time) RankedSource {
	health := HealthScore(&s, now)
	perf := r.performanceScore(s.ID, now)
	weight := priorityWeight[s.Priority]

	quota := int(float64(baseQuota[s.Priority]) * (health / 100) * (perf / 100))
	if quota < minSourceQuota {
		quota = minSourceQuota
	}

	return RankedSource{
		Source:             s,
		HealthScore:        health,
		PerformanceScore:   perf,
		OrchestrationScore: 0.3*weight + 0.4*health + 0.3*perf,
		Quota:              quota,
	}
}

// Rank loads active sources serving any of the requested languages and
// returns them sorted by descending orchestration score.
func (r *SourceHealthRanker) Rank(languages []string, now time.Time) ([]RankedSource, error) {
	var sources []models.ContentSource
	if err := r.DB.Where("is_active = ?", true).Find(&sources).Error; err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(languages))
	for _, l := range languages {
		wanted[l] = true
	}

	var ranked []RankedSource
	for _, s := range sources {
		if len(wanted) > 0 && !servesAny(s.Languages, wanted) {
			continue
		}
		ranked = append(ranked, r.Score(s, now))
	}

	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].OrchestrationScore > ranked[j].OrchestrationScore
	})
	return ranked, nil
}

func servesAny(langs []string, wanted map[string]bool) bool {
	for _, l := range langs {
		if wanted[l] {
			return true
		}
	}
	return false
}
