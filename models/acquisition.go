package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus is the lifecycle state of an acquisition run
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ContentAcquisitionJob is one row per orchestration run-attempt.
type ContentAcquisitionJob struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	TriggeredBy string    `gorm:"type:varchar(32)" json:"triggered_by"` // "scheduler" or admin user id
	Languages   []string  `gorm:"serializer:json;type:jsonb" json:"languages"`
	MaxArticles int       `json:"max_articles"`
	Status      JobStatus `gorm:"type:varchar(16);default:'running';index" json:"status"`

	SourcesProcessed   int `json:"sources_processed" gorm:"default:0"`
	SourcesSuccessful  int `json:"sources_successful" gorm:"default:0"`
	ArticlesFound      int `json:"articles_found" gorm:"default:0"`
	ArticlesProcessed  int `json:"articles_processed" gorm:"default:0"`
	ArticlesDuplicated int `json:"articles_duplicated" gorm:"default:0"`
	ArticlesRejected   int `json:"articles_rejected" gorm:"default:0"`

	Errors []string `gorm:"serializer:json;type:jsonb" json:"errors"`

	StartedAt   time.Time  `gorm:"autoCreateTime" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Timestamps
}

// Complete marks the run finished; the caller persists the row.
func (j *ContentAcquisitionJob) Complete(now time.Time) {
	j.Status = JobStatusCompleted
	t := now
	j.CompletedAt = &t
}

// Fail marks the run failed with a terminal error; the caller persists the row.
func (j *ContentAcquisitionJob) Fail(now time.Time, reason string) {
	j.Status = JobStatusFailed
	t := now
	j.CompletedAt = &t
	j.Errors = append(j.Errors, reason)
}

// RecordSourceError appends a per-source failure without aborting the run.
func (j *ContentAcquisitionJob) RecordSourceError(sourceName string, err error) {
	j.Errors = append(j.Errors, sourceName+": "+err.Error())
}

// AcquisitionMetric is a daily rollup per source/language, aggregated by the
// metrics scheduler from fingerprints and job rows.
type AcquisitionMetric struct {
	ID       string    `gorm:"primaryKey;type:uuid" json:"id"`
	Date     time.Time `gorm:"type:date;not null;index:idx_metric_day,unique" json:"date"`
	SourceID string    `gorm:"type:uuid;not null;index:idx_metric_day,unique" json:"source_id"`
	Language string    `gorm:"type:varchar(8);not null;index:idx_metric_day,unique" json:"language"`

	ArticlesAccepted   int `json:"articles_accepted" gorm:"default:0"`
	ArticlesDuplicated int `json:"articles_duplicated" gorm:"default:0"`
	ArticlesRejected   int `json:"articles_rejected" gorm:"default:0"`
	RequestsMade       int `json:"requests_made" gorm:"default:0"`
	RequestsFailed     int `json:"requests_failed" gorm:"default:0"`

	Timestamps
}

func (j *ContentAcquisitionJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

func (m *AcquisitionMetric) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
