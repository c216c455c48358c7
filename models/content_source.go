package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SourceType selects the adapter used to fetch from a source
type SourceType string

const (
	SourceTypeRSS      SourceType = "rss"
	SourceTypeNewsData SourceType = "newsdata"
	SourceTypeGNews    SourceType = "gnews"
	SourceTypeNewsAPI  SourceType = "newsapi"
)

// SourceStatus is the operational state of a content source
type SourceStatus string

const (
	SourceStatusActive      SourceStatus = "active"
	SourceStatusError       SourceStatus = "error"
	SourceStatusRateLimited SourceStatus = "rate_limited"
	SourceStatusMaintenance SourceStatus = "maintenance"
)

// SourcePriority is the configured tier of a source
type SourcePriority string

const (
	PriorityHigh   SourcePriority = "high"
	PriorityMedium SourcePriority = "medium"
	PriorityLow    SourcePriority = "low"
)

// ContentSource is an external feed/API registration with rate-limit counters
// and health fields. Health score is derived on read (services.SourceHealthRanker),
// not stored.
type ContentSource struct {
	ID         string         `gorm:"primaryKey;type:uuid" json:"id"`
	Name       string         `gorm:"not null" json:"name"`
	SourceType SourceType     `gorm:"type:varchar(16);not null;index" json:"source_type"`
	Endpoint   string         `gorm:"type:text;not null" json:"endpoint"` // feed URL or API base URL
	APIKey     string         `gorm:"type:text" json:"-"`
	Languages  []string       `gorm:"serializer:json;type:jsonb" json:"languages"`
	Priority   SourcePriority `gorm:"type:varchar(8);default:'medium'" json:"priority"`
	IsActive   bool           `gorm:"default:true" json:"is_active"`

	// Rate limiting (wall-clock windows keyed off LastRequestTime)
	RequestsPerHour     int        `json:"requests_per_hour" gorm:"default:60"`
	RequestsPerDay      int        `json:"requests_per_day" gorm:"default:500"`
	CurrentHourRequests int        `json:"current_hour_requests" gorm:"default:0"`
	CurrentDayRequests  int        `json:"current_day_requests" gorm:"default:0"`
	LastRequestTime     *time.Time `json:"last_request_time,omitempty"`

	// Health
	ConsecutiveFailures int          `json:"consecutive_failures" gorm:"default:0"`
	LastSuccessfulFetch *time.Time   `json:"last_successful_fetch,omitempty"`
	Status              SourceStatus `gorm:"type:varchar(16);default:'active'" json:"status"`

	Timestamps
}

// resetWindows rolls the hour/day counters forward when their wall-clock
// window has elapsed since the last recorded request.
func (s *ContentSource) resetWindows(now time.Time) {
	if s.LastRequestTime == nil {
		return
	}
	if now.Sub(*s.LastRequestTime) >= time.Hour {
		s.CurrentHourRequests = 0
	}
	if now.Sub(*s.LastRequestTime) >= 24*time.Hour || now.Day() != s.LastRequestTime.Day() {
		s.CurrentDayRequests = 0
	}
}

// CanMakeRequest reports whether a fetch is allowed under the configured
// hour/day budgets.
func (s *ContentSource) CanMakeRequest(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	s.resetWindows(now)
	return s.CurrentHourRequests < s.RequestsPerHour && s.CurrentDayRequests < s.RequestsPerDay
}

// RecordRequest updates counters and health fields after a fetch attempt.
// The caller persists the mutated row.
func (s *ContentSource) RecordRequest(success bool, now time.Time) {
	s.resetWindows(now)
	s.CurrentHourRequests++
	s.CurrentDayRequests++
	t := now
	s.LastRequestTime = &t

	if success {
		s.ConsecutiveFailures = 0
		s.LastSuccessfulFetch = &t
		if s.Status == SourceStatusError || s.Status == SourceStatusRateLimited {
			s.Status = SourceStatusActive
		}
		return
	}

	s.ConsecutiveFailures++
	if s.ConsecutiveFailures >= 5 {
		s.Status = SourceStatusError
	}
}

func (s *ContentSource) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
