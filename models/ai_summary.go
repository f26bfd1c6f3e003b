package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SummaryStatusPending    = "pending"
	SummaryStatusProcessing = "processing"
	SummaryStatusCompleted  = "completed"
	SummaryStatusError      = "error"
)

// AISummaryStatus tracks summary generation for one officer in one period and
// keeps the last generated result.
type AISummaryStatus struct {
	ID           int            `gorm:"primaryKey;column:id" json:"id"`
	OfficerID    int            `gorm:"column:officer_id;uniqueIndex:idx_summary_officer_period,priority:1" json:"officer_id"`
	PeriodID     int            `gorm:"column:period_id;uniqueIndex:idx_summary_officer_period,priority:2" json:"period_id"`
	Status       string         `gorm:"column:status;size:20" json:"status"`
	Progress     int            `gorm:"column:progress" json:"progress"`
	ErrorMessage *string        `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	SummaryText  *string        `gorm:"column:summary_text;type:text" json:"summary_text,omitempty"`
	Themes       datatypes.JSON `gorm:"column:themes" json:"themes,omitempty"`
	Sentiment    *string        `gorm:"column:sentiment;size:20" json:"sentiment,omitempty"`
	IsFallback   bool           `gorm:"column:is_fallback" json:"is_fallback"`
	StartedAt    time.Time      `gorm:"column:started_at" json:"started_at"`
	CompletedAt  *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedBy    int            `gorm:"column:created_by" json:"created_by"`
}

func (AISummaryStatus) TableName() string {
	return "ai_summary_status"
}
