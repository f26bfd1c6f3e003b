package models

import (
	"math"
	"time"
)

// ReviewPeriod is a bounded window in which officers are assessed.
type ReviewPeriod struct {
	PeriodID    int        `gorm:"primaryKey;column:period_id" json:"period_id"`
	Name        string     `gorm:"column:name" json:"name"`
	Description *string    `gorm:"column:description" json:"description,omitempty"`
	StartDate   time.Time  `gorm:"column:start_date" json:"start_date"`
	EndDate     time.Time  `gorm:"column:end_date" json:"end_date"`
	DueDate     *time.Time `gorm:"column:due_date" json:"due_date,omitempty"`
	IsActive    bool       `gorm:"column:is_active" json:"is_active"`
	CreatedBy   int        `gorm:"column:created_by" json:"created_by"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`

	Assignments []Assignment `gorm:"foreignKey:PeriodID;constraint:OnDelete:CASCADE" json:"-"`
	Projects    []Project    `gorm:"foreignKey:PeriodID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ReviewPeriod) TableName() string {
	return "review_periods"
}

// IsCurrent reports whether the period is active and now falls within its dates.
func (p ReviewPeriod) IsCurrent(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	day := truncateDay(now)
	return !day.Before(truncateDay(p.StartDate)) && !day.After(truncateDay(p.EndDate))
}

// Deadline returns the due date when set, otherwise the end date.
func (p ReviewPeriod) Deadline() time.Time {
	if p.DueDate != nil {
		return *p.DueDate
	}
	return p.EndDate
}

// CompletionRate is the percentage of completed assignments, rounded to one
// decimal. A period without assignments is at 0.
func CompletionRate(completed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*1000) / 10
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
