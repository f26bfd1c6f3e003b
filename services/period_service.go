package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"officer-review-api/models"

	"gorm.io/gorm"
)

// PeriodService answers read-only questions about review periods.
type PeriodService struct {
	db  *gorm.DB
	now func() time.Time
}

// PeriodProgress summarises assignment completion in a period.
type PeriodProgress struct {
	Period         models.ReviewPeriod `json:"period"`
	IsCurrent      bool                `json:"is_current"`
	Total          int64               `json:"total_assignments"`
	Completed      int64               `json:"completed_assignments"`
	Pending        int64               `json:"pending_assignments"`
	CompletionRate float64             `json:"completion_rate"`
}

// NewPeriodService instantiates the service.
func NewPeriodService(db *gorm.DB) *PeriodService {
	return &PeriodService{db: db, now: utcNow}
}

// Active returns the most recently started active period. Several periods may
// be active at once; the others are ignored.
func (s *PeriodService) Active(ctx context.Context) (*models.ReviewPeriod, error) {
	var period models.ReviewPeriod
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("start_date DESC").Order("period_id DESC").
		First(&period).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPeriodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active period: %w", err)
	}
	return &period, nil
}

// Progress counts the period's assignments and how many are completed.
func (s *PeriodService) Progress(ctx context.Context, periodID int) (*PeriodProgress, error) {
	db := s.db.WithContext(ctx)
	var period models.ReviewPeriod
	if err := db.Where("period_id = ?", periodID).First(&period).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		return nil, fmt.Errorf("failed to load period: %w", err)
	}

	var counts struct {
		Total     int64
		Completed int64
	}
	if err := db.Model(&models.Assignment{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN is_completed THEN 1 ELSE 0 END), 0) AS completed").
		Where("period_id = ?", periodID).
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}

	return &PeriodProgress{
		Period:         period,
		IsCurrent:      period.IsCurrent(s.now()),
		Total:          counts.Total,
		Completed:      counts.Completed,
		Pending:        counts.Total - counts.Completed,
		CompletionRate: models.CompletionRate(counts.Completed, counts.Total),
	}, nil
}
