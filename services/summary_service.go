package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"officer-review-api/models"
	"officer-review-api/utils"

	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrSummaryNotFound      = errors.New("no summary has been generated for this officer and period")
	ErrSummaryInvalidOutput = errors.New("summarizer returned malformed output")
)

var fallbackThemes = []string{"Professional Performance", "Leadership", "Strategic Thinking"}

var validSentiments = map[string]bool{
	"positive": true,
	"neutral":  true,
	"negative": true,
	"mixed":    true,
}

const (
	maxFeedbackItems = 50
	maxFeedbackRunes = 500
)

// SummaryRequest is the feedback handed to a Summarizer.
type SummaryRequest struct {
	OfficerName  string
	PeriodName   string
	Feedback     []string
	AverageScore *float64
}

// SummaryResult is a structured summary of an officer's reviews.
type SummaryResult struct {
	ExecutiveSummary string   `json:"executive_summary"`
	Themes           []string `json:"major_themes"`
	Sentiment        string   `json:"sentiment"`
	IsFallback       bool     `json:"is_fallback"`
}

// Summarizer turns free-text feedback into a SummaryResult.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (*SummaryResult, error)
}

func validateSummary(res *SummaryResult) error {
	if res == nil || strings.TrimSpace(res.ExecutiveSummary) == "" {
		return fmt.Errorf("%w: empty executive summary", ErrSummaryInvalidOutput)
	}
	if len(res.Themes) == 0 || len(res.Themes) > 10 {
		return fmt.Errorf("%w: expected 1-10 themes, got %d", ErrSummaryInvalidOutput, len(res.Themes))
	}
	for _, theme := range res.Themes {
		if strings.TrimSpace(theme) == "" {
			return fmt.Errorf("%w: blank theme", ErrSummaryInvalidOutput)
		}
	}
	res.Sentiment = strings.ToLower(strings.TrimSpace(res.Sentiment))
	if !validSentiments[res.Sentiment] {
		return fmt.Errorf("%w: unknown sentiment %q", ErrSummaryInvalidOutput, res.Sentiment)
	}
	return nil
}

// fallbackSummary is used whenever the summarizer cannot produce a usable result.
func fallbackSummary(req SummaryRequest) *SummaryResult {
	text := fmt.Sprintf("%s received feedback from %d review responses during %s. An automated summary is not available.",
		req.OfficerName, len(req.Feedback), req.PeriodName)
	if req.AverageScore != nil {
		text = fmt.Sprintf("%s demonstrates %s performance with consistent results across all evaluation areas.",
			req.OfficerName, performanceLabel(*req.AverageScore))
	}
	return &SummaryResult{
		ExecutiveSummary: text,
		Themes:           append([]string(nil), fallbackThemes...),
		Sentiment:        "neutral",
		IsFallback:       true,
	}
}

func performanceLabel(avg float64) string {
	switch {
	case avg >= 4.0:
		return "excellent"
	case avg >= 3.0:
		return "good"
	case avg >= 2.0:
		return "satisfactory"
	default:
		return "needs improvement"
	}
}

// SummaryService produces and stores review summaries. Concurrent requests for
// the same officer and period share one generation.
type SummaryService struct {
	db         *gorm.DB
	summarizer Summarizer
	recorder   *ActivityRecorder
	observer   Observer
	timeout    time.Duration
	group      singleflight.Group
	now        func() time.Time
}

// NewSummaryService instantiates the service. A nil summarizer always yields
// the fallback summary.
func NewSummaryService(db *gorm.DB, summarizer Summarizer, recorder *ActivityRecorder, timeout time.Duration) *SummaryService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SummaryService{
		db:         db,
		summarizer: summarizer,
		recorder:   recorder,
		observer:   noopObserver{},
		timeout:    timeout,
		now:        utcNow,
	}
}

// SetObserver wires summary metrics.
func (s *SummaryService) SetObserver(o Observer) {
	s.observer = observerOrNoop(o)
}

// Status returns the tracking row for the officer's summary.
func (s *SummaryService) Status(ctx context.Context, periodID, officerID int) (*models.AISummaryStatus, error) {
	row, err := s.findStatus(s.db.WithContext(ctx), periodID, officerID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrSummaryNotFound
	}
	return row, nil
}

// Generate summarizes the completed external reviews of an officer. Summarizer
// failures, timeouts and malformed output produce the fallback summary rather
// than an error.
func (s *SummaryService) Generate(ctx context.Context, periodID, officerID, adminID int) (*SummaryResult, error) {
	key := fmt.Sprintf("%d:%d", periodID, officerID)
	bg := persistentContext(ctx)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.generate(bg, periodID, officerID, adminID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SummaryResult), nil
}

func (s *SummaryService) generate(ctx context.Context, periodID, officerID, adminID int) (*SummaryResult, error) {
	start := time.Now()
	db := s.db.WithContext(ctx)

	var period models.ReviewPeriod
	if err := db.Where("period_id = ?", periodID).First(&period).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		return nil, fmt.Errorf("failed to load period %d: %w", periodID, err)
	}
	var officer models.Officer
	if err := db.Where("officer_id = ?", officerID).First(&officer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOfficerNotFound
		}
		return nil, fmt.Errorf("failed to load officer %d: %w", officerID, err)
	}

	status, err := s.begin(db, periodID, officerID, adminID)
	if err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, EventInput{
		Type:        models.EventAIReportGenerationStarted,
		OfficerID:   officerID,
		PeriodID:    periodID,
		ActorID:     adminID,
		Description: fmt.Sprintf("Summary generation started for %s", officer.Name),
		Status:      models.EventStatusPending,
	})

	req, err := s.collect(db, officer, period)
	if err != nil {
		s.fail(ctx, db, status, adminID, err)
		return nil, err
	}
	s.setProgress(db, status, 50)

	result, reason := s.summarize(ctx, req)
	if reason != nil {
		log.Printf("summary: using fallback for officer %d period %d: %v", officerID, periodID, reason)
		s.recorder.Record(ctx, EventInput{
			Type:        models.EventAIReportFailed,
			OfficerID:   officerID,
			PeriodID:    periodID,
			ActorID:     adminID,
			Description: "Summarizer unavailable, fallback summary used",
			Status:      models.EventStatusFailed,
			Metadata:    map[string]interface{}{"reason": utils.Truncate(reason.Error(), 300)},
		})
	}

	if err := s.complete(db, status, result, reason); err != nil {
		s.fail(ctx, db, status, adminID, err)
		return nil, err
	}
	elapsed := time.Since(start)
	s.observer.SummaryGenerated(result.IsFallback, elapsed)
	s.recorder.Record(ctx, EventInput{
		Type:        models.EventAIReportGenerated,
		OfficerID:   officerID,
		PeriodID:    periodID,
		ActorID:     adminID,
		Description: fmt.Sprintf("Summary generated for %s", officer.Name),
		Metadata: map[string]interface{}{
			"is_fallback":    result.IsFallback,
			"feedback_items": len(req.Feedback),
			"elapsed_ms":     elapsed.Milliseconds(),
		},
	})
	return result, nil
}

// summarize returns the summarizer's result, or the fallback and the reason the
// summarizer's result was not used.
func (s *SummaryService) summarize(ctx context.Context, req SummaryRequest) (*SummaryResult, error) {
	if s.summarizer == nil {
		return fallbackSummary(req), errors.New("no summarizer configured")
	}
	if len(req.Feedback) == 0 {
		return fallbackSummary(req), errors.New("no completed feedback to summarize")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.summarizer.Summarize(callCtx, req)
	if err != nil {
		return fallbackSummary(req), err
	}
	if err := validateSummary(res); err != nil {
		return fallbackSummary(req), err
	}
	res.IsFallback = false
	return res, nil
}

func (s *SummaryService) collect(db *gorm.DB, officer models.Officer, period models.ReviewPeriod) (SummaryRequest, error) {
	req := SummaryRequest{OfficerName: officer.Name, PeriodName: period.Name}

	var responses []models.Response
	if err := db.Model(&models.Response{}).
		Joins("JOIN assignments ON assignments.assignment_id = responses.assignment_id").
		Where("assignments.period_id = ? AND assignments.officer_id = ? AND assignments.reviewer_id <> assignments.officer_id AND assignments.is_completed = ?",
			period.PeriodID, officer.OfficerID, true).
		Order("responses.response_id ASC").
		Find(&responses).Error; err != nil {
		return req, fmt.Errorf("failed to load review responses: %w", err)
	}

	var sum float64
	var scored int
	for _, r := range responses {
		if r.ResponseNumber != nil {
			sum += *r.ResponseNumber
			scored++
		}
		if r.HasText() && len(req.Feedback) < maxFeedbackItems {
			req.Feedback = append(req.Feedback, utils.Truncate(utils.SanitizeInput(*r.ResponseText), maxFeedbackRunes))
		}
	}
	if scored > 0 {
		avg := sum / float64(scored)
		req.AverageScore = &avg
	}
	return req, nil
}

func (s *SummaryService) findStatus(db *gorm.DB, periodID, officerID int) (*models.AISummaryStatus, error) {
	var rows []models.AISummaryStatus
	if err := db.Where("period_id = ? AND officer_id = ?", periodID, officerID).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load summary status: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// begin resets or creates the tracking row in the processing state.
func (s *SummaryService) begin(db *gorm.DB, periodID, officerID, adminID int) (*models.AISummaryStatus, error) {
	row, err := s.findStatus(db, periodID, officerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if row == nil {
		row = &models.AISummaryStatus{
			OfficerID: officerID,
			PeriodID:  periodID,
			Status:    models.SummaryStatusPending,
			StartedAt: now,
			CreatedBy: adminID,
		}
		if err := db.Create(row).Error; err != nil {
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, fmt.Errorf("failed to create summary status: %w", err)
			}
			existing, findErr := s.findStatus(db, periodID, officerID)
			if findErr != nil {
				return nil, findErr
			}
			if existing == nil {
				return nil, fmt.Errorf("failed to create summary status: %w", err)
			}
			row = existing
		}
	}

	row.Status = models.SummaryStatusProcessing
	row.Progress = 10
	row.ErrorMessage = nil
	row.StartedAt = now
	row.CompletedAt = nil
	row.CreatedBy = adminID
	if err := db.Model(&models.AISummaryStatus{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"status":        row.Status,
		"progress":      row.Progress,
		"error_message": nil,
		"started_at":    now,
		"completed_at":  nil,
		"created_by":    adminID,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to start summary: %w", err)
	}
	return row, nil
}

func (s *SummaryService) setProgress(db *gorm.DB, row *models.AISummaryStatus, progress int) {
	row.Progress = progress
	if err := db.Model(&models.AISummaryStatus{}).Where("id = ?", row.ID).Update("progress", progress).Error; err != nil {
		log.Printf("summary: failed to update progress for %d: %v", row.ID, err)
	}
}

func (s *SummaryService) complete(db *gorm.DB, row *models.AISummaryStatus, result *SummaryResult, reason error) error {
	themes, err := json.Marshal(result.Themes)
	if err != nil {
		return fmt.Errorf("failed to encode themes: %w", err)
	}
	now := s.now()
	updates := map[string]interface{}{
		"status":        models.SummaryStatusCompleted,
		"progress":      100,
		"summary_text":  result.ExecutiveSummary,
		"themes":        datatypes.JSON(themes),
		"sentiment":     result.Sentiment,
		"is_fallback":   result.IsFallback,
		"completed_at":  now,
		"error_message": nil,
	}
	if reason != nil {
		updates["error_message"] = utils.Truncate(reason.Error(), 1000)
	}
	if err := db.Model(&models.AISummaryStatus{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}
	return nil
}

func (s *SummaryService) fail(ctx context.Context, db *gorm.DB, row *models.AISummaryStatus, adminID int, cause error) {
	msg := utils.Truncate(cause.Error(), 1000)
	if err := db.Model(&models.AISummaryStatus{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"status":        models.SummaryStatusError,
		"error_message": msg,
		"completed_at":  s.now(),
	}).Error; err != nil {
		log.Printf("summary: failed to mark %d as errored: %v", row.ID, err)
	}
	s.recorder.Record(ctx, EventInput{
		Type:        models.EventAIReportFailed,
		OfficerID:   row.OfficerID,
		PeriodID:    row.PeriodID,
		ActorID:     adminID,
		Description: "Summary generation failed",
		Status:      models.EventStatusFailed,
		Metadata:    map[string]interface{}{"error": msg},
	})
}
