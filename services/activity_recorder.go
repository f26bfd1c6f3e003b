package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"officer-review-api/models"
	"officer-review-api/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultDedupWindow is how far back Record looks for an identical event.
const DefaultDedupWindow = 5 * time.Second

// EventInput describes one workflow event to append to the activity log.
type EventInput struct {
	Type         models.EventType
	OfficerID    int
	PeriodID     int
	ActorID      int
	ReviewerID   *int
	AssignmentID *int
	Description  string
	Status       models.EventStatus
	Metadata     map[string]interface{}
}

// ActivityRecorder appends workflow events to the audit log. Recording is best
// effort: failures are logged and never reach the caller.
type ActivityRecorder struct {
	db     *gorm.DB
	now    func() time.Time
	window time.Duration
}

// NewActivityRecorder instantiates the recorder. A non-positive window falls
// back to DefaultDedupWindow.
func NewActivityRecorder(db *gorm.DB, window time.Duration) *ActivityRecorder {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &ActivityRecorder{db: db, now: utcNow, window: window}
}

// Record writes the event and returns the stored row. When an identical event
// (same type, officer, actor and assignment) was recorded inside the dedup
// window, or the request's idempotency key already produced it, the existing
// row is returned instead. It returns nil when storage fails.
func (r *ActivityRecorder) Record(ctx context.Context, in EventInput) *models.ActivityEvent {
	if !in.Type.Known() {
		log.Printf("activity log: refusing unknown event type %q for officer %d", in.Type, in.OfficerID)
		return nil
	}
	db := r.db.WithContext(persistentContext(ctx))
	now := r.now()

	var key *string
	if raw := idempotencyKeyFromContext(ctx); raw != "" {
		scoped := scopedIdempotencyKey(raw, in)
		key = &scoped
		existing, err := r.findByKey(db, scoped)
		if err != nil {
			log.Printf("activity log: idempotency lookup failed for %s: %v", in.Type, err)
			return nil
		}
		if existing != nil {
			return existing
		}
	}

	existing, err := r.findRecent(db, in, now)
	if err != nil {
		log.Printf("activity log: dedup lookup failed for %s: %v", in.Type, err)
		return nil
	}
	if existing != nil {
		log.Printf("activity log: skipping duplicate %s for officer %d by actor %d", in.Type, in.OfficerID, in.ActorID)
		return existing
	}

	event := models.ActivityEvent{
		EventUID:       utils.NewEventUID(now),
		EventType:      in.Type,
		EventCategory:  in.Type.Category(),
		OfficerID:      in.OfficerID,
		PeriodID:       in.PeriodID,
		ReviewerID:     in.ReviewerID,
		AssignmentID:   in.AssignmentID,
		ActorID:        in.ActorID,
		Description:    in.Description,
		EventStatus:    in.Status,
		IdempotencyKey: key,
		Timestamp:      now,
	}
	if event.EventStatus == "" {
		event.EventStatus = models.EventStatusCompleted
	}
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			log.Printf("activity log: dropping unencodable metadata for %s: %v", in.Type, err)
		} else {
			event.Metadata = datatypes.JSON(raw)
		}
	}
	if info, ok := clientInfoFromContext(ctx); ok {
		if info.IPAddress != "" {
			ip := utils.Truncate(info.IPAddress, 45)
			event.IPAddress = &ip
		}
		if info.UserAgent != "" {
			ua := utils.Truncate(info.UserAgent, 500)
			event.UserAgent = &ua
		}
	}

	if err := db.Create(&event).Error; err != nil {
		if key != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, findErr := r.findByKey(db, *key); findErr == nil && existing != nil {
				return existing
			}
		}
		log.Printf("activity log: failed to record %s for officer %d: %v", in.Type, in.OfficerID, err)
		return nil
	}
	return &event
}

// scopedIdempotencyKey binds a request key to one event subject so a single
// request touching several officers keeps one row per officer.
func scopedIdempotencyKey(raw string, in EventInput) string {
	scoped := fmt.Sprintf("%s:%s:%d:%d", utils.Truncate(raw, 96), in.Type, in.OfficerID, in.ActorID)
	if in.AssignmentID != nil {
		scoped += fmt.Sprintf(":%d", *in.AssignmentID)
	}
	return scoped
}

func (r *ActivityRecorder) findByKey(db *gorm.DB, key string) (*models.ActivityEvent, error) {
	var rows []models.ActivityEvent
	if err := db.Where("idempotency_key = ?", key).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *ActivityRecorder) findRecent(db *gorm.DB, in EventInput, now time.Time) (*models.ActivityEvent, error) {
	var rows []models.ActivityEvent
	q := db.Where("event_type = ? AND officer_id = ? AND actor_id = ? AND timestamp >= ?",
		in.Type, in.OfficerID, in.ActorID, now.Add(-r.window))
	if in.AssignmentID != nil {
		q = q.Where("assignment_id = ?", *in.AssignmentID)
	}
	err := q.Order("timestamp DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Timeline returns the officer's events for a period, oldest first.
func (r *ActivityRecorder) Timeline(ctx context.Context, officerID, periodID int) ([]models.ActivityEvent, error) {
	var rows []models.ActivityEvent
	if err := r.db.WithContext(ctx).
		Where("officer_id = ? AND period_id = ?", officerID, periodID).
		Order("timestamp ASC").
		Order("event_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	}
	return rows, nil
}

// Milestone is the first occurrence of a key workflow event.
type Milestone struct {
	Name  string                `json:"name"`
	Type  models.EventType      `json:"event_type"`
	Event *models.ActivityEvent `json:"event,omitempty"`
}

var milestoneEvents = []struct {
	name string
	typ  models.EventType
}{
	{"self_assessment_assigned", models.EventSelfAssessmentAssigned},
	{"self_assessment_submitted", models.EventSelfAssessmentSubmitted},
	{"self_assessment_approved", models.EventSelfAssessmentApproved},
	{"reviewers_released", models.EventReviewersReleased},
	{"all_reviewers_completed", models.EventAllReviewersCompleted},
	{"final_approval", models.EventAssessmentApprovedFinal},
	{"results_released", models.EventResultsReleasedToReviewee},
	{"reviewee_acknowledged", models.EventRevieweeAcknowledgedResults},
	{"assessment_closed", models.EventAssessmentClosed},
}

// ProgressSummary is the milestone view over an officer's timeline.
type ProgressSummary struct {
	Milestones  []Milestone            `json:"milestones"`
	TotalEvents int                    `json:"total_events"`
	Timeline    []models.ActivityEvent `json:"timeline"`
}

// Milestones reports when each key workflow event first happened.
func (r *ActivityRecorder) Milestones(ctx context.Context, officerID, periodID int) (*ProgressSummary, error) {
	timeline, err := r.Timeline(ctx, officerID, periodID)
	if err != nil {
		return nil, err
	}
	return summarizeMilestones(timeline), nil
}

func summarizeMilestones(timeline []models.ActivityEvent) *ProgressSummary {
	first := make(map[models.EventType]*models.ActivityEvent, len(milestoneEvents))
	for i := range timeline {
		event := &timeline[i]
		if _, seen := first[event.EventType]; !seen {
			first[event.EventType] = event
		}
	}

	milestones := make([]Milestone, 0, len(milestoneEvents))
	for _, m := range milestoneEvents {
		milestones = append(milestones, Milestone{Name: m.name, Type: m.typ, Event: first[m.typ]})
	}
	return &ProgressSummary{
		Milestones:  milestones,
		TotalEvents: len(timeline),
		Timeline:    timeline,
	}
}

// EventStatistics summarises the activity log, optionally for one period.
type EventStatistics struct {
	EventCounts    map[models.EventType]int64 `json:"event_counts"`
	RecentActivity map[string]int64           `json:"recent_activity"`
	TotalEvents    int64                      `json:"total_events"`
	PeriodID       *int                       `json:"period_filter,omitempty"`
}

// Statistics counts events per type and per day over the last 30 days.
func (r *ActivityRecorder) Statistics(ctx context.Context, periodID *int) (*EventStatistics, error) {
	scope := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.ActivityEvent{})
		if periodID != nil {
			q = q.Where("period_id = ?", *periodID)
		}
		return q
	}

	var counts []struct {
		EventType models.EventType
		Count     int64
	}
	if err := scope().Select("event_type, COUNT(*) AS count").Group("event_type").Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	stats := &EventStatistics{
		EventCounts:    make(map[models.EventType]int64, len(counts)),
		RecentActivity: map[string]int64{},
		PeriodID:       periodID,
	}
	for _, row := range counts {
		stats.EventCounts[row.EventType] = row.Count
		stats.TotalEvents += row.Count
	}

	// Day buckets are computed here so the query stays portable across dialects.
	var stamps []time.Time
	since := r.now().AddDate(0, 0, -30)
	if err := scope().Where("timestamp >= ?", since).Pluck("timestamp", &stamps).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent events: %w", err)
	}
	for _, ts := range stamps {
		stats.RecentActivity[ts.UTC().Format("2006-01-02")]++
	}
	return stats, nil
}

// EventFilter narrows Recent. Zero values mean no filter.
type EventFilter struct {
	OfficerID  int
	PeriodID   int
	ReviewerID int
	Category   models.EventCategory
	Type       models.EventType
	Limit      int
}

// Recent returns matching events, newest first.
func (r *ActivityRecorder) Recent(ctx context.Context, filter EventFilter) ([]models.ActivityEvent, error) {
	q := r.db.WithContext(ctx).Model(&models.ActivityEvent{})
	if filter.OfficerID > 0 {
		q = q.Where("officer_id = ?", filter.OfficerID)
	}
	if filter.PeriodID > 0 {
		q = q.Where("period_id = ?", filter.PeriodID)
	}
	if filter.ReviewerID > 0 {
		q = q.Where("reviewer_id = ?", filter.ReviewerID)
	}
	if filter.Category != "" {
		q = q.Where("event_category = ?", filter.Category)
	}
	if filter.Type != "" {
		q = q.Where("event_type = ?", filter.Type)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var rows []models.ActivityEvent
	if err := q.Order("timestamp DESC").Order("event_id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return rows, nil
}
