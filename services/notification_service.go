package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"officer-review-api/models"

	"gorm.io/gorm"
)

// Recipient identifies who a notification goes to.
type Recipient struct {
	OfficerID int
	Name      string
	Email     string
}

// NotificationData is the template input for every notification kind.
type NotificationData struct {
	RecipientName string
	OfficerName   string
	PeriodName    string
	URL           string
	DueDate       string
	DaysRemaining int
}

// Notifier delivers one message. It reports delivery and never returns an error.
type Notifier interface {
	Notify(ctx context.Context, recipient Recipient, kind models.NotificationKind, data NotificationData) bool
}

// NotificationService decides who is told about workflow changes. Delivery
// runs after the triggering transaction has committed and never affects it.
type NotificationService struct {
	db       *gorm.DB
	notifier Notifier
	recorder *ActivityRecorder
	observer Observer
	baseURL  string
	now      func() time.Time
	dispatch func(func())
	inflight sync.WaitGroup
}

// NewNotificationService instantiates the service. Deliveries run on their
// own goroutine; Wait blocks until they finish.
func NewNotificationService(db *gorm.DB, notifier Notifier, recorder *ActivityRecorder, baseURL string) *NotificationService {
	s := &NotificationService{
		db:       db,
		notifier: notifier,
		recorder: recorder,
		observer: noopObserver{},
		baseURL:  baseURL,
		now:      utcNow,
	}
	s.dispatch = s.background
	return s
}

func (s *NotificationService) background(f func()) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		f()
	}()
}

// Wait blocks until every dispatched delivery has finished.
func (s *NotificationService) Wait() {
	s.inflight.Wait()
}

// SetObserver wires delivery metrics.
func (s *NotificationService) SetObserver(o Observer) {
	s.observer = observerOrNoop(o)
}

// AssignmentsCreated tells each reviewer about their new assignment.
func (s *NotificationService) AssignmentsCreated(ctx context.Context, actorID int, created []models.Assignment) {
	if len(created) == 0 {
		return
	}
	batch := append([]models.Assignment(nil), created...)
	bg := persistentContext(ctx)
	s.dispatch(func() {
		s.deliverAssignments(bg, actorID, batch, models.NotifyAssignmentCreated, models.EventAssignmentNotificationSent)
	})
}

// ReviewersReleased tells the project's external reviewers their tasks are open.
func (s *NotificationService) ReviewersReleased(ctx context.Context, actorID int, project models.Project) {
	bg := persistentContext(ctx)
	s.dispatch(func() {
		var external []models.Assignment
		if err := s.db.WithContext(bg).
			Where("period_id = ? AND officer_id = ? AND reviewer_id <> officer_id", project.PeriodID, project.OfficerID).
			Order("assignment_id ASC").
			Find(&external).Error; err != nil {
			log.Printf("notification: failed to load reviewers for project %d: %v", project.ProjectID, err)
			return
		}
		s.deliverAssignments(bg, actorID, external, models.NotifyReviewersReleased, models.EventReviewerNotified)
	})
}

// ResultsReleased tells the officer their results are available.
func (s *NotificationService) ResultsReleased(ctx context.Context, actorID int, project models.Project) {
	bg := persistentContext(ctx)
	s.dispatch(func() {
		s.deliverResults(bg, actorID, project)
	})
}

func (s *NotificationService) deliverAssignments(ctx context.Context, actorID int, assignments []models.Assignment, kind models.NotificationKind, eventType models.EventType) {
	if len(assignments) == 0 {
		return
	}
	first := assignments[0]

	ids := make([]int, 0, len(assignments)+1)
	ids = append(ids, first.OfficerID)
	for _, a := range assignments {
		ids = append(ids, a.ReviewerID)
	}
	officers, err := s.loadOfficers(ctx, ids)
	if err != nil {
		log.Printf("notification: %v", err)
		return
	}
	period, err := s.loadPeriod(ctx, first.PeriodID)
	if err != nil {
		log.Printf("notification: %v", err)
		return
	}

	var delivered, failed []int
	for _, a := range assignments {
		reviewer := officers[a.ReviewerID]
		ok := s.notifier.Notify(ctx, Recipient{OfficerID: a.ReviewerID, Name: reviewer.Name, Email: reviewer.Email}, kind, NotificationData{
			RecipientName: reviewer.Name,
			OfficerName:   officers[a.OfficerID].Name,
			PeriodName:    period.Name,
			URL:           fmt.Sprintf("%s/assignments/%d", s.baseURL, a.AssignmentID),
		})
		s.observer.NotificationDelivered(kind, ok)
		if ok {
			delivered = append(delivered, a.AssignmentID)
		} else {
			failed = append(failed, a.AssignmentID)
		}
	}

	if len(delivered) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Assignment{}).
			Where("assignment_id IN ?", delivered).
			Update("is_notified", true).Error; err != nil {
			log.Printf("notification: failed to mark assignments notified: %v", err)
		}
	}

	status := models.EventStatusCompleted
	if len(delivered) == 0 {
		status = models.EventStatusFailed
	}
	s.recorder.Record(ctx, EventInput{
		Type:        eventType,
		OfficerID:   first.OfficerID,
		PeriodID:    first.PeriodID,
		ActorID:     actorID,
		Description: fmt.Sprintf("Sent %s notifications: %d delivered, %d failed", kind, len(delivered), len(failed)),
		Status:      status,
		Metadata: map[string]interface{}{
			"kind":                     kind,
			"delivered_assignment_ids": delivered,
			"failed_assignment_ids":    failed,
		},
	})
}

func (s *NotificationService) deliverResults(ctx context.Context, actorID int, project models.Project) {
	officers, err := s.loadOfficers(ctx, []int{project.OfficerID})
	if err != nil {
		log.Printf("notification: %v", err)
		return
	}
	period, err := s.loadPeriod(ctx, project.PeriodID)
	if err != nil {
		log.Printf("notification: %v", err)
		return
	}

	officer := officers[project.OfficerID]
	ok := s.notifier.Notify(ctx, Recipient{OfficerID: officer.OfficerID, Name: officer.Name, Email: officer.Email}, models.NotifyResultsReleased, NotificationData{
		RecipientName: officer.Name,
		OfficerName:   officer.Name,
		PeriodName:    period.Name,
		URL:           fmt.Sprintf("%s/projects/%d/%d", s.baseURL, project.PeriodID, project.OfficerID),
	})
	s.observer.NotificationDelivered(models.NotifyResultsReleased, ok)

	status := models.EventStatusCompleted
	if !ok {
		status = models.EventStatusFailed
	}
	s.recorder.Record(ctx, EventInput{
		Type:        models.EventAssignmentNotificationSent,
		OfficerID:   project.OfficerID,
		PeriodID:    project.PeriodID,
		ActorID:     actorID,
		Description: "Results release notification sent to officer",
		Status:      status,
		Metadata:    map[string]interface{}{"kind": models.NotifyResultsReleased},
	})
}

// ReminderReport summarises one reminder run.
type ReminderReport struct {
	PeriodID  int   `json:"period_id"`
	Checked   int   `json:"checked"`
	Sent      int   `json:"sent"`
	Failed    int   `json:"failed"`
	Skipped   int   `json:"skipped"`
	Reminders []int `json:"reminded_assignment_ids"`
}

// SendReminders notifies reviewers of unsubmitted assignments when the period
// deadline is at most withinDays away. It changes no workflow state and runs
// synchronously.
func (s *NotificationService) SendReminders(ctx context.Context, periodID, actorID, withinDays int) (*ReminderReport, error) {
	period, err := s.loadPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	report := &ReminderReport{PeriodID: periodID, Reminders: []int{}}

	daysRemaining := int(truncateUTCDay(period.Deadline()).Sub(truncateUTCDay(s.now())).Hours() / 24)
	if daysRemaining < 0 || daysRemaining > withinDays {
		return report, nil
	}

	var pending []models.Assignment
	if err := s.db.WithContext(ctx).
		Where("period_id = ? AND is_submitted = ? AND is_completed = ?", periodID, false, false).
		Order("assignment_id ASC").
		Find(&pending).Error; err != nil {
		return nil, fmt.Errorf("failed to load pending assignments: %w", err)
	}
	report.Checked = len(pending)
	if len(pending) == 0 {
		return report, nil
	}

	ids := make([]int, 0, len(pending)*2)
	for _, a := range pending {
		ids = append(ids, a.OfficerID, a.ReviewerID)
	}
	officers, err := s.loadOfficers(ctx, ids)
	if err != nil {
		return nil, err
	}

	// External tasks stay hidden until the self-assessment is approved.
	selfApproved := map[int]bool{}
	for _, a := range pending {
		if a.IsSelfAssessment() {
			continue
		}
		if _, seen := selfApproved[a.OfficerID]; seen {
			continue
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Assignment{}).
			Where("period_id = ? AND officer_id = ? AND reviewer_id = officer_id AND is_admin_approved = ?", periodID, a.OfficerID, true).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check self-assessment approval: %w", err)
		}
		selfApproved[a.OfficerID] = count > 0
	}

	for _, a := range pending {
		if !a.IsSelfAssessment() && !selfApproved[a.OfficerID] {
			report.Skipped++
			continue
		}
		reviewer := officers[a.ReviewerID]
		ok := s.notifier.Notify(ctx, Recipient{OfficerID: a.ReviewerID, Name: reviewer.Name, Email: reviewer.Email}, models.NotifyDueReminder, NotificationData{
			RecipientName: reviewer.Name,
			OfficerName:   officers[a.OfficerID].Name,
			PeriodName:    period.Name,
			URL:           fmt.Sprintf("%s/assignments/%d", s.baseURL, a.AssignmentID),
			DueDate:       period.Deadline().Format("2006-01-02"),
			DaysRemaining: daysRemaining,
		})
		s.observer.NotificationDelivered(models.NotifyDueReminder, ok)
		if !ok {
			report.Failed++
			continue
		}
		report.Sent++
		report.Reminders = append(report.Reminders, a.AssignmentID)

		assignmentID, reviewerID := a.AssignmentID, a.ReviewerID
		s.recorder.Record(ctx, EventInput{
			Type:         models.EventReminderSent,
			OfficerID:    a.OfficerID,
			PeriodID:     periodID,
			ActorID:      actorID,
			ReviewerID:   &reviewerID,
			AssignmentID: &assignmentID,
			Description:  fmt.Sprintf("Due-date reminder sent to %s", reviewer.Name),
			Metadata:     map[string]interface{}{"days_remaining": daysRemaining},
		})
	}
	return report, nil
}

func (s *NotificationService) loadOfficers(ctx context.Context, ids []int) (map[int]models.Officer, error) {
	var rows []models.Officer
	if err := s.db.WithContext(ctx).Where("officer_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load officers: %w", err)
	}
	out := make(map[int]models.Officer, len(rows))
	for _, o := range rows {
		out[o.OfficerID] = o
	}
	return out, nil
}

func (s *NotificationService) loadPeriod(ctx context.Context, periodID int) (*models.ReviewPeriod, error) {
	var rows []models.ReviewPeriod
	if err := s.db.WithContext(ctx).Where("period_id = ?", periodID).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load period %d: %w", periodID, err)
	}
	if len(rows) == 0 {
		return nil, ErrPeriodNotFound
	}
	return &rows[0], nil
}

func truncateUTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
