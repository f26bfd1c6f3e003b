package services

import (
	"officer-review-api/config"

	"gorm.io/gorm"
)

// Stack is the wired set of workflow services.
type Stack struct {
	Assignments   *AssignmentService
	Projects      *ProjectService
	Recorder      *ActivityRecorder
	Notifications *NotificationService
	Workflow      *WorkflowService
	Summaries     *SummaryService
	Periods       *PeriodService
}

// NewStack wires the services over db. A nil summarizer makes every summary
// the fallback; a nil observer disables metrics.
func NewStack(db *gorm.DB, cfg config.Config, notifier Notifier, summarizer Summarizer, observer Observer) *Stack {
	assignments := NewAssignmentService(db)
	projects := NewProjectService(db, assignments)
	recorder := NewActivityRecorder(db, cfg.Workflow.EventDedupWindow)
	notifications := NewNotificationService(db, notifier, recorder, cfg.AppBaseURL)
	workflow := NewWorkflowService(db, assignments, projects, recorder, notifications)
	summaries := NewSummaryService(db, summarizer, recorder, cfg.Summary.Timeout)

	notifications.SetObserver(observer)
	workflow.SetObserver(observer)
	summaries.SetObserver(observer)

	return &Stack{
		Assignments:   assignments,
		Projects:      projects,
		Recorder:      recorder,
		Notifications: notifications,
		Workflow:      workflow,
		Summaries:     summaries,
		Periods:       NewPeriodService(db),
	}
}
