package models

import (
	"time"

	"gorm.io/datatypes"
)

// EventType identifies a workflow event.
type EventType string

const (
	EventSelfAssessmentAssigned     EventType = "self_assessment_assigned"
	EventReviewerAssignmentCreated  EventType = "reviewer_assignment_created"
	EventReviewerAssignmentRemoved  EventType = "reviewer_assignment_removed"
	EventAssignmentNotificationSent EventType = "assignment_notification_sent"

	EventSelfAssessmentStarted    EventType = "self_assessment_started"
	EventSelfAssessmentDraftSaved EventType = "self_assessment_draft_saved"
	EventSelfAssessmentSubmitted  EventType = "self_assessment_submitted"

	EventAdminReviewStarted         EventType = "admin_review_started"
	EventSelfAssessmentApproved     EventType = "self_assessment_approved"
	EventSelfAssessmentRejected     EventType = "self_assessment_rejected"
	EventReviewersReleased          EventType = "reviewers_released"
	EventReviewerAssessmentApproved EventType = "reviewer_assessment_approved"
	EventReviewerAssessmentRejected EventType = "reviewer_assessment_rejected"

	EventReviewerNotified            EventType = "reviewer_notified"
	EventReviewerAssessmentStarted   EventType = "reviewer_assessment_started"
	EventReviewerDraftSaved          EventType = "reviewer_draft_saved"
	EventReviewerAssessmentSubmitted EventType = "reviewer_assessment_submitted"

	EventAllReviewersCompleted   EventType = "all_reviewers_completed"
	EventFinalAdminReviewStarted EventType = "final_admin_review_started"
	EventAssessmentApprovedFinal EventType = "assessment_approved_final"

	EventResultsReleasedToReviewee   EventType = "results_released_to_reviewee"
	EventRevieweeAcknowledgedResults EventType = "reviewee_acknowledged_results"
	EventAssessmentClosed            EventType = "assessment_closed"
	EventReminderSent                EventType = "reminder_sent"

	EventAIReportGenerationStarted EventType = "ai_report_generation_started"
	EventAIReportGenerated         EventType = "ai_report_generated"
	EventAIReportFailed            EventType = "ai_report_failed"
)

// EventCategory groups event types for filtering and reporting.
type EventCategory string

const (
	CategoryAssignment   EventCategory = "assignment"
	CategorySubmission   EventCategory = "submission"
	CategoryApproval     EventCategory = "approval"
	CategoryNotification EventCategory = "notification"
	CategoryAIProcessing EventCategory = "ai_processing"
	CategoryResults      EventCategory = "results"
	CategoryOther        EventCategory = "other"
)

// Category maps every event type to its category. Unknown values only arise
// from rows written by older releases.
func (t EventType) Category() EventCategory {
	switch t {
	case EventSelfAssessmentAssigned, EventReviewerAssignmentCreated, EventReviewerAssignmentRemoved:
		return CategoryAssignment
	case EventAssignmentNotificationSent, EventReviewerNotified, EventReminderSent:
		return CategoryNotification
	case EventSelfAssessmentStarted, EventSelfAssessmentDraftSaved, EventSelfAssessmentSubmitted,
		EventReviewerAssessmentStarted, EventReviewerDraftSaved, EventReviewerAssessmentSubmitted:
		return CategorySubmission
	case EventAdminReviewStarted, EventSelfAssessmentApproved, EventSelfAssessmentRejected,
		EventReviewersReleased, EventReviewerAssessmentApproved, EventReviewerAssessmentRejected,
		EventAllReviewersCompleted, EventFinalAdminReviewStarted, EventAssessmentApprovedFinal:
		return CategoryApproval
	case EventResultsReleasedToReviewee, EventRevieweeAcknowledgedResults, EventAssessmentClosed:
		return CategoryResults
	case EventAIReportGenerationStarted, EventAIReportGenerated, EventAIReportFailed:
		return CategoryAIProcessing
	}
	return CategoryOther
}

// Known reports whether t is part of the closed event set.
func (t EventType) Known() bool {
	return t.Category() != CategoryOther
}

// EventStatus describes the outcome of the recorded action.
type EventStatus string

const (
	EventStatusCompleted EventStatus = "completed"
	EventStatusPending   EventStatus = "pending"
	EventStatusFailed    EventStatus = "failed"
)

// ActivityEvent is an append-only audit record of a workflow action.
type ActivityEvent struct {
	EventID        int            `gorm:"primaryKey;column:event_id" json:"event_id"`
	EventUID       string         `gorm:"column:event_uid;size:26;uniqueIndex" json:"event_uid"`
	EventType      EventType      `gorm:"column:event_type;size:50;index:idx_event_dedup,priority:1" json:"event_type"`
	EventCategory  EventCategory  `gorm:"column:event_category;size:30" json:"event_category"`
	OfficerID      int            `gorm:"column:officer_id;index:idx_event_dedup,priority:2;index:idx_event_timeline,priority:1" json:"officer_id"`
	PeriodID       int            `gorm:"column:period_id;index:idx_event_timeline,priority:2" json:"period_id"`
	ReviewerID     *int           `gorm:"column:reviewer_id" json:"reviewer_id,omitempty"`
	AssignmentID   *int           `gorm:"column:assignment_id" json:"assignment_id,omitempty"`
	ActorID        int            `gorm:"column:actor_id;index:idx_event_dedup,priority:3" json:"actor_id"`
	Description    string         `gorm:"column:description;type:text" json:"description"`
	EventStatus    EventStatus    `gorm:"column:event_status;size:20" json:"event_status"`
	Metadata       datatypes.JSON `gorm:"column:event_data" json:"metadata,omitempty"`
	IdempotencyKey *string        `gorm:"column:idempotency_key;size:191;uniqueIndex" json:"-"`
	IPAddress      *string        `gorm:"column:ip_address;size:45" json:"ip_address,omitempty"`
	UserAgent      *string        `gorm:"column:user_agent;size:500" json:"user_agent,omitempty"`
	Timestamp      time.Time      `gorm:"column:timestamp;index:idx_event_dedup,priority:4" json:"timestamp"`
}

func (ActivityEvent) TableName() string {
	return "assessment_activity_log"
}
