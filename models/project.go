package models

import "time"

// AssessmentStatus is the canonical workflow status of a Project.
type AssessmentStatus string

const (
	StatusPendingSelfAssessment         AssessmentStatus = "pending_self_assessment"
	StatusSelfAssessmentSubmitted       AssessmentStatus = "self_assessment_submitted"
	StatusAwaitingAdminReview           AssessmentStatus = "awaiting_admin_review"
	StatusAdminReviewCompleted          AssessmentStatus = "admin_review_completed"
	StatusAwaitingReviewerAssessments   AssessmentStatus = "awaiting_reviewer_assessments"
	StatusReviewerAssessmentsInProgress AssessmentStatus = "reviewer_assessments_in_progress"
	StatusReviewerAssessmentSubmitted   AssessmentStatus = "reviewer_assessment_submitted"
	StatusReviewerAssessmentsCompleted  AssessmentStatus = "reviewer_assessments_completed"
	StatusAwaitingFinalAdminApproval    AssessmentStatus = "awaiting_final_admin_approval"
	StatusAssessmentApprovedByAdmin     AssessmentStatus = "assessment_approved_by_admin"
	StatusResultsReleasedToReviewee     AssessmentStatus = "results_released_to_reviewee"
	StatusRevieweeAcknowledgedResults   AssessmentStatus = "reviewee_acknowledged_results"
	StatusAssessmentClosed              AssessmentStatus = "assessment_closed"
)

// statusOrder lists statuses in workflow order. The reviewer-submitted marker
// sits between in-progress and completed but is never entered by Advance.
var statusOrder = []AssessmentStatus{
	StatusPendingSelfAssessment,
	StatusSelfAssessmentSubmitted,
	StatusAwaitingAdminReview,
	StatusAdminReviewCompleted,
	StatusAwaitingReviewerAssessments,
	StatusReviewerAssessmentsInProgress,
	StatusReviewerAssessmentSubmitted,
	StatusReviewerAssessmentsCompleted,
	StatusAwaitingFinalAdminApproval,
	StatusAssessmentApprovedByAdmin,
	StatusResultsReleasedToReviewee,
	StatusRevieweeAcknowledgedResults,
	StatusAssessmentClosed,
}

var statusLabels = map[AssessmentStatus]string{
	StatusPendingSelfAssessment:         "Pending Self-Assessment",
	StatusSelfAssessmentSubmitted:       "Self-Assessment Submitted",
	StatusAwaitingAdminReview:           "Awaiting Admin Review",
	StatusAdminReviewCompleted:          "Admin Review Completed",
	StatusAwaitingReviewerAssessments:   "Awaiting Reviewer Assessments",
	StatusReviewerAssessmentsInProgress: "Reviewer Assessments In Progress",
	StatusReviewerAssessmentSubmitted:   "Reviewer Assessment Submitted",
	StatusReviewerAssessmentsCompleted:  "Reviewer Assessments Completed",
	StatusAwaitingFinalAdminApproval:    "Awaiting Final Admin Approval",
	StatusAssessmentApprovedByAdmin:     "Assessment Approved by Admin",
	StatusResultsReleasedToReviewee:     "Results Released to Reviewee",
	StatusRevieweeAcknowledgedResults:   "Reviewee Acknowledged Results",
	StatusAssessmentClosed:              "Assessment Closed",
}

// Valid reports whether s is one of the known statuses.
func (s AssessmentStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the display label, falling back to the raw value.
func (s AssessmentStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Rank is the position of s in workflow order, or -1 when unknown.
func (s AssessmentStatus) Rank() int {
	for i, candidate := range statusOrder {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Terminal reports whether no transition leaves s.
func (s AssessmentStatus) Terminal() bool {
	return s == StatusAssessmentClosed
}

// ReviewerEligible reports whether external reviewers may work in this status.
// Task visibility is a separate flag on the Project.
func (s AssessmentStatus) ReviewerEligible() bool {
	switch s {
	case StatusAwaitingReviewerAssessments,
		StatusReviewerAssessmentsInProgress,
		StatusReviewerAssessmentSubmitted,
		StatusReviewerAssessmentsCompleted:
		return true
	}
	return false
}

// ResultsVisible reports whether the reviewee may see results in this status.
func (s AssessmentStatus) ResultsVisible() bool {
	switch s {
	case StatusResultsReleasedToReviewee,
		StatusRevieweeAcknowledgedResults,
		StatusAssessmentClosed:
		return true
	}
	return false
}

// Project is the aggregate workflow record for one officer in one period.
type Project struct {
	ProjectID int              `gorm:"primaryKey;column:project_id" json:"project_id"`
	PeriodID  int              `gorm:"column:period_id;uniqueIndex:idx_project_officer_period,priority:1" json:"period_id"`
	OfficerID int              `gorm:"column:officer_id;uniqueIndex:idx_project_officer_period,priority:2" json:"officer_id"`
	Status    AssessmentStatus `gorm:"column:status;size:64;index" json:"status"`

	SelfAssessmentSubmittedAt     *time.Time `gorm:"column:self_assessment_submitted_at" json:"self_assessment_submitted_at,omitempty"`
	AdminReviewCompletedAt        *time.Time `gorm:"column:admin_review_completed_at" json:"admin_review_completed_at,omitempty"`
	ReviewerAssessmentsReleasedAt *time.Time `gorm:"column:reviewer_assessments_released_at" json:"reviewer_assessments_released_at,omitempty"`
	FinalApprovalAt               *time.Time `gorm:"column:final_approval_at" json:"final_approval_at,omitempty"`
	ResultsReleasedAt             *time.Time `gorm:"column:results_released_at" json:"results_released_at,omitempty"`
	RevieweeAcknowledgedAt        *time.Time `gorm:"column:reviewee_acknowledged_at" json:"reviewee_acknowledged_at,omitempty"`

	AdminApprovedBy      *int    `gorm:"column:admin_approved_by" json:"admin_approved_by,omitempty"`
	AdminNotes           *string `gorm:"column:admin_notes;type:text" json:"admin_notes,omitempty"`
	ReviewerTasksVisible bool    `gorm:"column:reviewer_tasks_visible" json:"reviewer_tasks_visible"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Project) TableName() string {
	return "assessment_projects"
}
