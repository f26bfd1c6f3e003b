package services

import (
	"time"

	"officer-review-api/models"
)

// ProjectFacts is the assignment aggregate a transition may depend on.
type ProjectFacts struct {
	SelfAssignment    *models.Assignment
	ExternalTotal     int64
	ExternalCompleted int64
	ExternalResponded bool
}

// Transition describes one forward step of a project.
type Transition struct {
	ProjectID int
	OfficerID int
	PeriodID  int
	From      models.AssessmentStatus
	To        models.AssessmentStatus
	At        time.Time
}

// NextState computes a single forward step from p.Status. It returns the
// updated copy and true, or p unchanged and false when the precondition for
// leaving the current status does not hold.
func NextState(p models.Project, facts ProjectFacts, adminID *int, now time.Time) (models.Project, bool) {
	next := p
	at := now

	switch p.Status {
	case models.StatusPendingSelfAssessment:
		self := facts.SelfAssignment
		if self == nil || !self.IsCompleted {
			return p, false
		}
		next.Status = models.StatusSelfAssessmentSubmitted
		next.SelfAssessmentSubmittedAt = &at

	case models.StatusSelfAssessmentSubmitted:
		next.Status = models.StatusAwaitingAdminReview

	case models.StatusAwaitingAdminReview:
		if adminID == nil {
			return p, false
		}
		approver := *adminID
		next.Status = models.StatusAdminReviewCompleted
		next.AdminReviewCompletedAt = &at
		next.AdminApprovedBy = &approver

	case models.StatusAdminReviewCompleted:
		next.Status = models.StatusAwaitingReviewerAssessments
		next.ReviewerAssessmentsReleasedAt = &at
		next.ReviewerTasksVisible = true

	case models.StatusAwaitingReviewerAssessments:
		if !facts.ExternalResponded {
			return p, false
		}
		next.Status = models.StatusReviewerAssessmentsInProgress

	case models.StatusReviewerAssessmentsInProgress, models.StatusReviewerAssessmentSubmitted:
		if facts.ExternalTotal == 0 || facts.ExternalCompleted < facts.ExternalTotal {
			return p, false
		}
		next.Status = models.StatusReviewerAssessmentsCompleted

	case models.StatusReviewerAssessmentsCompleted:
		next.Status = models.StatusAwaitingFinalAdminApproval

	case models.StatusAwaitingFinalAdminApproval:
		if adminID == nil {
			return p, false
		}
		next.Status = models.StatusAssessmentApprovedByAdmin
		next.FinalApprovalAt = &at

	case models.StatusAssessmentApprovedByAdmin:
		next.Status = models.StatusResultsReleasedToReviewee
		next.ResultsReleasedAt = &at

	case models.StatusResultsReleasedToReviewee:
		next.Status = models.StatusRevieweeAcknowledgedResults
		next.RevieweeAcknowledgedAt = &at

	case models.StatusRevieweeAcknowledgedResults:
		next.Status = models.StatusAssessmentClosed

	default:
		return p, false
	}

	next.UpdatedAt = now
	return next, true
}

// factsNeeded reports which aggregates NextState reads for status s, so the
// project service only queries what the step depends on.
func factsNeeded(s models.AssessmentStatus) (self, responded, counts bool) {
	switch s {
	case models.StatusPendingSelfAssessment:
		return true, false, false
	case models.StatusAwaitingReviewerAssessments:
		return false, true, false
	case models.StatusReviewerAssessmentsInProgress, models.StatusReviewerAssessmentSubmitted:
		return false, false, true
	}
	return false, false, false
}

// systemDriven reports whether leaving s depends only on stored data rather
// than on an actor's decision. Reconcile applies these steps on its own.
func systemDriven(s models.AssessmentStatus) bool {
	switch s {
	case models.StatusPendingSelfAssessment,
		models.StatusSelfAssessmentSubmitted,
		models.StatusAwaitingReviewerAssessments,
		models.StatusReviewerAssessmentsInProgress,
		models.StatusReviewerAssessmentSubmitted,
		models.StatusReviewerAssessmentsCompleted:
		return true
	}
	return false
}
