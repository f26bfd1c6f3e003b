package services

import "officer-review-api/models"

// ReviewerCanAccess reports whether external reviewers see their tasks for the
// project. Both the status and the visibility flag must allow it.
func ReviewerCanAccess(p *models.Project) bool {
	if p == nil {
		return false
	}
	return p.Status.ReviewerEligible() && p.ReviewerTasksVisible
}

// RevieweeCanSeeResults reports whether the officer may view released results.
func RevieweeCanSeeResults(p *models.Project) bool {
	if p == nil {
		return false
	}
	return p.Status.ResultsVisible()
}

// ReviewerMayAct is the per-assignment gate: a self-assessment is actionable
// until completed; an external assignment additionally needs an approved
// self-assessment for the same officer and period.
func ReviewerMayAct(a *models.Assignment, self *models.Assignment) bool {
	if a == nil || a.IsCompleted {
		return false
	}
	if a.IsSelfAssessment() {
		return true
	}
	if self == nil || self.PeriodID != a.PeriodID || self.OfficerID != a.OfficerID || !self.IsSelfAssessment() {
		return false
	}
	return self.IsAdminApproved
}

// MayEdit reports whether the reviewer may change answers on a. Submitted
// assignments wait for an admin decision before they can change again.
func MayEdit(a *models.Assignment, self *models.Assignment) bool {
	return ReviewerMayAct(a, self) && !a.IsSubmitted
}

// GateReport bundles every gate for a project into one response payload.
type GateReport struct {
	Status                models.AssessmentStatus `json:"status"`
	StatusLabel           string                  `json:"status_label"`
	ReviewerCanAccess     bool                    `json:"reviewer_can_access"`
	RevieweeCanSeeResults bool                    `json:"reviewee_can_see_results"`
	SelfAssessmentCleared bool                    `json:"self_assessment_cleared"`
}

// EvaluateGates reports the gates for p given its self-assessment, which may be nil.
func EvaluateGates(p *models.Project, self *models.Assignment) GateReport {
	report := GateReport{
		ReviewerCanAccess:     ReviewerCanAccess(p),
		RevieweeCanSeeResults: RevieweeCanSeeResults(p),
		SelfAssessmentCleared: self != nil && self.IsSelfAssessment() && self.IsAdminApproved,
	}
	if p != nil {
		report.Status = p.Status
		report.StatusLabel = p.Status.Label()
	}
	return report
}
