package models

import "time"

// Assignment is one unit of review work: reviewer assesses officer during period.
// Officer == reviewer marks a self-assessment.
type Assignment struct {
	AssignmentID    int        `gorm:"primaryKey;column:assignment_id" json:"assignment_id"`
	PeriodID        int        `gorm:"column:period_id;uniqueIndex:idx_assignment_triple,priority:1" json:"period_id"`
	OfficerID       int        `gorm:"column:officer_id;uniqueIndex:idx_assignment_triple,priority:2;index:idx_assignment_officer_period,priority:1" json:"officer_id"`
	ReviewerID      int        `gorm:"column:reviewer_id;uniqueIndex:idx_assignment_triple,priority:3" json:"reviewer_id"`
	IsNotified      bool       `gorm:"column:is_notified" json:"is_notified"`
	IsSubmitted     bool       `gorm:"column:is_submitted" json:"is_submitted"`
	SubmittedAt     *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	IsAdminApproved bool       `gorm:"column:is_admin_approved" json:"is_admin_approved"`
	AdminApprovedAt *time.Time `gorm:"column:admin_approved_at" json:"admin_approved_at,omitempty"`
	AdminApprovedBy *int       `gorm:"column:admin_approved_by" json:"admin_approved_by,omitempty"`
	AdminNotes      *string    `gorm:"column:admin_notes;type:text" json:"admin_notes,omitempty"`
	IsCompleted     bool       `gorm:"column:is_completed" json:"is_completed"`
	CompletedAt     *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at" json:"updated_at"`

	Responses []Response `gorm:"foreignKey:AssignmentID" json:"responses,omitempty"`
}

func (Assignment) TableName() string {
	return "assignments"
}

// IsSelfAssessment reports whether the officer reviews themselves.
func (a Assignment) IsSelfAssessment() bool {
	return a.OfficerID == a.ReviewerID
}

// AwaitingApproval reports whether the assignment sits in the admin queue.
func (a Assignment) AwaitingApproval() bool {
	return a.IsSubmitted && !a.IsAdminApproved
}

// StatusLabel is the display label shown on task lists.
func (a Assignment) StatusLabel() string {
	switch {
	case a.IsCompleted && a.IsAdminApproved:
		return "Completed & Approved"
	case a.AwaitingApproval():
		return "Awaiting Admin Approval"
	case a.AdminNotes != nil && *a.AdminNotes != "":
		return "Returned for Revision"
	default:
		return "In Progress"
	}
}
