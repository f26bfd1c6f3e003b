package services

import "errors"

var (
	ErrAssignmentNotFound     = errors.New("assignment not found")
	ErrProjectNotFound        = errors.New("assessment project not found")
	ErrPeriodNotFound         = errors.New("review period not found")
	ErrOfficerNotFound        = errors.New("officer not found")
	ErrDuplicateAssignment    = errors.New("assignment already exists for this period, officer and reviewer")
	ErrHasDependentData       = errors.New("assignment has recorded responses")
	ErrSelfAssessmentRequired = errors.New("the officer's self-assessment assignment cannot be removed")
	ErrAssignmentCompleted    = errors.New("assignment is completed and can no longer change")
	ErrAlreadySubmitted       = errors.New("assignment is submitted and awaiting admin review")
	ErrGateClosed             = errors.New("self-assessment has not been approved yet")
	ErrNotReviewer            = errors.New("actor is not the reviewer on this assignment")
	ErrNotReviewee            = errors.New("actor is not the officer under review")
)
