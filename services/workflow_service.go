package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"officer-review-api/models"
	"officer-review-api/utils"

	"gorm.io/gorm"
)

const maxAdminNotesRunes = 1000

// Outcome is the result of a workflow action. Applied is false when the
// action's precondition did not hold; nothing was changed in that case.
type Outcome struct {
	Applied     bool               `json:"applied"`
	Assignment  *models.Assignment `json:"assignment,omitempty"`
	Project     *models.Project    `json:"project,omitempty"`
	Transitions []Transition       `json:"transitions"`
}

// AssignResult reports a batch assignment.
type AssignResult struct {
	MatrixResult
	Project *models.Project `json:"project"`
}

// SyncOutcome reports a reviewer-set reconciliation.
type SyncOutcome struct {
	SyncResult
	Project     *models.Project `json:"project"`
	Transitions []Transition    `json:"transitions"`
}

// GateDecision tells a reviewer whether they may work on an assignment now.
type GateDecision struct {
	AssignmentID int    `json:"assignment_id"`
	MayAct       bool   `json:"may_act"`
	MayEdit      bool   `json:"may_edit"`
	StatusLabel  string `json:"status_label"`
	Reason       string `json:"reason,omitempty"`
}

// ReviewerTask is one row of a reviewer's task list.
type ReviewerTask struct {
	Assignment models.Assignment `json:"assignment"`
	Gate       GateDecision      `json:"gate"`
}

// WorkflowService runs actor actions against the assignment store and the
// project state machine. Each action commits in one transaction; events and
// notifications follow the commit.
type WorkflowService struct {
	db            *gorm.DB
	assignments   *AssignmentService
	projects      *ProjectService
	recorder      *ActivityRecorder
	notifications *NotificationService
	observer      Observer
}

// NewWorkflowService wires the workflow from its collaborators.
func NewWorkflowService(db *gorm.DB, assignments *AssignmentService, projects *ProjectService, recorder *ActivityRecorder, notifications *NotificationService) *WorkflowService {
	return &WorkflowService{
		db:            db,
		assignments:   assignments,
		projects:      projects,
		recorder:      recorder,
		notifications: notifications,
		observer:      noopObserver{},
	}
}

// SetObserver wires transition metrics.
func (s *WorkflowService) SetObserver(o Observer) {
	s.observer = observerOrNoop(o)
}

// AssignReviewers creates the officer's self-assessment and one assignment per
// reviewer, then notifies every new assignee.
func (s *WorkflowService) AssignReviewers(ctx context.Context, periodID, officerID int, reviewerIDs []int, adminID int) (*AssignResult, error) {
	result := &AssignResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requirePeriodAndOfficers(tx, periodID, officerID, reviewerIDs); err != nil {
			return err
		}
		matrix, err := s.assignments.createMatrix(tx, periodID, officerID, reviewerIDs)
		if err != nil {
			return err
		}
		project, err := s.projects.ensure(tx, periodID, officerID)
		if err != nil {
			return err
		}
		result.MatrixResult = *matrix
		result.Project = project
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordCreated(ctx, adminID, result.Created)
	s.notifications.AssignmentsCreated(ctx, adminID, result.Created)
	return result, nil
}

// SyncReviewers makes the officer's reviewers match reviewerIDs. Completed
// or answered assignments are kept. Pruning can finish the reviewer set, so
// the project is reconciled in the same transaction.
func (s *WorkflowService) SyncReviewers(ctx context.Context, periodID, officerID int, reviewerIDs []int, adminID int) (*SyncOutcome, error) {
	result := &SyncOutcome{Transitions: []Transition{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requirePeriodAndOfficers(tx, periodID, officerID, reviewerIDs); err != nil {
			return err
		}
		synced, err := s.assignments.syncMatrix(tx, periodID, officerID, reviewerIDs)
		if err != nil {
			return err
		}
		project, err := s.projects.ensure(tx, periodID, officerID)
		if err != nil {
			return err
		}
		if len(synced.Removed) > 0 {
			transitions, err := s.projects.advanceSystem(tx, project, "")
			if err != nil {
				return err
			}
			result.Transitions = append(result.Transitions, transitions...)
		}
		result.SyncResult = *synced
		result.Project = project
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordCreated(ctx, adminID, result.Created)
	for i := range result.Removed {
		s.recordRemoved(ctx, adminID, &result.Removed[i])
	}
	s.notifications.AssignmentsCreated(ctx, adminID, result.Created)
	s.afterTransitions(ctx, adminID, result.Transitions, result.Project)
	return result, nil
}

// DeleteAssignment removes an external assignment that is neither completed
// nor answered, then applies any step the smaller reviewer set unblocks.
func (s *WorkflowService) DeleteAssignment(ctx context.Context, assignmentID, adminID int) (*Outcome, error) {
	out := &Outcome{Transitions: []Transition{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err := s.assignments.delete(tx, assignmentID)
		if err != nil {
			return err
		}
		out.Assignment = deleted
		out.Applied = true

		project, err := s.projects.find(tx, deleted.PeriodID, deleted.OfficerID)
		if errors.Is(err, ErrProjectNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		transitions, err := s.projects.advanceSystem(tx, project, "")
		if err != nil {
			return err
		}
		out.Project = project
		out.Transitions = append(out.Transitions, transitions...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordRemoved(ctx, adminID, out.Assignment)
	s.afterTransitions(ctx, adminID, out.Transitions, out.Project)
	return out, nil
}

// SaveDraft stores the reviewer's answers without submitting. The first
// answer from an external reviewer moves a released project into progress.
func (s *WorkflowService) SaveDraft(ctx context.Context, assignmentID, actorID int, inputs []ResponseInput) (*Outcome, error) {
	out := &Outcome{Transitions: []Transition{}}
	var firstAnswers bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignment, err := s.actionableAssignment(tx, assignmentID, actorID)
		if err != nil {
			return err
		}
		before, err := s.assignments.responseCount(tx, assignmentID)
		if err != nil {
			return err
		}
		saved, err := s.assignments.saveDraft(tx, assignmentID, inputs)
		if err != nil {
			return err
		}
		firstAnswers = before == 0 && saved > 0
		out.Applied = true

		if !assignment.IsSelfAssessment() && saved > 0 {
			project, err := s.projects.ensure(tx, assignment.PeriodID, assignment.OfficerID)
			if err != nil {
				return err
			}
			transition, ok, err := s.projects.advanceFrom(tx, project, models.StatusAwaitingReviewerAssessments, nil)
			if err != nil {
				return err
			}
			if ok {
				out.Transitions = append(out.Transitions, *transition)
			}
			out.Project = project
		}

		out.Assignment, err = s.assignments.get(tx, assignmentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	a := out.Assignment
	if firstAnswers {
		startType := models.EventReviewerAssessmentStarted
		if a.IsSelfAssessment() {
			startType = models.EventSelfAssessmentStarted
		}
		s.recordAssignment(ctx, startType, a, actorID, "Assessment started", nil)
	}
	draftType := models.EventReviewerDraftSaved
	if a.IsSelfAssessment() {
		draftType = models.EventSelfAssessmentDraftSaved
	}
	s.recordAssignment(ctx, draftType, a, actorID, "Assessment draft saved", map[string]interface{}{"responses": len(inputs)})
	s.afterTransitions(ctx, actorID, out.Transitions, out.Project)
	return out, nil
}

// Submit hands the assignment to the admin queue. Submitting twice is a no-op.
func (s *WorkflowService) Submit(ctx context.Context, assignmentID, actorID int) (*Outcome, error) {
	out := &Outcome{Transitions: []Transition{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.actionableAssignment(tx, assignmentID, actorID); err != nil {
			return err
		}
		submitted, err := s.assignments.submit(tx, assignmentID)
		if err != nil {
			return err
		}
		out.Applied = submitted
		out.Assignment, err = s.assignments.get(tx, assignmentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if out.Applied {
		a := out.Assignment
		eventType := models.EventReviewerAssessmentSubmitted
		if a.IsSelfAssessment() {
			eventType = models.EventSelfAssessmentSubmitted
		}
		s.recordAssignment(ctx, eventType, a, actorID, "Assessment submitted for admin review", nil)
	}
	return out, nil
}

// ApproveAssignment approves a submitted assignment and moves the project as
// far as the approval allows. Approving a self-assessment completes the admin
// review stage; with releaseExternal the project also opens to reviewers.
func (s *WorkflowService) ApproveAssignment(ctx context.Context, assignmentID, adminID int, releaseExternal bool) (*Outcome, error) {
	out := &Outcome{Transitions: []Transition{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		approved, err := s.assignments.approve(tx, assignmentID, adminID)
		if err != nil {
			return err
		}
		assignment, err := s.assignments.get(tx, assignmentID)
		if err != nil {
			return err
		}
		out.Assignment = assignment
		if !approved {
			return nil
		}
		out.Applied = true

		project, err := s.projects.ensure(tx, assignment.PeriodID, assignment.OfficerID)
		if err != nil {
			return err
		}
		out.Project = project

		if !assignment.IsSelfAssessment() {
			steps, err := s.projects.advanceSystem(tx, project, "")
			out.Transitions = append(out.Transitions, steps...)
			return err
		}

		steps, err := s.projects.advanceSystem(tx, project, models.StatusAwaitingAdminReview)
		out.Transitions = append(out.Transitions, steps...)
		if err != nil {
			return err
		}
		admin := adminID
		transition, ok, err := s.projects.advanceFrom(tx, project, models.StatusAwaitingAdminReview, &admin)
		if err != nil {
			return err
		}
		if ok {
			out.Transitions = append(out.Transitions, *transition)
		}
		if releaseExternal {
			steps, err := s.release(tx, project)
			out.Transitions = append(out.Transitions, steps...)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Applied {
		a := out.Assignment
		eventType := models.EventReviewerAssessmentApproved
		if a.IsSelfAssessment() {
			eventType = models.EventSelfAssessmentApproved
		}
		s.recordAssignment(ctx, eventType, a, adminID, "Assessment approved by admin", map[string]interface{}{
			"release_external": releaseExternal,
		})
	}
	s.afterTransitions(ctx, adminID, out.Transitions, out.Project)
	return out, nil
}

// RejectAssignment returns a submitted assignment to its reviewer with notes.
func (s *WorkflowService) RejectAssignment(ctx context.Context, assignmentID, adminID int, notes string) (*Outcome, error) {
	out := &Outcome{Transitions: []Transition{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rejected, err := s.assignments.reject(tx, assignmentID, notes)
		if err != nil {
			return err
		}
		out.Applied = rejected
		out.Assignment, err = s.assignments.get(tx, assignmentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if out.Applied {
		a := out.Assignment
		eventType := models.EventReviewerAssessmentRejected
		if a.IsSelfAssessment() {
			eventType = models.EventSelfAssessmentRejected
		}
		s.recordAssignment(ctx, eventType, a, adminID, "Assessment returned for revision", map[string]interface{}{
			"admin_notes": notes,
		})
	}
	return out, nil
}

// ReleaseReviewers opens a project whose admin review is complete to its
// external reviewers.
func (s *WorkflowService) ReleaseReviewers(ctx context.Context, periodID, officerID, adminID int) (*Outcome, error) {
	return s.projectAction(ctx, periodID, officerID, adminID, func(tx *gorm.DB, project *models.Project) ([]Transition, error) {
		if project.Status != models.StatusAdminReviewCompleted {
			return nil, nil
		}
		return s.release(tx, project)
	})
}

// FinalApprove records the admin's final approval of a project. Non-empty
// notes are stored on the project with the approval.
func (s *WorkflowService) FinalApprove(ctx context.Context, periodID, officerID, adminID int, notes string) (*Outcome, error) {
	admin := adminID
	notes = utils.Truncate(utils.SanitizeInput(notes), maxAdminNotesRunes)
	return s.projectAction(ctx, periodID, officerID, adminID, func(tx *gorm.DB, project *models.Project) ([]Transition, error) {
		transition, ok, err := s.projects.advanceFrom(tx, project, models.StatusAwaitingFinalAdminApproval, &admin)
		if err != nil || !ok {
			return nil, err
		}
		if notes != "" {
			if err := tx.Model(&models.Project{}).
				Where("project_id = ?", project.ProjectID).
				Update("admin_notes", notes).Error; err != nil {
				return nil, fmt.Errorf("failed to store final approval notes: %w", err)
			}
			project.AdminNotes = &notes
		}
		return []Transition{*transition}, nil
	})
}

// ReleaseResults makes an approved project's results visible to the officer.
func (s *WorkflowService) ReleaseResults(ctx context.Context, periodID, officerID, adminID int) (*Outcome, error) {
	return s.singleStep(ctx, periodID, officerID, adminID, models.StatusAssessmentApprovedByAdmin, nil)
}

// Acknowledge records that the officer has seen their results.
func (s *WorkflowService) Acknowledge(ctx context.Context, periodID, officerID, actorID int) (*Outcome, error) {
	if actorID != officerID {
		return nil, ErrNotReviewee
	}
	return s.singleStep(ctx, periodID, officerID, actorID, models.StatusResultsReleasedToReviewee, nil)
}

// Close finishes an acknowledged project.
func (s *WorkflowService) Close(ctx context.Context, periodID, officerID, adminID int) (*Outcome, error) {
	return s.singleStep(ctx, periodID, officerID, adminID, models.StatusRevieweeAcknowledgedResults, nil)
}

// Reconcile applies every step whose precondition is stored data rather than
// an actor decision, until the project blocks.
func (s *WorkflowService) Reconcile(ctx context.Context, periodID, officerID, actorID int) (*Outcome, error) {
	return s.projectAction(ctx, periodID, officerID, actorID, func(tx *gorm.DB, project *models.Project) ([]Transition, error) {
		return s.projects.advanceSystem(tx, project, "")
	})
}

// ReconcilePeriod reconciles every project in a period and returns the
// transitions applied.
func (s *WorkflowService) ReconcilePeriod(ctx context.Context, periodID, actorID int) ([]Transition, error) {
	projects, err := s.projects.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	all := []Transition{}
	for _, project := range projects {
		if project.Status.Terminal() {
			continue
		}
		out, err := s.Reconcile(ctx, periodID, project.OfficerID, actorID)
		if err != nil {
			return all, fmt.Errorf("reconcile officer %d: %w", project.OfficerID, err)
		}
		all = append(all, out.Transitions...)
	}
	return all, nil
}

// ProjectView returns the project with its assignments and gates.
func (s *WorkflowService) ProjectView(ctx context.Context, periodID, officerID int) (*ProjectSnapshot, error) {
	return s.projects.Snapshot(ctx, periodID, officerID)
}

// AssignmentGate reports whether actorID may work on the assignment now.
func (s *WorkflowService) AssignmentGate(ctx context.Context, assignmentID, actorID int) (*GateDecision, error) {
	db := s.db.WithContext(ctx)
	assignment, err := s.assignments.get(db, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.ReviewerID != actorID {
		return nil, ErrNotReviewer
	}
	self, err := s.assignments.selfAssignment(db, assignment.PeriodID, assignment.OfficerID)
	if err != nil {
		return nil, err
	}
	decision := decideGate(assignment, self)
	return &decision, nil
}

// ReviewerTasks lists the reviewer's assignments in a period with their gates.
func (s *WorkflowService) ReviewerTasks(ctx context.Context, periodID, reviewerID int) ([]ReviewerTask, error) {
	rows, err := s.assignments.ListForReviewer(ctx, periodID, reviewerID)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	selfByOfficer := map[int]*models.Assignment{}
	tasks := make([]ReviewerTask, 0, len(rows))
	for i := range rows {
		a := rows[i]
		self, seen := selfByOfficer[a.OfficerID]
		if !seen {
			self, err = s.assignments.selfAssignment(db, periodID, a.OfficerID)
			if err != nil {
				return nil, err
			}
			selfByOfficer[a.OfficerID] = self
		}
		tasks = append(tasks, ReviewerTask{Assignment: a, Gate: decideGate(&a, self)})
	}
	return tasks, nil
}

func decideGate(a *models.Assignment, self *models.Assignment) GateDecision {
	decision := GateDecision{
		AssignmentID: a.AssignmentID,
		MayAct:       ReviewerMayAct(a, self),
		MayEdit:      MayEdit(a, self),
		StatusLabel:  a.StatusLabel(),
	}
	switch {
	case a.IsCompleted:
		decision.Reason = ErrAssignmentCompleted.Error()
	case !decision.MayAct:
		decision.Reason = ErrGateClosed.Error()
	case a.IsSubmitted:
		decision.Reason = ErrAlreadySubmitted.Error()
	}
	return decision
}

// actionableAssignment loads the assignment and checks the actor and the
// per-assignment gate.
func (s *WorkflowService) actionableAssignment(tx *gorm.DB, assignmentID, actorID int) (*models.Assignment, error) {
	assignment, err := s.assignments.get(tx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.ReviewerID != actorID {
		return nil, ErrNotReviewer
	}
	if assignment.IsCompleted {
		return nil, ErrAssignmentCompleted
	}
	var self *models.Assignment
	if !assignment.IsSelfAssessment() {
		self, err = s.assignments.selfAssignment(tx, assignment.PeriodID, assignment.OfficerID)
		if err != nil {
			return nil, err
		}
	}
	if !ReviewerMayAct(assignment, self) {
		return nil, ErrGateClosed
	}
	return assignment, nil
}

// release opens the project to reviewers and catches up on any reviewer work
// already done under the per-assignment gate.
func (s *WorkflowService) release(tx *gorm.DB, project *models.Project) ([]Transition, error) {
	var transitions []Transition
	transition, ok, err := s.projects.advanceFrom(tx, project, models.StatusAdminReviewCompleted, nil)
	if err != nil || !ok {
		return transitions, err
	}
	transitions = append(transitions, *transition)
	steps, err := s.projects.advanceSystem(tx, project, "")
	return append(transitions, steps...), err
}

func (s *WorkflowService) singleStep(ctx context.Context, periodID, officerID, actorID int, from models.AssessmentStatus, adminID *int) (*Outcome, error) {
	return s.projectAction(ctx, periodID, officerID, actorID, func(tx *gorm.DB, project *models.Project) ([]Transition, error) {
		transition, ok, err := s.projects.advanceFrom(tx, project, from, adminID)
		if err != nil || !ok {
			return nil, err
		}
		return []Transition{*transition}, nil
	})
}

func (s *WorkflowService) projectAction(ctx context.Context, periodID, officerID, actorID int, step func(tx *gorm.DB, project *models.Project) ([]Transition, error)) (*Outcome, error) {
	out := &Outcome{Transitions: []Transition{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := s.projects.find(tx, periodID, officerID)
		if err != nil {
			return err
		}
		transitions, err := step(tx, project)
		if err != nil {
			return err
		}
		out.Project = project
		out.Transitions = append(out.Transitions, transitions...)
		out.Applied = len(transitions) > 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterTransitions(ctx, actorID, out.Transitions, out.Project)
	return out, nil
}

func (s *WorkflowService) requirePeriodAndOfficers(tx *gorm.DB, periodID, officerID int, reviewerIDs []int) error {
	var periods int64
	if err := tx.Model(&models.ReviewPeriod{}).Where("period_id = ?", periodID).Count(&periods).Error; err != nil {
		return fmt.Errorf("failed to load period: %w", err)
	}
	if periods == 0 {
		return ErrPeriodNotFound
	}

	ids := withSelf(officerID, reviewerIDs)
	var found int64
	if err := tx.Model(&models.Officer{}).Where("officer_id IN ?", ids).Count(&found).Error; err != nil {
		return fmt.Errorf("failed to load officers: %w", err)
	}
	if found != int64(len(ids)) {
		return ErrOfficerNotFound
	}
	return nil
}

func (s *WorkflowService) recordCreated(ctx context.Context, actorID int, created []models.Assignment) {
	var external []models.Assignment
	for i := range created {
		a := created[i]
		if a.IsSelfAssessment() {
			s.recordAssignment(ctx, models.EventSelfAssessmentAssigned, &a, actorID, "Self-assessment assigned", nil)
			continue
		}
		external = append(external, a)
	}
	if len(external) == 0 {
		return
	}

	reviewerIDs := make([]int, 0, len(external))
	assignmentIDs := make([]int, 0, len(external))
	for _, a := range external {
		reviewerIDs = append(reviewerIDs, a.ReviewerID)
		assignmentIDs = append(assignmentIDs, a.AssignmentID)
	}
	first := external[0]
	s.recorder.Record(ctx, EventInput{
		Type:        models.EventReviewerAssignmentCreated,
		OfficerID:   first.OfficerID,
		PeriodID:    first.PeriodID,
		ActorID:     actorID,
		Description: fmt.Sprintf("%d reviewer assignment(s) created", len(external)),
		Metadata: map[string]interface{}{
			"reviewer_ids":   reviewerIDs,
			"assignment_ids": assignmentIDs,
		},
	})
}

func (s *WorkflowService) recordRemoved(ctx context.Context, actorID int, a *models.Assignment) {
	s.recordAssignment(ctx, models.EventReviewerAssignmentRemoved, a, actorID,
		fmt.Sprintf("Reviewer %d removed from the assessment", a.ReviewerID), nil)
}

func (s *WorkflowService) recordAssignment(ctx context.Context, eventType models.EventType, a *models.Assignment, actorID int, description string, metadata map[string]interface{}) {
	assignmentID := a.AssignmentID
	in := EventInput{
		Type:         eventType,
		OfficerID:    a.OfficerID,
		PeriodID:     a.PeriodID,
		ActorID:      actorID,
		AssignmentID: &assignmentID,
		Description:  description,
		Metadata:     metadata,
	}
	if !a.IsSelfAssessment() {
		reviewerID := a.ReviewerID
		in.ReviewerID = &reviewerID
	}
	s.recorder.Record(ctx, in)
}

// transitionEvents names the event recorded when a project enters a status.
var transitionEvents = map[models.AssessmentStatus]models.EventType{
	models.StatusAwaitingAdminReview:          models.EventAdminReviewStarted,
	models.StatusAwaitingReviewerAssessments:  models.EventReviewersReleased,
	models.StatusReviewerAssessmentsCompleted: models.EventAllReviewersCompleted,
	models.StatusAwaitingFinalAdminApproval:   models.EventFinalAdminReviewStarted,
	models.StatusAssessmentApprovedByAdmin:    models.EventAssessmentApprovedFinal,
	models.StatusResultsReleasedToReviewee:    models.EventResultsReleasedToReviewee,
	models.StatusRevieweeAcknowledgedResults:  models.EventRevieweeAcknowledgedResults,
	models.StatusAssessmentClosed:             models.EventAssessmentClosed,
}

// afterTransitions records committed transitions and fires the notifications
// tied to them.
func (s *WorkflowService) afterTransitions(ctx context.Context, actorID int, transitions []Transition, project *models.Project) {
	for _, t := range transitions {
		s.observer.TransitionApplied(t.From, t.To)
		if eventType, ok := transitionEvents[t.To]; ok {
			s.recorder.Record(ctx, EventInput{
				Type:        eventType,
				OfficerID:   t.OfficerID,
				PeriodID:    t.PeriodID,
				ActorID:     actorID,
				Description: fmt.Sprintf("Project moved to %s", t.To.Label()),
				Metadata: map[string]interface{}{
					"from":       t.From,
					"to":         t.To,
					"project_id": t.ProjectID,
					"at":         t.At.Format(time.RFC3339Nano),
				},
			})
		}
		if project == nil {
			continue
		}
		switch t.To {
		case models.StatusAwaitingReviewerAssessments:
			s.notifications.ReviewersReleased(ctx, actorID, *project)
		case models.StatusResultsReleasedToReviewee:
			s.notifications.ResultsReleased(ctx, actorID, *project)
		}
	}
}
