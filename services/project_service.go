package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"officer-review-api/models"

	"gorm.io/gorm"
)

// ProjectService owns the aggregate workflow record of each officer per period.
type ProjectService struct {
	db          *gorm.DB
	assignments *AssignmentService
	now         func() time.Time
}

// NewProjectService instantiates the service.
func NewProjectService(db *gorm.DB, assignments *AssignmentService) *ProjectService {
	return &ProjectService{db: db, assignments: assignments, now: utcNow}
}

// Get loads the project for an officer in a period.
func (s *ProjectService) Get(ctx context.Context, periodID, officerID int) (*models.Project, error) {
	return s.find(s.db.WithContext(ctx), periodID, officerID)
}

// GetByID loads a project by its id.
func (s *ProjectService) GetByID(ctx context.Context, projectID int) (*models.Project, error) {
	return s.getByID(s.db.WithContext(ctx), projectID)
}

func (s *ProjectService) getByID(tx *gorm.DB, projectID int) (*models.Project, error) {
	var project models.Project
	if err := tx.Where("project_id = ?", projectID).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to load project %d: %w", projectID, err)
	}
	return &project, nil
}

func (s *ProjectService) find(tx *gorm.DB, periodID, officerID int) (*models.Project, error) {
	var project models.Project
	if err := tx.Where("period_id = ? AND officer_id = ?", periodID, officerID).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return &project, nil
}

// ListByPeriod returns every project in a period ordered by officer.
func (s *ProjectService) ListByPeriod(ctx context.Context, periodID int) ([]models.Project, error) {
	var rows []models.Project
	if err := s.db.WithContext(ctx).
		Where("period_id = ?", periodID).
		Order("officer_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return rows, nil
}

// EnsureProject returns the officer's project, creating it on first use.
func (s *ProjectService) EnsureProject(ctx context.Context, periodID, officerID int) (*models.Project, error) {
	var project *models.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		project, err = s.ensure(tx, periodID, officerID)
		return err
	})
	return project, err
}

func (s *ProjectService) ensure(tx *gorm.DB, periodID, officerID int) (*models.Project, error) {
	project, err := s.find(tx, periodID, officerID)
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, ErrProjectNotFound) {
		return nil, err
	}

	now := s.now()
	created := models.Project{
		PeriodID:  periodID,
		OfficerID: officerID,
		Status:    models.StatusPendingSelfAssessment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	inserted, err := insertOnce(tx, "project_insert", &created)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	if !inserted {
		return s.find(tx, periodID, officerID)
	}
	return &created, nil
}

// Advance attempts one forward step for the project. It returns false without
// mutating anything when the step's precondition does not hold, including when
// a concurrent caller already moved the project on.
func (s *ProjectService) Advance(ctx context.Context, projectID int, adminID *int) (bool, error) {
	var advanced bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := s.getByID(tx, projectID)
		if err != nil {
			return err
		}
		_, advanced, err = s.advance(tx, project, adminID)
		return err
	})
	return advanced, err
}

// advance applies one step to project inside tx and updates project in place
// on success.
func (s *ProjectService) advance(tx *gorm.DB, project *models.Project, adminID *int) (*Transition, bool, error) {
	if !project.Status.Valid() {
		return nil, false, fmt.Errorf("project %d has unknown status %q", project.ProjectID, project.Status)
	}
	if project.Status.Terminal() {
		return nil, false, nil
	}

	facts, err := s.loadFacts(tx, project)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	next, ok := NextState(*project, facts, adminID, now)
	if !ok {
		return nil, false, nil
	}

	res := tx.Model(&models.Project{}).
		Where("project_id = ? AND status = ?", project.ProjectID, project.Status).
		Updates(map[string]interface{}{
			"status":                           next.Status,
			"self_assessment_submitted_at":     next.SelfAssessmentSubmittedAt,
			"admin_review_completed_at":        next.AdminReviewCompletedAt,
			"reviewer_assessments_released_at": next.ReviewerAssessmentsReleasedAt,
			"final_approval_at":                next.FinalApprovalAt,
			"results_released_at":              next.ResultsReleasedAt,
			"reviewee_acknowledged_at":         next.RevieweeAcknowledgedAt,
			"admin_approved_by":                next.AdminApprovedBy,
			"reviewer_tasks_visible":           next.ReviewerTasksVisible,
			"updated_at":                       next.UpdatedAt,
		})
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to advance project %d: %w", project.ProjectID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}

	transition := &Transition{
		ProjectID: project.ProjectID,
		OfficerID: project.OfficerID,
		PeriodID:  project.PeriodID,
		From:      project.Status,
		To:        next.Status,
		At:        now,
	}
	*project = next
	return transition, true, nil
}

// advanceFrom steps the project only when it currently sits in from. Actor
// actions use it so a stale request cannot push a project past the stage the
// actor meant to act on.
func (s *ProjectService) advanceFrom(tx *gorm.DB, project *models.Project, from models.AssessmentStatus, adminID *int) (*Transition, bool, error) {
	if project.Status != from {
		return nil, false, nil
	}
	return s.advance(tx, project, adminID)
}

// advanceSystem applies system-driven steps until the project blocks on data
// or reaches a stage that needs an actor. stopAt, when non-empty, ends the run
// once the project enters that status.
func (s *ProjectService) advanceSystem(tx *gorm.DB, project *models.Project, stopAt models.AssessmentStatus) ([]Transition, error) {
	var transitions []Transition
	for systemDriven(project.Status) {
		if stopAt != "" && project.Status == stopAt {
			break
		}
		transition, ok, err := s.advance(tx, project, nil)
		if err != nil {
			return transitions, err
		}
		if !ok {
			break
		}
		transitions = append(transitions, *transition)
	}
	return transitions, nil
}

func (s *ProjectService) loadFacts(tx *gorm.DB, project *models.Project) (ProjectFacts, error) {
	var facts ProjectFacts
	needSelf, needResponded, needCounts := factsNeeded(project.Status)

	if needSelf {
		self, err := s.assignments.selfAssignment(tx, project.PeriodID, project.OfficerID)
		if err != nil {
			return facts, err
		}
		facts.SelfAssignment = self
	}
	if needResponded {
		responded, err := s.assignments.hasExternalResponses(tx, project.PeriodID, project.OfficerID)
		if err != nil {
			return facts, err
		}
		facts.ExternalResponded = responded
	}
	if needCounts {
		total, completed, err := s.assignments.countExternal(tx, project.PeriodID, project.OfficerID)
		if err != nil {
			return facts, err
		}
		facts.ExternalTotal = total
		facts.ExternalCompleted = completed
	}
	return facts, nil
}

// ProjectSnapshot is a project with its assignment aggregate and gates.
type ProjectSnapshot struct {
	Project           models.Project      `json:"project"`
	StatusLabel       string              `json:"status_label"`
	SelfAssignment    *models.Assignment  `json:"self_assignment,omitempty"`
	External          []models.Assignment `json:"external_assignments"`
	ExternalTotal     int                 `json:"external_total"`
	ExternalCompleted int                 `json:"external_completed"`
	Gates             GateReport          `json:"gates"`
}

// Snapshot loads the project for officer/period with its assignments.
func (s *ProjectService) Snapshot(ctx context.Context, periodID, officerID int) (*ProjectSnapshot, error) {
	db := s.db.WithContext(ctx)
	project, err := s.find(db, periodID, officerID)
	if err != nil {
		return nil, err
	}
	self, err := s.assignments.selfAssignment(db, periodID, officerID)
	if err != nil {
		return nil, err
	}
	external, err := s.assignments.externalAssignments(db, periodID, officerID)
	if err != nil {
		return nil, err
	}

	completed := 0
	for _, assignment := range external {
		if assignment.IsCompleted {
			completed++
		}
	}
	return &ProjectSnapshot{
		Project:           *project,
		StatusLabel:       project.Status.Label(),
		SelfAssignment:    self,
		External:          external,
		ExternalTotal:     len(external),
		ExternalCompleted: completed,
		Gates:             EvaluateGates(project, self),
	}, nil
}
