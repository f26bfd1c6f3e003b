package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"officer-review-api/models"
	"officer-review-api/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResponseInput is one answer submitted with a draft save.
type ResponseInput struct {
	QuestionID int      `json:"question_id" binding:"required"`
	Text       *string  `json:"text"`
	Number     *float64 `json:"number"`
}

// MatrixResult reports the outcome of a batch assignment request.
type MatrixResult struct {
	Created            []models.Assignment `json:"created"`
	SkippedReviewerIDs []int               `json:"skipped_reviewer_ids"`
}

// SyncResult reports how an officer's reviewer set was reconciled.
type SyncResult struct {
	Created  []models.Assignment `json:"created"`
	Removed  []models.Assignment `json:"removed"`
	Retained []models.Assignment `json:"retained"`
}

// AssignmentService owns assignment rows and their responses.
type AssignmentService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAssignmentService instantiates the service.
func NewAssignmentService(db *gorm.DB) *AssignmentService {
	return &AssignmentService{db: db, now: utcNow}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// Get loads an assignment by id.
func (s *AssignmentService) Get(ctx context.Context, assignmentID int) (*models.Assignment, error) {
	return s.get(s.db.WithContext(ctx), assignmentID)
}

func (s *AssignmentService) get(tx *gorm.DB, assignmentID int) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := tx.Where("assignment_id = ?", assignmentID).First(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to load assignment %d: %w", assignmentID, err)
	}
	return &assignment, nil
}

// Create inserts a single assignment. An existing triple yields ErrDuplicateAssignment.
func (s *AssignmentService) Create(ctx context.Context, periodID, officerID, reviewerID int) (*models.Assignment, error) {
	var created *models.Assignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = s.create(tx, periodID, officerID, reviewerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *AssignmentService) create(tx *gorm.DB, periodID, officerID, reviewerID int) (*models.Assignment, error) {
	existing, err := s.findTriple(tx, periodID, officerID, reviewerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateAssignment
	}

	now := s.now()
	assignment := models.Assignment{
		PeriodID:   periodID,
		OfficerID:  officerID,
		ReviewerID: reviewerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	inserted, err := insertOnce(tx, "assignment_insert", &assignment)
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}
	if !inserted {
		return nil, ErrDuplicateAssignment
	}
	return &assignment, nil
}

// insertOnce creates value behind a savepoint. A unique-key conflict rolls back
// to the savepoint, leaving tx usable, and reports false.
func insertOnce(tx *gorm.DB, savepoint string, value interface{}) (bool, error) {
	if err := tx.SavePoint(savepoint).Error; err != nil {
		return false, err
	}
	err := tx.Create(value).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		if rbErr := tx.RollbackTo(savepoint).Error; rbErr != nil {
			return false, rbErr
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *AssignmentService) findTriple(tx *gorm.DB, periodID, officerID, reviewerID int) (*models.Assignment, error) {
	var rows []models.Assignment
	if err := tx.Where("period_id = ? AND officer_id = ? AND reviewer_id = ?", periodID, officerID, reviewerID).
		Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to look up assignment: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// createMatrix creates the officer's self-assessment (when missing) and one
// assignment per reviewer. Existing triples are skipped, not duplicated.
func (s *AssignmentService) createMatrix(tx *gorm.DB, periodID, officerID int, reviewerIDs []int) (*MatrixResult, error) {
	result := &MatrixResult{Created: []models.Assignment{}, SkippedReviewerIDs: []int{}}

	for _, reviewerID := range withSelf(officerID, reviewerIDs) {
		created, err := s.create(tx, periodID, officerID, reviewerID)
		if errors.Is(err, ErrDuplicateAssignment) {
			if reviewerID != officerID {
				result.SkippedReviewerIDs = append(result.SkippedReviewerIDs, reviewerID)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		result.Created = append(result.Created, *created)
	}
	return result, nil
}

// withSelf returns the distinct reviewer ids with the officer first.
func withSelf(officerID int, reviewerIDs []int) []int {
	seen := map[int]bool{officerID: true}
	ids := []int{officerID}
	for _, id := range reviewerIDs {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// SelfAssignment returns the officer's self-assessment, or nil when none exists.
func (s *AssignmentService) SelfAssignment(ctx context.Context, periodID, officerID int) (*models.Assignment, error) {
	return s.selfAssignment(s.db.WithContext(ctx), periodID, officerID)
}

func (s *AssignmentService) selfAssignment(tx *gorm.DB, periodID, officerID int) (*models.Assignment, error) {
	return s.findTriple(tx, periodID, officerID, officerID)
}

// ExternalAssignments returns every assignment where someone else reviews the officer.
func (s *AssignmentService) ExternalAssignments(ctx context.Context, periodID, officerID int) ([]models.Assignment, error) {
	return s.externalAssignments(s.db.WithContext(ctx), periodID, officerID)
}

func (s *AssignmentService) externalAssignments(tx *gorm.DB, periodID, officerID int) ([]models.Assignment, error) {
	var rows []models.Assignment
	if err := externalScope(tx, periodID, officerID).
		Order("assignment_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load reviewer assignments: %w", err)
	}
	return rows, nil
}

func externalScope(tx *gorm.DB, periodID, officerID int) *gorm.DB {
	return tx.Model(&models.Assignment{}).
		Where("period_id = ? AND officer_id = ? AND reviewer_id <> officer_id", periodID, officerID)
}

// CountExternal returns total and completed external assignments for the officer.
func (s *AssignmentService) CountExternal(ctx context.Context, periodID, officerID int) (int64, int64, error) {
	return s.countExternal(s.db.WithContext(ctx), periodID, officerID)
}

func (s *AssignmentService) countExternal(tx *gorm.DB, periodID, officerID int) (int64, int64, error) {
	var total, completed int64
	if err := externalScope(tx, periodID, officerID).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count reviewer assignments: %w", err)
	}
	if err := externalScope(tx, periodID, officerID).Where("is_completed = ?", true).Count(&completed).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count completed reviewer assignments: %w", err)
	}
	return total, completed, nil
}

// HasExternalResponses reports whether any external reviewer has saved an answer.
func (s *AssignmentService) HasExternalResponses(ctx context.Context, periodID, officerID int) (bool, error) {
	return s.hasExternalResponses(s.db.WithContext(ctx), periodID, officerID)
}

func (s *AssignmentService) hasExternalResponses(tx *gorm.DB, periodID, officerID int) (bool, error) {
	var count int64
	err := tx.Model(&models.Response{}).
		Joins("JOIN assignments ON assignments.assignment_id = responses.assignment_id").
		Where("assignments.period_id = ? AND assignments.officer_id = ? AND assignments.reviewer_id <> assignments.officer_id", periodID, officerID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check reviewer responses: %w", err)
	}
	return count > 0, nil
}

// ListForReviewer returns the reviewer's assignments in a period.
func (s *AssignmentService) ListForReviewer(ctx context.Context, periodID, reviewerID int) ([]models.Assignment, error) {
	var rows []models.Assignment
	if err := s.db.WithContext(ctx).
		Where("period_id = ? AND reviewer_id = ?", periodID, reviewerID).
		Order("assignment_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load reviewer tasks: %w", err)
	}
	return rows, nil
}

// Responses returns the answers recorded under an assignment.
func (s *AssignmentService) Responses(ctx context.Context, assignmentID int) ([]models.Response, error) {
	return s.responses(s.db.WithContext(ctx), assignmentID)
}

func (s *AssignmentService) responses(tx *gorm.DB, assignmentID int) ([]models.Response, error) {
	var rows []models.Response
	if err := tx.Where("assignment_id = ?", assignmentID).Order("question_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}
	return rows, nil
}

func (s *AssignmentService) responseCount(tx *gorm.DB, assignmentID int) (int64, error) {
	var count int64
	if err := tx.Model(&models.Response{}).Where("assignment_id = ?", assignmentID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count responses: %w", err)
	}
	return count, nil
}

// saveDraft upserts answers on an editable assignment. The editability check
// and the write happen under the same conditional update.
func (s *AssignmentService) saveDraft(tx *gorm.DB, assignmentID int, inputs []ResponseInput) (int, error) {
	now := s.now()
	res := tx.Model(&models.Assignment{}).
		Where("assignment_id = ? AND is_submitted = ? AND is_completed = ?", assignmentID, false, false).
		Update("updated_at", now)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to lock assignment for draft: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, s.editRefusal(tx, assignmentID)
	}
	if len(inputs) == 0 {
		return 0, nil
	}

	rows := make([]models.Response, 0, len(inputs))
	for _, in := range inputs {
		if in.QuestionID <= 0 {
			continue
		}
		var text *string
		if in.Text != nil {
			cleaned := utils.SanitizeInput(*in.Text)
			text = &cleaned
		}
		rows = append(rows, models.Response{
			AssignmentID:   assignmentID,
			QuestionID:     in.QuestionID,
			ResponseText:   text,
			ResponseNumber: in.Number,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "assignment_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"response_text", "response_number", "updated_at"}),
	}).Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("failed to save responses: %w", err)
	}
	return len(rows), nil
}

// editRefusal explains why a conditional update on an assignment matched nothing.
func (s *AssignmentService) editRefusal(tx *gorm.DB, assignmentID int) error {
	current, err := s.get(tx, assignmentID)
	if err != nil {
		return err
	}
	if current.IsCompleted {
		return ErrAssignmentCompleted
	}
	if current.IsSubmitted {
		return ErrAlreadySubmitted
	}
	return fmt.Errorf("assignment %d changed concurrently", assignmentID)
}

// submit marks the assignment as finished by its reviewer. It reports false
// when the assignment was already submitted.
func (s *AssignmentService) submit(tx *gorm.DB, assignmentID int) (bool, error) {
	now := s.now()
	res := tx.Model(&models.Assignment{}).
		Where("assignment_id = ? AND is_submitted = ? AND is_completed = ?", assignmentID, false, false).
		Updates(map[string]interface{}{
			"is_submitted": true,
			"submitted_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to submit assignment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.get(tx, assignmentID)
		if err != nil {
			return false, err
		}
		if current.IsCompleted {
			return false, ErrAssignmentCompleted
		}
		return false, nil
	}
	return true, nil
}

// Approve approves a submitted assignment in its own transaction.
func (s *AssignmentService) Approve(ctx context.Context, assignmentID, adminID int) (bool, error) {
	var approved bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		approved, err = s.approve(tx, assignmentID, adminID)
		return err
	})
	return approved, err
}

// approve completes a submitted, not yet approved assignment. Zero affected
// rows means the precondition did not hold.
func (s *AssignmentService) approve(tx *gorm.DB, assignmentID, adminID int) (bool, error) {
	now := s.now()
	res := tx.Model(&models.Assignment{}).
		Where("assignment_id = ? AND is_submitted = ? AND is_admin_approved = ?", assignmentID, true, false).
		Updates(map[string]interface{}{
			"is_admin_approved": true,
			"admin_approved_at": now,
			"admin_approved_by": adminID,
			"is_completed":      true,
			"completed_at":      now,
			"updated_at":        now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to approve assignment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.get(tx, assignmentID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Reject sends a submitted assignment back in its own transaction.
func (s *AssignmentService) Reject(ctx context.Context, assignmentID int, notes string) (bool, error) {
	var rejected bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rejected, err = s.reject(tx, assignmentID, notes)
		return err
	})
	return rejected, err
}

// reject reopens a submitted, unapproved assignment for revision and leaves
// the admin's notes for the reviewer.
func (s *AssignmentService) reject(tx *gorm.DB, assignmentID int, notes string) (bool, error) {
	cleaned := utils.SanitizeInput(notes)
	res := tx.Model(&models.Assignment{}).
		Where("assignment_id = ? AND is_submitted = ? AND is_admin_approved = ?", assignmentID, true, false).
		Updates(map[string]interface{}{
			"is_submitted": false,
			"submitted_at": nil,
			"admin_notes":  cleaned,
			"updated_at":   s.now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to reject assignment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.get(tx, assignmentID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// delete removes an external assignment that is neither completed nor
// answered.
func (s *AssignmentService) delete(tx *gorm.DB, assignmentID int) (*models.Assignment, error) {
	assignment, err := s.get(tx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.IsSelfAssessment() {
		return nil, ErrSelfAssessmentRequired
	}
	if err := s.deleteIfUnanswered(tx, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *AssignmentService) deleteIfUnanswered(tx *gorm.DB, assignment *models.Assignment) error {
	if assignment.IsCompleted {
		return ErrAssignmentCompleted
	}
	count, err := s.responseCount(tx, assignment.AssignmentID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrHasDependentData
	}
	res := tx.Where("assignment_id = ? AND is_completed = ?", assignment.AssignmentID, false).Delete(&models.Assignment{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete assignment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAssignmentCompleted
	}
	return nil
}

// syncMatrix makes the officer's external reviewers match reviewerIDs.
// Assignments outside the desired set are pruned only when they are neither
// completed nor answered; the rest are retained.
func (s *AssignmentService) syncMatrix(tx *gorm.DB, periodID, officerID int, reviewerIDs []int) (*SyncResult, error) {
	desired := map[int]bool{}
	for _, id := range withSelf(officerID, reviewerIDs) {
		desired[id] = true
	}

	matrix, err := s.createMatrix(tx, periodID, officerID, reviewerIDs)
	if err != nil {
		return nil, err
	}
	result := &SyncResult{
		Created:  matrix.Created,
		Removed:  []models.Assignment{},
		Retained: []models.Assignment{},
	}

	external, err := s.externalAssignments(tx, periodID, officerID)
	if err != nil {
		return nil, err
	}
	for i := range external {
		assignment := external[i]
		if desired[assignment.ReviewerID] {
			continue
		}
		err := s.deleteIfUnanswered(tx, &assignment)
		switch {
		case errors.Is(err, ErrHasDependentData), errors.Is(err, ErrAssignmentCompleted):
			result.Retained = append(result.Retained, assignment)
		case err != nil:
			return nil, err
		default:
			result.Removed = append(result.Removed, assignment)
		}
	}

	sort.Slice(result.Created, func(i, j int) bool {
		return result.Created[i].AssignmentID < result.Created[j].AssignmentID
	})
	return result, nil
}
