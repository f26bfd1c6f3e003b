package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"officer-review-api/config"
	"officer-review-api/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testPeriod  = 5
	testOfficer = 1
	testAdmin   = 100
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

func seedOfficers(t *testing.T, db *gorm.DB, role int, ids ...int) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, db.Create(&models.Officer{
			OfficerID: id,
			Name:      fmt.Sprintf("Officer %d", id),
			Email:     fmt.Sprintf("officer%d@example.com", id),
			RoleID:    role,
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		}).Error)
	}
}

func seedPeriod(t *testing.T, db *gorm.DB, id int, due time.Time) {
	t.Helper()
	start := due.AddDate(0, -1, 0)
	require.NoError(t, db.Create(&models.ReviewPeriod{
		PeriodID:  id,
		Name:      fmt.Sprintf("Period %d", id),
		StartDate: start,
		EndDate:   due,
		DueDate:   &due,
		IsActive:  true,
		CreatedBy: testAdmin,
		CreatedAt: start,
	}).Error)
}

type sentNotification struct {
	Recipient Recipient
	Kind      models.NotificationKind
	Data      NotificationData
}

// fakeNotifier records every notification and fails for officers in fail.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	fail map[int]bool
}

func (n *fakeNotifier) Notify(_ context.Context, recipient Recipient, kind models.NotificationKind, data NotificationData) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[recipient.OfficerID] {
		return false
	}
	n.sent = append(n.sent, sentNotification{Recipient: recipient, Kind: kind, Data: data})
	return true
}

func (n *fakeNotifier) recipients(kind models.NotificationKind) []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	var ids []int
	for _, s := range n.sent {
		if s.Kind == kind {
			ids = append(ids, s.Recipient.OfficerID)
		}
	}
	return ids
}

type testEnv struct {
	db       *gorm.DB
	stack    *Stack
	notifier *fakeNotifier
}

// newTestEnv seeds officer 1 with reviewers 2, 3 and 4, admin 100 and period 5
// due in ten days. Notifications are delivered synchronously.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	seedOfficers(t, db, models.RoleOfficer, testOfficer)
	seedOfficers(t, db, models.RoleReviewer, 2, 3, 4)
	seedOfficers(t, db, models.RoleAdmin, testAdmin)
	seedPeriod(t, db, testPeriod, time.Now().UTC().AddDate(0, 0, 10))

	notifier := &fakeNotifier{fail: map[int]bool{}}
	stack := NewStack(db, config.Config{AppBaseURL: "https://reviews.example.com"}, notifier, nil, nil)
	stack.Notifications.dispatch = func(f func()) { f() }
	return &testEnv{db: db, stack: stack, notifier: notifier}
}

func (e *testEnv) assign(t *testing.T, reviewerIDs ...int) *AssignResult {
	t.Helper()
	res, err := e.stack.Workflow.AssignReviewers(context.Background(), testPeriod, testOfficer, reviewerIDs, testAdmin)
	require.NoError(t, err)
	return res
}

func (e *testEnv) assignmentFor(t *testing.T, reviewerID int) models.Assignment {
	t.Helper()
	var a models.Assignment
	require.NoError(t, e.db.Where("period_id = ? AND officer_id = ? AND reviewer_id = ?", testPeriod, testOfficer, reviewerID).First(&a).Error)
	return a
}

func (e *testEnv) project(t *testing.T) models.Project {
	t.Helper()
	p, err := e.stack.Projects.Get(context.Background(), testPeriod, testOfficer)
	require.NoError(t, err)
	return *p
}

// completeSelf answers, submits and approves the self-assessment.
func (e *testEnv) completeSelf(t *testing.T, release bool) *Outcome {
	t.Helper()
	ctx := context.Background()
	self := e.assignmentFor(t, testOfficer)
	text := "Delivered the migration on time"
	_, err := e.stack.Workflow.SaveDraft(ctx, self.AssignmentID, testOfficer, []ResponseInput{{QuestionID: 1, Text: &text}})
	require.NoError(t, err)
	_, err = e.stack.Workflow.Submit(ctx, self.AssignmentID, testOfficer)
	require.NoError(t, err)
	out, err := e.stack.Workflow.ApproveAssignment(ctx, self.AssignmentID, testAdmin, release)
	require.NoError(t, err)
	require.True(t, out.Applied)
	return out
}

// completeReviewer answers, submits and approves the reviewer's assignment.
func (e *testEnv) completeReviewer(t *testing.T, reviewerID int, text string, score float64) *Outcome {
	t.Helper()
	ctx := context.Background()
	a := e.assignmentFor(t, reviewerID)
	_, err := e.stack.Workflow.SaveDraft(ctx, a.AssignmentID, reviewerID, []ResponseInput{
		{QuestionID: 1, Text: &text},
		{QuestionID: 2, Number: &score},
	})
	require.NoError(t, err)
	_, err = e.stack.Workflow.Submit(ctx, a.AssignmentID, reviewerID)
	require.NoError(t, err)
	out, err := e.stack.Workflow.ApproveAssignment(ctx, a.AssignmentID, testAdmin, false)
	require.NoError(t, err)
	require.True(t, out.Applied)
	return out
}

func statuses(transitions []Transition) []models.AssessmentStatus {
	out := make([]models.AssessmentStatus, 0, len(transitions))
	for _, tr := range transitions {
		out = append(out, tr.To)
	}
	return out
}

func countEvents(t *testing.T, db *gorm.DB, eventType models.EventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.ActivityEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}
