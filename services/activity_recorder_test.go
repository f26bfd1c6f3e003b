package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"officer-review-api/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRecorder(t *testing.T) (*ActivityRecorder, *fakeClock, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	clock := &fakeClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	r := NewActivityRecorder(db, 0)
	r.now = clock.now
	return r, clock, db
}

func TestRecordStoresEvent(t *testing.T) {
	r, clock, _ := newTestRecorder(t)
	reviewer, assignment := 2, 11

	ctx := WithClientInfo(context.Background(), ClientInfo{IPAddress: "10.0.0.7", UserAgent: "reviewctl/1.0"})
	event := r.Record(ctx, EventInput{
		Type:         models.EventReviewerAssessmentSubmitted,
		OfficerID:    1,
		PeriodID:     5,
		ActorID:      2,
		ReviewerID:   &reviewer,
		AssignmentID: &assignment,
		Description:  "submitted",
		Metadata:     map[string]interface{}{"responses": 3},
	})
	require.NotNil(t, event)
	assert.Positive(t, event.EventID)
	assert.Len(t, event.EventUID, 26)
	assert.Equal(t, models.CategorySubmission, event.EventCategory)
	assert.Equal(t, models.EventStatusCompleted, event.EventStatus)
	assert.Equal(t, clock.t, event.Timestamp)
	assert.JSONEq(t, `{"responses":3}`, string(event.Metadata))
	require.NotNil(t, event.IPAddress)
	assert.Equal(t, "10.0.0.7", *event.IPAddress)
	require.NotNil(t, event.UserAgent)
	assert.Equal(t, "reviewctl/1.0", *event.UserAgent)
}

func TestRecordDeduplicatesWithinWindow(t *testing.T) {
	r, clock, db := newTestRecorder(t)
	ctx := context.Background()
	in := EventInput{Type: models.EventSelfAssessmentDraftSaved, OfficerID: 1, PeriodID: 5, ActorID: 1}

	first := r.Record(ctx, in)
	require.NotNil(t, first)

	clock.advance(3 * time.Second)
	second := r.Record(ctx, in)
	require.NotNil(t, second)
	assert.Equal(t, first.EventID, second.EventID)

	other := in
	other.ActorID = 100
	third := r.Record(ctx, other)
	require.NotNil(t, third)
	assert.NotEqual(t, first.EventID, third.EventID, "a different actor is a different event")

	clock.advance(6 * time.Second)
	fourth := r.Record(ctx, in)
	require.NotNil(t, fourth)
	assert.NotEqual(t, first.EventID, fourth.EventID, "the window has passed")

	assert.EqualValues(t, 3, countEvents(t, db, models.EventSelfAssessmentDraftSaved))
}

func TestRecordHonoursIdempotencyKey(t *testing.T) {
	r, clock, db := newTestRecorder(t)
	ctx := WithIdempotencyKey(context.Background(), "req-42")
	in := EventInput{Type: models.EventReminderSent, OfficerID: 1, PeriodID: 5, ActorID: 100}

	first := r.Record(ctx, in)
	require.NotNil(t, first)

	clock.advance(time.Hour)
	retry := r.Record(ctx, in)
	require.NotNil(t, retry)
	assert.Equal(t, first.EventID, retry.EventID)

	other := r.Record(ctx, EventInput{Type: models.EventAssessmentClosed, OfficerID: 1, PeriodID: 5, ActorID: 100})
	require.NotNil(t, other)
	assert.NotEqual(t, first.EventID, other.EventID, "keys are scoped per event type")

	nextOfficer := in
	nextOfficer.OfficerID = 2
	second := r.Record(ctx, nextOfficer)
	require.NotNil(t, second)
	assert.NotEqual(t, first.EventID, second.EventID, "keys are scoped per officer")
	again := r.Record(ctx, nextOfficer)
	require.NotNil(t, again)
	assert.Equal(t, second.EventID, again.EventID)

	assert.EqualValues(t, 2, countEvents(t, db, models.EventReminderSent))
}

func TestRecordKeepsOneEventPerAssignment(t *testing.T) {
	r, _, db := newTestRecorder(t)
	reviewerA, reviewerB := 2, 3
	assignmentA, assignmentB := 21, 22
	in := EventInput{Type: models.EventReviewerAssessmentApproved, OfficerID: 1, PeriodID: 5, ActorID: 100}

	for _, ctx := range []context.Context{context.Background(), WithIdempotencyKey(context.Background(), "batch-7")} {
		a := in
		a.ReviewerID, a.AssignmentID = &reviewerA, &assignmentA
		b := in
		b.ReviewerID, b.AssignmentID = &reviewerB, &assignmentB

		first := r.Record(ctx, a)
		require.NotNil(t, first)
		second := r.Record(ctx, b)
		require.NotNil(t, second)
		assert.NotEqual(t, first.EventID, second.EventID)

		retry := r.Record(ctx, b)
		require.NotNil(t, retry)
		assert.Equal(t, second.EventID, retry.EventID)
	}

	// The keyed pass lands inside the dedup window of the unkeyed one.
	assert.EqualValues(t, 2, countEvents(t, db, models.EventReviewerAssessmentApproved))
}

func TestRecordRefusesUnknownType(t *testing.T) {
	r, _, db := newTestRecorder(t)
	assert.Nil(t, r.Record(context.Background(), EventInput{Type: "made_up", OfficerID: 1}))

	var n int64
	require.NoError(t, db.Model(&models.ActivityEvent{}).Count(&n).Error)
	assert.Zero(t, n)
}

func newMockRecorder(t *testing.T) (*ActivityRecorder, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewActivityRecorder(db, time.Second), mock
}

func TestRecordSwallowsStorageFailures(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		r, mock := newMockRecorder(t)
		mock.ExpectQuery("SELECT .* FROM `assessment_activity_log`").WillReturnError(errors.New("connection refused"))

		assert.Nil(t, r.Record(context.Background(), EventInput{Type: models.EventAssessmentClosed, OfficerID: 1, ActorID: 100}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert", func(t *testing.T) {
		r, mock := newMockRecorder(t)
		mock.ExpectQuery("SELECT .* FROM `assessment_activity_log`").WillReturnRows(sqlmock.NewRows([]string{"event_id"}))
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `assessment_activity_log`").WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		assert.Nil(t, r.Record(context.Background(), EventInput{Type: models.EventAssessmentClosed, OfficerID: 1, ActorID: 100}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMilestonesUseFirstOccurrence(t *testing.T) {
	r, clock, _ := newTestRecorder(t)
	ctx := context.Background()

	first := r.Record(ctx, EventInput{Type: models.EventSelfAssessmentSubmitted, OfficerID: 1, PeriodID: 5, ActorID: 1})
	require.NotNil(t, first)
	clock.advance(time.Minute)
	require.NotNil(t, r.Record(ctx, EventInput{Type: models.EventSelfAssessmentRejected, OfficerID: 1, PeriodID: 5, ActorID: 100}))
	clock.advance(time.Minute)
	resubmitted := r.Record(ctx, EventInput{Type: models.EventSelfAssessmentSubmitted, OfficerID: 1, PeriodID: 5, ActorID: 1})
	require.NotNil(t, resubmitted)
	require.NotEqual(t, first.EventID, resubmitted.EventID)

	summary, err := r.Milestones(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalEvents)
	assert.Len(t, summary.Timeline, 3)

	byName := map[string]Milestone{}
	for _, m := range summary.Milestones {
		byName[m.Name] = m
	}
	require.NotNil(t, byName["self_assessment_submitted"].Event)
	assert.Equal(t, first.EventID, byName["self_assessment_submitted"].Event.EventID)
	assert.Nil(t, byName["assessment_closed"].Event)
}

func TestTimelineIsScopedAndOrdered(t *testing.T) {
	r, clock, _ := newTestRecorder(t)
	ctx := context.Background()

	r.Record(ctx, EventInput{Type: models.EventSelfAssessmentAssigned, OfficerID: 1, PeriodID: 5, ActorID: 100})
	clock.advance(time.Second)
	r.Record(ctx, EventInput{Type: models.EventSelfAssessmentStarted, OfficerID: 1, PeriodID: 5, ActorID: 1})
	r.Record(ctx, EventInput{Type: models.EventSelfAssessmentAssigned, OfficerID: 2, PeriodID: 5, ActorID: 100})
	r.Record(ctx, EventInput{Type: models.EventSelfAssessmentAssigned, OfficerID: 1, PeriodID: 6, ActorID: 100})

	timeline, err := r.Timeline(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, models.EventSelfAssessmentAssigned, timeline[0].EventType)
	assert.Equal(t, models.EventSelfAssessmentStarted, timeline[1].EventType)
}

func TestStatisticsCountsAndBucketsByDay(t *testing.T) {
	r, clock, _ := newTestRecorder(t)
	ctx := context.Background()
	start := clock.t

	clock.t = start.AddDate(0, 0, -45)
	r.Record(ctx, EventInput{Type: models.EventSelfAssessmentAssigned, OfficerID: 1, PeriodID: 5, ActorID: 100})
	clock.t = start.AddDate(0, 0, -1)
	r.Record(ctx, EventInput{Type: models.EventSelfAssessmentAssigned, OfficerID: 2, PeriodID: 5, ActorID: 100})
	clock.t = start
	r.Record(ctx, EventInput{Type: models.EventSelfAssessmentAssigned, OfficerID: 3, PeriodID: 5, ActorID: 100})
	r.Record(ctx, EventInput{Type: models.EventReminderSent, OfficerID: 3, PeriodID: 6, ActorID: 100})

	stats, err := r.Statistics(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.TotalEvents)
	assert.EqualValues(t, 3, stats.EventCounts[models.EventSelfAssessmentAssigned])
	assert.EqualValues(t, 1, stats.EventCounts[models.EventReminderSent])
	assert.Equal(t, map[string]int64{"2026-05-03": 1, "2026-05-04": 2}, stats.RecentActivity)

	period := 5
	scoped, err := r.Statistics(ctx, &period)
	require.NoError(t, err)
	assert.EqualValues(t, 3, scoped.TotalEvents)
	assert.Zero(t, scoped.EventCounts[models.EventReminderSent])
	require.NotNil(t, scoped.PeriodID)
}

func TestRecentFilters(t *testing.T) {
	r, clock, _ := newTestRecorder(t)
	ctx := context.Background()

	r.Record(ctx, EventInput{Type: models.EventSelfAssessmentAssigned, OfficerID: 1, PeriodID: 5, ActorID: 100})
	clock.advance(time.Second)
	r.Record(ctx, EventInput{Type: models.EventReminderSent, OfficerID: 1, PeriodID: 5, ActorID: 100})
	clock.advance(time.Second)
	r.Record(ctx, EventInput{Type: models.EventAssessmentClosed, OfficerID: 2, PeriodID: 5, ActorID: 100})

	all, err := r.Recent(ctx, EventFilter{PeriodID: 5})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.EventAssessmentClosed, all[0].EventType, "newest first")

	notifications, err := r.Recent(ctx, EventFilter{Category: models.CategoryNotification})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.EventReminderSent, notifications[0].EventType)

	limited, err := r.Recent(ctx, EventFilter{OfficerID: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, models.EventReminderSent, limited[0].EventType)
}
