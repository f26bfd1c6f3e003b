package controllers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"officer-review-api/middleware"
	"officer-review-api/models"
	"officer-review-api/services"
	"officer-review-api/utils"

	"github.com/gin-gonic/gin"
)

// WorkflowController binds the review workflow to HTTP.
type WorkflowController struct {
	workflow      *services.WorkflowService
	recorder      *services.ActivityRecorder
	notifications *services.NotificationService
	summaries     *services.SummaryService
	periods       *services.PeriodService
	reminderDays  int
}

// NewWorkflowController instantiates the controller over a wired stack.
func NewWorkflowController(stack *services.Stack, reminderDays int) *WorkflowController {
	return &WorkflowController{
		workflow:      stack.Workflow,
		recorder:      stack.Recorder,
		notifications: stack.Notifications,
		summaries:     stack.Summaries,
		periods:       stack.Periods,
		reminderDays:  reminderDays,
	}
}

type assignRequest struct {
	OfficerID   int   `json:"officer_id" binding:"required"`
	ReviewerIDs []int `json:"reviewer_ids"`
}

type syncRequest struct {
	ReviewerIDs []int `json:"reviewer_ids"`
}

type draftRequest struct {
	Responses []services.ResponseInput `json:"responses" binding:"required,dive"`
}

type rejectRequest struct {
	AdminNotes string `json:"admin_notes"`
}

type finalApprovalRequest struct {
	AdminNotes string `json:"admin_notes" binding:"max=1000"`
}

/* ==========================
   Helpers
   ========================== */

func getCurrentUserID(c *gin.Context) (int, bool) {
	v, ok := c.Get(middleware.ContextOfficerID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}

func isAdmin(c *gin.Context) bool {
	v, ok := c.Get(middleware.ContextRoleID)
	if !ok {
		return false
	}
	role, _ := v.(int)
	return role == models.RoleAdmin
}

func paramID(c *gin.Context, name string) (int, bool) {
	id, ok := utils.ParseID(c.Param(name))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// actor resolves the authenticated officer or writes a 401.
func actor(c *gin.Context) (int, bool) {
	id, ok := getCurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrAssignmentNotFound),
		errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrPeriodNotFound),
		errors.Is(err, services.ErrOfficerNotFound),
		errors.Is(err, services.ErrSummaryNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateAssignment),
		errors.Is(err, services.ErrHasDependentData),
		errors.Is(err, services.ErrSelfAssessmentRequired),
		errors.Is(err, services.ErrAssignmentCompleted),
		errors.Is(err, services.ErrAlreadySubmitted):
		status = http.StatusConflict
	case errors.Is(err, services.ErrGateClosed),
		errors.Is(err, services.ErrNotReviewer),
		errors.Is(err, services.ErrNotReviewee):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		log.Printf("workflow request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"success": false, "error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

// writeOutcome reports an action. An action whose precondition did not hold
// changed nothing and answers 422.
func writeOutcome(c *gin.Context, out *services.Outcome, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	if !out.Applied {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error":   "action is not applicable in the current state",
			"data":    out,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

/* ==========================
   Assignments
   ========================== */

// AssignReviewers creates the self-assessment and reviewer assignments for an officer.
func (wc *WorkflowController) AssignReviewers(c *gin.Context) {
	periodID, ok := paramID(c, "period_id")
	if !ok {
		return
	}
	adminID, ok := actor(c)
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	result, err := wc.workflow.AssignReviewers(c.Request.Context(), periodID, req.OfficerID, req.ReviewerIDs, adminID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": result})
}

// SyncReviewers makes an officer's reviewer set match the request.
func (wc *WorkflowController) SyncReviewers(c *gin.Context) {
	periodID, ok := paramID(c, "period_id")
	if !ok {
		return
	}
	officerID, ok := paramID(c, "officer_id")
	if !ok {
		return
	}
	adminID, ok := actor(c)
	if !ok {
		return
	}
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	result, err := wc.workflow.SyncReviewers(c.Request.Context(), periodID, officerID, req.ReviewerIDs, adminID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// DeleteAssignment removes an external assignment that is neither completed
// nor answered.
func (wc *WorkflowController) DeleteAssignment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	adminID, ok := actor(c)
	if !ok {
		return
	}
	out, err := wc.workflow.DeleteAssignment(c.Request.Context(), id, adminID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

// SaveDraft stores the caller's answers on their assignment.
func (wc *WorkflowController) SaveDraft(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := actor(c)
	if !ok {
		return
	}
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	out, err := wc.workflow.SaveDraft(c.Request.Context(), id, userID, req.Responses)
	writeOutcome(c, out, err)
}

// Submit hands the caller's assignment to the admin queue. Resubmitting is a
// no-op and still answers 200.
func (wc *WorkflowController) Submit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := actor(c)
	if !ok {
		return
	}
	out, err := wc.workflow.Submit(c.Request.Context(), id, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

// Approve approves a submitted assignment. release=true also opens a
// self-assessment's project to external reviewers.
func (wc *WorkflowController) Approve(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	adminID, ok := actor(c)
	if !ok {
		return
	}
	release, _ := strconv.ParseBool(c.DefaultQuery("release", "false"))

	out, err := wc.workflow.ApproveAssignment(c.Request.Context(), id, adminID, release)
	writeOutcome(c, out, err)
}

// Reject returns a submitted assignment to its reviewer.
func (wc *WorkflowController) Reject(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	adminID, ok := actor(c)
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	out, err := wc.workflow.RejectAssignment(c.Request.Context(), id, adminID, req.AdminNotes)
	writeOutcome(c, out, err)
}

// Gate tells the caller whether they may work on the assignment now.
func (wc *WorkflowController) Gate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := actor(c)
	if !ok {
		return
	}
	decision, err := wc.workflow.AssignmentGate(c.Request.Context(), id, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": decision})
}

// Tasks lists the caller's assignments in a period with their gates.
func (wc *WorkflowController) Tasks(c *gin.Context) {
	periodID, ok := paramID(c, "period_id")
	if !ok {
		return
	}
	userID, ok := actor(c)
	if !ok {
		return
	}
	tasks, err := wc.workflow.ReviewerTasks(c.Request.Context(), periodID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": tasks, "total": len(tasks)})
}

/* ==========================
   Projects
   ========================== */

// projectIDs reads the period and officer from the path. Officers may only
// address their own project; admins may address any.
func projectIDs(c *gin.Context) (periodID, officerID, userID int, ok bool) {
	if periodID, ok = paramID(c, "period_id"); !ok {
		return
	}
	if officerID, ok = paramID(c, "officer_id"); !ok {
		return
	}
	if userID, ok = actor(c); !ok {
		return
	}
	if userID != officerID && !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Insufficient permissions"})
		return 0, 0, 0, false
	}
	return periodID, officerID, userID, true
}

// GetProject returns the project with its assignments and gates.
func (wc *WorkflowController) GetProject(c *gin.Context) {
	periodID, officerID, _, ok := projectIDs(c)
	if !ok {
		return
	}
	snapshot, err := wc.workflow.ProjectView(c.Request.Context(), periodID, officerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": snapshot})
}

// ReleaseReviewers opens the project to external reviewers.
func (wc *WorkflowController) ReleaseReviewers(c *gin.Context) {
	periodID, officerID, adminID, ok := projectIDs(c)
	if !ok {
		return
	}
	out, err := wc.workflow.ReleaseReviewers(c.Request.Context(), periodID, officerID, adminID)
	writeOutcome(c, out, err)
}

// FinalApprove records the admin's final approval with optional notes.
func (wc *WorkflowController) FinalApprove(c *gin.Context) {
	periodID, officerID, adminID, ok := projectIDs(c)
	if !ok {
		return
	}
	var req finalApprovalRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}

	out, err := wc.workflow.FinalApprove(c.Request.Context(), periodID, officerID, adminID, req.AdminNotes)
	writeOutcome(c, out, err)
}

// ReleaseResults shows the results to the officer.
func (wc *WorkflowController) ReleaseResults(c *gin.Context) {
	periodID, officerID, adminID, ok := projectIDs(c)
	if !ok {
		return
	}
	out, err := wc.workflow.ReleaseResults(c.Request.Context(), periodID, officerID, adminID)
	writeOutcome(c, out, err)
}

// Acknowledge records that the officer has read their results.
func (wc *WorkflowController) Acknowledge(c *gin.Context) {
	periodID, officerID, userID, ok := projectIDs(c)
	if !ok {
		return
	}
	out, err := wc.workflow.Acknowledge(c.Request.Context(), periodID, officerID, userID)
	writeOutcome(c, out, err)
}

// Close finishes the project.
func (wc *WorkflowController) Close(c *gin.Context) {
	periodID, officerID, adminID, ok := projectIDs(c)
	if !ok {
		return
	}
	out, err := wc.workflow.Close(c.Request.Context(), periodID, officerID, adminID)
	writeOutcome(c, out, err)
}

// Reconcile applies pending data-driven steps. It answers 200 even when
// nothing moved.
func (wc *WorkflowController) Reconcile(c *gin.Context) {
	periodID, officerID, adminID, ok := projectIDs(c)
	if !ok {
		return
	}
	out, err := wc.workflow.Reconcile(c.Request.Context(), periodID, officerID, adminID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

// Timeline returns the officer's activity in the period, oldest first.
func (wc *WorkflowController) Timeline(c *gin.Context) {
	periodID, officerID, _, ok := projectIDs(c)
	if !ok {
		return
	}
	events, err := wc.recorder.Timeline(c.Request.Context(), officerID, periodID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": events, "total": len(events)})
}

// Milestones returns when each key workflow event first happened.
func (wc *WorkflowController) Milestones(c *gin.Context) {
	periodID, officerID, _, ok := projectIDs(c)
	if !ok {
		return
	}
	summary, err := wc.recorder.Milestones(c.Request.Context(), officerID, periodID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

// GenerateSummary produces the review summary for the officer.
func (wc *WorkflowController) GenerateSummary(c *gin.Context) {
	periodID, officerID, adminID, ok := projectIDs(c)
	if !ok {
		return
	}
	result, err := wc.summaries.Generate(c.Request.Context(), periodID, officerID, adminID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// SummaryStatus reports progress of the officer's summary generation.
func (wc *WorkflowController) SummaryStatus(c *gin.Context) {
	periodID, officerID, _, ok := projectIDs(c)
	if !ok {
		return
	}
	status, err := wc.summaries.Status(c.Request.Context(), periodID, officerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": status})
}

/* ==========================
   Periods
   ========================== */

// ActivePeriod returns the most recently started active period.
func (wc *WorkflowController) ActivePeriod(c *gin.Context) {
	period, err := wc.periods.Active(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": period})
}

// PeriodProgress reports how many of the period's assignments are completed.
func (wc *WorkflowController) PeriodProgress(c *gin.Context) {
	periodID, ok := paramID(c, "period_id")
	if !ok {
		return
	}
	progress, err := wc.periods.Progress(c.Request.Context(), periodID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": progress})
}

// ReconcilePeriod reconciles every project in the period.
func (wc *WorkflowController) ReconcilePeriod(c *gin.Context) {
	periodID, ok := paramID(c, "period_id")
	if !ok {
		return
	}
	adminID, ok := actor(c)
	if !ok {
		return
	}
	transitions, err := wc.workflow.ReconcilePeriod(c.Request.Context(), periodID, adminID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": transitions, "total": len(transitions)})
}

// SendReminders notifies reviewers with unsubmitted work near the deadline.
func (wc *WorkflowController) SendReminders(c *gin.Context) {
	periodID, ok := paramID(c, "period_id")
	if !ok {
		return
	}
	adminID, ok := actor(c)
	if !ok {
		return
	}
	days := wc.reminderDays
	if raw := c.Query("within_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid within_days"})
			return
		}
		days = parsed
	}

	report, err := wc.notifications.SendReminders(c.Request.Context(), periodID, adminID, days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}

// EventStats counts events for the period.
func (wc *WorkflowController) EventStats(c *gin.Context) {
	periodID, ok := paramID(c, "period_id")
	if !ok {
		return
	}
	stats, err := wc.recorder.Statistics(c.Request.Context(), &periodID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// RecentEvents lists the period's events, newest first.
func (wc *WorkflowController) RecentEvents(c *gin.Context) {
	periodID, ok := paramID(c, "period_id")
	if !ok {
		return
	}
	filter := services.EventFilter{
		PeriodID: periodID,
		Category: models.EventCategory(c.Query("category")),
		Type:     models.EventType(c.Query("type")),
	}
	if id, ok := utils.ParseID(c.Query("officer_id")); ok {
		filter.OfficerID = id
	}
	if id, ok := utils.ParseID(c.Query("reviewer_id")); ok {
		filter.ReviewerID = id
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "100")); err == nil {
		filter.Limit = limit
	}

	events, err := wc.recorder.Recent(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": events, "total": len(events)})
}
