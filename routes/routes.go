package routes

import (
	"net/http"

	"officer-review-api/controllers"
	"officer-review-api/middleware"
	"officer-review-api/models"
	"officer-review-api/monitor"

	"github.com/gin-gonic/gin"
)

// Dependencies are the handlers and guards the route table mounts.
type Dependencies struct {
	Workflow *controllers.WorkflowController
	Auth     gin.HandlerFunc
	Metrics  http.Handler
	LogPath  string
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Officer Review API is running",
		})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}
	monitor.RegisterLogsRoute(router, deps.LogPath, deps.Auth, middleware.RequireRole(models.RoleAdmin))

	wc := deps.Workflow
	admin := middleware.RequireRole(models.RoleAdmin)

	// API v1 group
	v1 := router.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(deps.Auth)
	{
		// Review periods
		protected.GET("/periods/active", wc.ActivePeriod)
		periods := protected.Group("/periods/:period_id")
		{
			periods.GET("/progress", admin, wc.PeriodProgress)
			periods.POST("/assignments", admin, wc.AssignReviewers)
			periods.PUT("/officers/:officer_id/assignments", admin, wc.SyncReviewers)
			periods.POST("/reconcile", admin, wc.ReconcilePeriod)
			periods.POST("/reminders", admin, wc.SendReminders)
			periods.GET("/events", admin, wc.RecentEvents)
			periods.GET("/events/stats", admin, wc.EventStats)

			// Any reviewer sees their own task list
			periods.GET("/tasks", wc.Tasks)
		}

		// Assignments
		assignments := protected.Group("/assignments/:id")
		{
			assignments.GET("/gate", wc.Gate)
			assignments.PUT("/draft", wc.SaveDraft)
			assignments.POST("/submit", wc.Submit)

			// Only admin can decide or delete
			assignments.POST("/approve", admin, wc.Approve)
			assignments.POST("/reject", admin, wc.Reject)
			assignments.DELETE("", admin, wc.DeleteAssignment)
		}

		// Assessment projects
		projects := protected.Group("/projects/:period_id/:officer_id")
		{
			// Officer (own project) & Admin
			projects.GET("", wc.GetProject)
			projects.GET("/timeline", wc.Timeline)
			projects.GET("/milestones", wc.Milestones)
			projects.POST("/acknowledge", wc.Acknowledge)

			projects.POST("/release-reviewers", admin, wc.ReleaseReviewers)
			projects.POST("/final-approve", admin, wc.FinalApprove)
			projects.POST("/release-results", admin, wc.ReleaseResults)
			projects.POST("/close", admin, wc.Close)
			projects.POST("/reconcile", admin, wc.Reconcile)
			projects.POST("/summary", admin, wc.GenerateSummary)
			projects.GET("/summary", admin, wc.SummaryStatus)
		}
	}
}
