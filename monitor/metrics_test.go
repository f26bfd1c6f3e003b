package monitor

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"officer-review-api/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestInstrumentLabelsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	router := gin.New()
	router.Use(m.Instrument())
	router.GET("/api/v1/assignments/:id/gate", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/v1/assignments/1/gate", "/api/v1/assignments/2/gate", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/v1/assignments/:id/gate", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
	assert.Zero(t, testutil.ToFloat64(m.httpInFlight))
}

func TestObserverCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.TransitionApplied(models.StatusAwaitingFinalAdminApproval, models.StatusAssessmentApprovedByAdmin)
	m.NotificationDelivered(models.NotifyDueReminder, true)
	m.NotificationDelivered(models.NotifyDueReminder, false)
	m.NotificationDelivered(models.NotifyDueReminder, false)
	m.SummaryGenerated(true, 1500*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("awaiting_final_admin_approval", "assessment_approved_by_admin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("due_reminder", "delivered")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.notifications.WithLabelValues("due_reminder", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.summaries.WithLabelValues("fallback")))

	count, err := testutil.GatherAndCount(reg, "review_summary_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SummaryGenerated(false, time.Second)

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `review_summaries_total{source="summarizer"} 1`)
}

func TestLogsRoute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("started\n"), 0o644))

	deny := func(c *gin.Context) {
		if c.GetHeader("X-Admin") == "" {
			c.AbortWithStatus(http.StatusForbidden)
		}
	}
	router := gin.New()
	RegisterLogsRoute(router, path, deny)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/logs", nil)
	req.Header.Set("X-Admin", "1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "started"))

	broken := gin.New()
	RegisterLogsRoute(broken, filepath.Join(t.TempDir(), "missing.log"))
	w = httptest.NewRecorder()
	broken.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
