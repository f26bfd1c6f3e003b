package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"officer-review-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummarizer struct {
	calls  atomic.Int32
	result *SummaryResult
	err    error
	block  chan struct{}
	seen   chan SummaryRequest
}

func (f *fakeSummarizer) Summarize(ctx context.Context, req SummaryRequest) (*SummaryResult, error) {
	f.calls.Add(1)
	if f.seen != nil {
		f.seen <- req
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.result
	return &copied, nil
}

// reviewedEnv is an officer whose two reviewers have completed their work.
func reviewedEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	env.assign(t, 2, 3)
	env.completeSelf(t, true)
	env.completeReviewer(t, 2, "Strong leadership during the audit", 4)
	env.completeReviewer(t, 3, "Communicates clearly with the team", 5)
	return env
}

func TestGenerateSummaryStoresResult(t *testing.T) {
	env := reviewedEnv(t)
	fake := &fakeSummarizer{
		result: &SummaryResult{
			ExecutiveSummary: "Officer 1 is a dependable leader.",
			Themes:           []string{"Leadership", "Communication"},
			Sentiment:        " Positive ",
		},
		seen: make(chan SummaryRequest, 1),
	}
	svc := NewSummaryService(env.db, fake, env.stack.Recorder, time.Second)
	obs := newRecordingObserver()
	svc.SetObserver(obs)

	res, err := svc.Generate(context.Background(), testPeriod, testOfficer, testAdmin)
	require.NoError(t, err)
	assert.False(t, res.IsFallback)
	assert.Equal(t, "positive", res.Sentiment)

	req := <-fake.seen
	assert.Equal(t, "Officer 1", req.OfficerName)
	assert.Equal(t, "Period 5", req.PeriodName)
	assert.ElementsMatch(t, []string{"Strong leadership during the audit", "Communicates clearly with the team"}, req.Feedback)
	require.NotNil(t, req.AverageScore)
	assert.InDelta(t, 4.5, *req.AverageScore, 0.001)

	status, err := svc.Status(context.Background(), testPeriod, testOfficer)
	require.NoError(t, err)
	assert.Equal(t, models.SummaryStatusCompleted, status.Status)
	assert.Equal(t, 100, status.Progress)
	assert.False(t, status.IsFallback)
	assert.Nil(t, status.ErrorMessage)
	require.NotNil(t, status.SummaryText)
	assert.Equal(t, "Officer 1 is a dependable leader.", *status.SummaryText)
	var themes []string
	require.NoError(t, json.Unmarshal(status.Themes, &themes))
	assert.Equal(t, []string{"Leadership", "Communication"}, themes)

	assert.EqualValues(t, 1, countEvents(t, env.db, models.EventAIReportGenerationStarted))
	assert.EqualValues(t, 1, countEvents(t, env.db, models.EventAIReportGenerated))
	assert.Zero(t, countEvents(t, env.db, models.EventAIReportFailed))
	assert.Equal(t, []bool{false}, obs.summaries)
}

func TestGenerateSummaryFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		fake   *fakeSummarizer
		reason string
	}{
		{"summarizer error", &fakeSummarizer{err: errors.New("upstream 503")}, "upstream 503"},
		{"no themes", &fakeSummarizer{result: &SummaryResult{ExecutiveSummary: "ok", Sentiment: "neutral"}}, "themes"},
		{"bad sentiment", &fakeSummarizer{result: &SummaryResult{ExecutiveSummary: "ok", Themes: []string{"x"}, Sentiment: "ecstatic"}}, "sentiment"},
		{"timeout", &fakeSummarizer{block: make(chan struct{})}, "deadline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := reviewedEnv(t)
			svc := NewSummaryService(env.db, tt.fake, env.stack.Recorder, 50*time.Millisecond)

			res, err := svc.Generate(context.Background(), testPeriod, testOfficer, testAdmin)
			require.NoError(t, err)
			assert.True(t, res.IsFallback)
			assert.Equal(t, "neutral", res.Sentiment)
			assert.Equal(t, fallbackThemes, res.Themes)
			assert.Equal(t, "Officer 1 demonstrates excellent performance with consistent results across all evaluation areas.", res.ExecutiveSummary)

			status, err := svc.Status(context.Background(), testPeriod, testOfficer)
			require.NoError(t, err)
			assert.Equal(t, models.SummaryStatusCompleted, status.Status)
			assert.True(t, status.IsFallback)
			require.NotNil(t, status.ErrorMessage)
			assert.Contains(t, *status.ErrorMessage, tt.reason)
			assert.EqualValues(t, 1, countEvents(t, env.db, models.EventAIReportFailed))
		})
	}
}

func TestGenerateSummaryWithoutFeedback(t *testing.T) {
	env := newTestEnv(t)
	env.assign(t, 2)

	res, err := env.stack.Summaries.Generate(context.Background(), testPeriod, testOfficer, testAdmin)
	require.NoError(t, err)
	assert.True(t, res.IsFallback)
	assert.Equal(t, "Officer 1 received feedback from 0 review responses during Period 5. An automated summary is not available.", res.ExecutiveSummary)
}

func TestGenerateSummaryUnknownReferences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.stack.Summaries.Generate(ctx, 99, testOfficer, testAdmin)
	assert.ErrorIs(t, err, ErrPeriodNotFound)
	_, err = env.stack.Summaries.Generate(ctx, testPeriod, 77, testAdmin)
	assert.ErrorIs(t, err, ErrOfficerNotFound)
	_, err = env.stack.Summaries.Status(ctx, testPeriod, testOfficer)
	assert.ErrorIs(t, err, ErrSummaryNotFound)
}

func TestGenerateSummaryRegeneratesInPlace(t *testing.T) {
	env := reviewedEnv(t)
	ctx := context.Background()

	_, err := env.stack.Summaries.Generate(ctx, testPeriod, testOfficer, testAdmin)
	require.NoError(t, err)
	_, err = env.stack.Summaries.Generate(ctx, testPeriod, testOfficer, testAdmin)
	require.NoError(t, err)

	var rows int64
	require.NoError(t, env.db.Model(&models.AISummaryStatus{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestConcurrentGenerateSharesOneCall(t *testing.T) {
	env := reviewedEnv(t)
	fake := &fakeSummarizer{
		result: &SummaryResult{ExecutiveSummary: "Shared.", Themes: []string{"Delivery"}, Sentiment: "mixed"},
		block:  make(chan struct{}),
		seen:   make(chan SummaryRequest, 4),
	}
	svc := NewSummaryService(env.db, fake, env.stack.Recorder, 5*time.Second)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*SummaryResult, 3)
	start := func(i int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Generate(ctx, testPeriod, testOfficer, testAdmin)
			assert.NoError(t, err)
			results[i] = res
		}()
	}

	start(0)
	<-fake.seen
	start(1)
	start(2)
	time.Sleep(50 * time.Millisecond)
	close(fake.block)
	wg.Wait()

	assert.EqualValues(t, 1, fake.calls.Load())
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, "Shared.", res.ExecutiveSummary)
	}
}

func TestFallbackSummaryLabels(t *testing.T) {
	score := func(v float64) *float64 { return &v }
	tests := []struct {
		avg  float64
		want string
	}{
		{4.2, "excellent"},
		{3.0, "good"},
		{2.5, "satisfactory"},
		{1.0, "needs improvement"},
	}
	for _, tt := range tests {
		res := fallbackSummary(SummaryRequest{OfficerName: "Kim", AverageScore: score(tt.avg)})
		assert.Contains(t, res.ExecutiveSummary, "Kim demonstrates "+tt.want+" performance")
		assert.True(t, res.IsFallback)
	}
}

func TestValidateSummaryThemeLimits(t *testing.T) {
	tooMany := make([]string, 11)
	for i := range tooMany {
		tooMany[i] = "theme"
	}
	assert.ErrorIs(t, validateSummary(&SummaryResult{ExecutiveSummary: "x", Themes: tooMany, Sentiment: "neutral"}), ErrSummaryInvalidOutput)
	assert.ErrorIs(t, validateSummary(&SummaryResult{ExecutiveSummary: "x", Themes: []string{" "}, Sentiment: "neutral"}), ErrSummaryInvalidOutput)
	assert.ErrorIs(t, validateSummary(&SummaryResult{Themes: []string{"a"}, Sentiment: "neutral"}), ErrSummaryInvalidOutput)
	assert.ErrorIs(t, validateSummary(nil), ErrSummaryInvalidOutput)
	assert.NoError(t, validateSummary(&SummaryResult{ExecutiveSummary: "x", Themes: []string{"a"}, Sentiment: "MIXED"}))
}
