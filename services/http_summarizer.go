package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"officer-review-api/config"
)

// HTTPSummarizer calls an OpenAI-compatible chat completions endpoint and
// expects a JSON object back.
type HTTPSummarizer struct {
	cfg  config.SummaryConfig
	http *http.Client
}

// NewHTTPSummarizer returns nil when no endpoint is configured.
func NewHTTPSummarizer(cfg config.SummaryConfig) *HTTPSummarizer {
	if cfg.URL == "" {
		return nil
	}
	return &HTTPSummarizer{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	MaxTokens      int               `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const summarySystemPrompt = `You summarise performance review feedback for an administrator.
Reply with a JSON object containing exactly these fields:
"executive_summary": 2-3 sentences,
"major_themes": up to five short theme names,
"sentiment": one of "positive", "neutral", "negative", "mixed".`

// Summarize sends the feedback and decodes the model's JSON answer.
func (c *HTTPSummarizer) Summarize(ctx context.Context, req SummaryRequest) (*SummaryResult, error) {
	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: buildSummaryPrompt(req)},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		MaxTokens:      1000,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("summarizer returned status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("summarizer returned no choices")
	}

	var result SummaryResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSummaryInvalidOutput, err)
	}
	return &result, nil
}

func buildSummaryPrompt(req SummaryRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Officer: %s\nReview period: %s\n", req.OfficerName, req.PeriodName)
	if req.AverageScore != nil {
		fmt.Fprintf(&b, "Average numeric rating: %.2f/5.0\n", *req.AverageScore)
	}
	fmt.Fprintf(&b, "\nReviewer feedback (%d items):\n", len(req.Feedback))
	for _, item := range req.Feedback {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return b.String()
}
