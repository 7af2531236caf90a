package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"speechscope/internal/logger"
)

// chatMessage is one turn of the model conversation
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the Ollama-compatible chat payload. keep_alive 0 asks the
// service to unload the model right after responding, keeping the report step
// out of the pipeline's device memory budget.
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Format    string        `json:"format"`
	Stream    bool          `json:"stream"`
	KeepAlive int           `json:"keep_alive"`
}

// chatResponse is the subset of the service reply we consume
type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Client generates coaching reports through a local Ollama-compatible
// service. Generation failures degrade to the stub report, never to an error.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a report client for the given service URL and model
func NewClient(baseURL, model string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.OrNop(log),
	}
}

// Generate produces a report for the transcript and emotion samples. It
// always returns a usable report: on any internal failure the fixed stub is
// returned and the cause is logged.
func (c *Client) Generate(ctx context.Context, transcript string, samples []EmotionSample) *Report {
	rep, err := c.generate(ctx, transcript, samples)
	if err != nil {
		c.logger.Warn("report generation failed, returning stub", zap.Error(err))
		return StubReport()
	}
	return rep
}

func (c *Client) generate(ctx context.Context, transcript string, samples []EmotionSample) (*Report, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(transcript, samples)},
		},
		Format: "json",
		Stream: false,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("chat service returned %s: %s", resp.Status, string(body))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	var rep Report
	if err := json.Unmarshal([]byte(chat.Message.Content), &rep); err != nil {
		return nil, fmt.Errorf("model returned invalid report JSON: %w", err)
	}

	if rep.OverallScore < 0 || rep.OverallScore > 100 {
		return nil, fmt.Errorf("model returned out-of-range score %d", rep.OverallScore)
	}

	return &rep, nil
}
