package falclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/colorify-app/backend/internal/config"
)

var (
	// ErrSubmission covers any non-2xx answer to the job submission itself.
	ErrSubmission = errors.New("generation job submission failed")
	// ErrJobFailed means the provider accepted the job and later reported FAILED.
	ErrJobFailed = errors.New("image generation failed")
	// ErrJobTimeout means the job never reached a terminal state within the
	// poll budget. The provider-side job keeps running; we stop watching.
	ErrJobTimeout = errors.New("image generation timed out")
)

// Client talks to the fal.ai queue API: submit a job, poll its status URL,
// fetch the result URL once completed.
type Client struct {
	apiKey       string
	queueURL     string
	httpClient   *http.Client
	clock        clock.Clock
	log          *slog.Logger
	pollInterval time.Duration
	maxAttempts  int
}

type GenerateRequest struct {
	Prompt        string  `json:"prompt"`
	ImageURL      string  `json:"image_url"`
	GuidanceScale float64 `json:"guidance_scale"`
	NumImages     int     `json:"num_images"`
	OutputFormat  string  `json:"output_format"`
	Width         int     `json:"width,omitempty"`
	Height        int     `json:"height,omitempty"`
}

type Image struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

type Result struct {
	Images []Image `json:"images"`
}

// submitResponse is either an inline result or a queue handle.
type submitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
	Result
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func NewClient(cfg *config.Config, log *slog.Logger) *Client {
	timeout := cfg.FalRequestTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	interval := cfg.GenerationPollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	maxAttempts := cfg.GenerationMaxPolls
	if maxAttempts <= 0 {
		maxAttempts = 60
	}

	return &Client{
		apiKey:       cfg.FalAPIKey,
		queueURL:     strings.TrimRight(cfg.FalQueueURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		clock:        clock.New(),
		log:          log,
		pollInterval: interval,
		maxAttempts:  maxAttempts,
	}
}

// Generate submits one job and blocks until it produces a result, fails, or
// exhausts the poll budget. There is no way to cancel the provider-side job
// once submitted; ctx only stops the watching.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	submit, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}

	// A synchronous answer carries the images inline; no polling needed.
	if submit.RequestID == "" || submit.StatusURL == "" || submit.ResponseURL == "" {
		return &submit.Result, nil
	}

	if c.log != nil {
		c.log.Info("generation job queued", "request_id", submit.RequestID)
	}

	return c.pollToCompletion(ctx, submit)
}

func (c *Client) submit(ctx context.Context, genReq GenerateRequest) (*submitResponse, error) {
	body, err := json.Marshal(genReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queueURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read submit response: %w", err)
	}

	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("generation submit rejected", "status", resp.StatusCode, "body", truncateBody(rawBody))
		}
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrSubmission, resp.StatusCode, truncateBody(rawBody))
	}

	var submit submitResponse
	if err := json.Unmarshal(rawBody, &submit); err != nil {
		return nil, fmt.Errorf("decode submit response: %w (body=%s)", err, truncateBody(rawBody))
	}

	return &submit, nil
}

// pollToCompletion checks the status URL at a fixed interval up to
// maxAttempts times. Anything other than COMPLETED or FAILED keeps polling.
func (c *Client) pollToCompletion(ctx context.Context, submit *submitResponse) (*Result, error) {
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(c.pollInterval):
		}

		status, err := c.jobStatus(ctx, submit.StatusURL)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "COMPLETED":
			if c.log != nil {
				c.log.Info("generation job completed", "request_id", submit.RequestID, "polls", attempt+1)
			}
			return c.jobResult(ctx, submit.ResponseURL)

		case "FAILED":
			detail := status.Error
			if detail == "" {
				detail = "unknown error"
			}
			if c.log != nil {
				c.log.Error("generation job failed", "request_id", submit.RequestID, "detail", detail)
			}
			return nil, fmt.Errorf("%w: %s", ErrJobFailed, detail)

		default:
			if c.log != nil && attempt%10 == 0 {
				c.log.Info("generation job in progress", "request_id", submit.RequestID, "status", status.Status, "attempt", attempt+1)
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrJobTimeout, c.maxAttempts)
}

func (c *Client) jobStatus(ctx context.Context, statusURL string) (*statusResponse, error) {
	rawBody, err := c.get(ctx, statusURL)
	if err != nil {
		return nil, fmt.Errorf("check job status: %w", err)
	}

	var status statusResponse
	if err := json.Unmarshal(rawBody, &status); err != nil {
		return nil, fmt.Errorf("decode status response: %w (body=%s)", err, truncateBody(rawBody))
	}
	return &status, nil
}

func (c *Client) jobResult(ctx context.Context, responseURL string) (*Result, error) {
	rawBody, err := c.get(ctx, responseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch job result: %w", err)
	}

	var result Result
	if err := json.Unmarshal(rawBody, &result); err != nil {
		return nil, fmt.Errorf("decode result response: %w (body=%s)", err, truncateBody(rawBody))
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider error: status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}

	return rawBody, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
