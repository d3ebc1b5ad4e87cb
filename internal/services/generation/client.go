package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"quizbooth/internal/config"
	"quizbooth/internal/logging"
	"quizbooth/internal/services"
)

const (
	defaultHTTPTimeout  = 30 * time.Second
	defaultPollInterval = 2 * time.Second
	defaultPollFloor    = 1 * time.Second
	defaultPollTimeout  = 10 * time.Minute
)

// Status is the lifecycle state reported by the result endpoint.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// Terminal reports whether no further polling can change the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusReady, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

// SubmitRequest carries one normalized photo to the generation endpoint.
type SubmitRequest struct {
	Photo     []byte
	Filename  string
	Character string
	Prompt    string
	// ClientRequestID is the idempotency token. A fresh UUID is generated
	// when empty.
	ClientRequestID string
}

// Submission is the accepted response. Exactly one of ResultID or Immediate
// is set: the asynchronous contract returns a job id to poll, the older
// synchronous contract returns the finished image directly.
type Submission struct {
	ResultID        string
	ClientRequestID string
	Immediate       *Result
}

// Result is the payload of the result endpoint.
type Result struct {
	Status            Status `json:"status"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
	ImageURL          string `json:"image_url"`
	DownloadURL       string `json:"download_url"`
	ShareURL          string `json:"share_url"`
	ErrorMessage      string `json:"error_message"`
	// Detail carries non-terminal progress text when the server sends it.
	Detail string `json:"detail"`
}

// HTTPDoer describes the HTTP client used by the generation service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the generation backend: photo submission plus bounded
// result polling.
type Client struct {
	baseURL string
	client  HTTPDoer
	logger  *slog.Logger

	pollInterval time.Duration
	pollFloor    time.Duration
	pollTimeout  time.Duration
	sleeper      func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithSleeper overrides how poll waits are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a generation client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.Service.RequestTimeout > 0 {
		timeout = time.Duration(cfg.Service.RequestTimeout) * time.Second
	}
	client := &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.Service.BaseURL), "/"),
		client:       &http.Client{Timeout: timeout},
		logger:       logging.NewComponentLogger(logger, "generation"),
		pollInterval: defaultPollInterval,
		pollFloor:    defaultPollFloor,
		pollTimeout:  defaultPollTimeout,
	}
	if cfg.Service.PollInterval > 0 {
		client.pollInterval = time.Duration(cfg.Service.PollInterval) * time.Second
	}
	if cfg.Service.PollFloorSeconds > 0 {
		client.pollFloor = time.Duration(cfg.Service.PollFloorSeconds) * time.Second
	}
	if cfg.Service.PollTimeout > 0 {
		client.pollTimeout = time.Duration(cfg.Service.PollTimeout) * time.Second
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Submit uploads a photo and returns either a job id to poll or an
// immediate result.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	if c.baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "generation", "submit",
			"no generation endpoint configured", nil)
	}
	if len(req.Photo) == 0 {
		return nil, services.Wrap(services.ErrValidation, "generation", "submit",
			"no photo to submit", nil)
	}
	filename := req.Filename
	if filename == "" {
		filename = "photo.jpg"
	}
	requestID := strings.TrimSpace(req.ClientRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("photo", filename)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "generation", "submit", "build form", err)
	}
	if _, err := part.Write(req.Photo); err != nil {
		return nil, services.Wrap(services.ErrTransient, "generation", "submit", "write photo", err)
	}
	if req.Character != "" {
		if err := writer.WriteField("character", req.Character); err != nil {
			return nil, services.Wrap(services.ErrTransient, "generation", "submit", "write character", err)
		}
	}
	if req.Prompt != "" {
		if err := writer.WriteField("prompt", req.Prompt); err != nil {
			return nil, services.Wrap(services.ErrTransient, "generation", "submit", "write prompt", err)
		}
	}
	if err := writer.WriteField("client_request_id", requestID); err != nil {
		return nil, services.Wrap(services.ErrTransient, "generation", "submit", "write request id", err)
	}
	if err := writer.Close(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "generation", "submit", "finish form", err)
	}

	endpoint := c.baseURL + "/generate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "generation", "submit", "build request", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "generation", "submit", "send request", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "generation", "submit", "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyResponse(resp, payload)
	}

	var decoded struct {
		ResultID string `json:"result_id"`
		ImageURL string `json:"image_url"`
		Result
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, services.Wrap(services.ErrTransient, "generation", "submit", "decode response", err)
	}

	submission := &Submission{ClientRequestID: requestID}
	switch {
	case decoded.ResultID != "":
		submission.ResultID = decoded.ResultID
	case decoded.ImageURL != "":
		// Synchronous contract: the server finished inline. Normalize it to
		// a terminal ready result with no job id to persist.
		submission.Immediate = &Result{Status: StatusReady, ImageURL: decoded.ImageURL}
	default:
		return nil, services.Wrap(services.ErrTransient, "generation", "submit",
			"response carried neither result_id nor image_url", nil)
	}
	logging.WithContext(ctx, c.logger).Info("photo submitted",
		"bytes", len(req.Photo),
		"character", req.Character,
		"result_id", submission.ResultID,
		"immediate", submission.Immediate != nil,
		"duration", time.Since(start).Round(time.Millisecond).String())
	return submission, nil
}

// Result fetches the current status of a generation job.
func (c *Client) Result(ctx context.Context, resultID string) (*Result, error) {
	if strings.TrimSpace(resultID) == "" {
		return nil, services.Wrap(services.ErrValidation, "generation", "result", "empty result id", nil)
	}
	endpoint := c.baseURL + "/result/" + url.PathEscape(resultID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "generation", "result", "build request", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "generation", "result", "send request", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "generation", "result", "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyResponse(resp, payload)
	}

	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, services.Wrap(services.ErrTransient, "generation", "result", "decode response", err)
	}
	return &result, nil
}

// PollUntilDone polls the job until it reaches a terminal status, honoring
// the server-suggested interval clamped to the configured floor. Non-terminal
// results are passed to progress when set. A failed or expired job is
// returned as an error so callers surface the distinct messages.
func (c *Client) PollUntilDone(ctx context.Context, resultID string, progress func(*Result)) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	for {
		result, err := c.Result(ctx, resultID)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, services.Wrap(services.ErrTransient, "generation", "poll",
					"gave up waiting for result "+resultID, err)
			}
			return nil, err
		}

		switch result.Status {
		case StatusReady:
			logging.WithContext(ctx, c.logger).Info("result ready", "result_id", resultID)
			return result, nil
		case StatusFailed:
			message := strings.TrimSpace(result.ErrorMessage)
			if message == "" {
				message = "generation failed"
			}
			return nil, services.Wrap(services.ErrGenerationFailed, "generation", "poll", message, nil)
		case StatusExpired:
			return nil, services.Wrap(services.ErrExpired, "generation", "poll",
				"result "+resultID+" expired", nil)
		}

		if progress != nil {
			progress(result)
		}
		if err := c.sleep(ctx, c.nextDelay(result)); err != nil {
			return nil, services.Wrap(services.ErrTransient, "generation", "poll", "wait interrupted", err)
		}
	}
}

// nextDelay prefers the server's suggestion, clamped to the floor.
func (c *Client) nextDelay(result *Result) time.Duration {
	delay := c.pollInterval
	if result != nil && result.RetryAfterSeconds > 0 {
		delay = time.Duration(result.RetryAfterSeconds) * time.Second
	}
	if delay < c.pollFloor {
		delay = c.pollFloor
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classifyResponse maps a non-2xx response onto the sentinel taxonomy,
// surfacing the server-provided detail and retry guidance when present.
func classifyResponse(resp *http.Response, payload []byte) error {
	detail := extractDetail(payload)
	retryAfter := 0
	if value := strings.TrimSpace(resp.Header.Get("Retry-After")); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			retryAfter = seconds
		}
	}
	if retryAfter == 0 {
		var hint struct {
			RetryAfterSeconds int `json:"retry_after_seconds"`
		}
		if json.Unmarshal(payload, &hint) == nil && hint.RetryAfterSeconds > 0 {
			retryAfter = hint.RetryAfterSeconds
		}
	}
	return services.NewStatusError(resp.StatusCode, detail, retryAfter)
}

// extractDetail pulls the {"detail": ...} body FastAPI-style services send,
// falling back to the raw text.
func extractDetail(payload []byte) string {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return ""
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && strings.TrimSpace(body.Detail) != "" {
		return strings.TrimSpace(body.Detail)
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return ""
	}
	const limit = 200
	if len(trimmed) > limit {
		return trimmed[:limit]
	}
	return trimmed
}
