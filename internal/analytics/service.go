package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"quizbooth/internal/config"
	"quizbooth/internal/logging"
)

const userAgent = "Quizbooth-Go/0.1.0"

// Service is the best-effort event sink. Every method swallows failures:
// analytics must never affect wizard flow.
type Service interface {
	StageEntered(ctx context.Context, stage string)
	PhotoCaptured(ctx context.Context, source string, byteCount int)
	GenerationSubmitted(ctx context.Context, resultID, personaID string)
	GenerationCompleted(ctx context.Context, resultID string, elapsed time.Duration)
	GenerationFailed(ctx context.Context, resultID, reason string)
	Event(ctx context.Context, name string, fields map[string]any)
}

// NewService builds an event sink backed by the analytics endpoint when
// configured. With no endpoint, a noop implementation is returned.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	endpoint := strings.TrimSpace(cfg.Service.AnalyticsURL)
	if endpoint == "" {
		return noopService{}
	}
	return &httpService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logging.NewComponentLogger(logger, "analytics"),
	}
}

// Noop returns a sink that drops every event.
func Noop() Service {
	return noopService{}
}

// NewHTTPService constructs a sink against an explicit endpoint.
func NewHTTPService(endpoint string, client *http.Client, logger *slog.Logger) Service {
	return &httpService{
		endpoint: strings.TrimSpace(endpoint),
		client:   client,
		logger:   logging.NewComponentLogger(logger, "analytics"),
	}
}

type httpService struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func (s *httpService) StageEntered(ctx context.Context, stage string) {
	s.Event(ctx, "stage_entered", map[string]any{"stage": stage})
}

func (s *httpService) PhotoCaptured(ctx context.Context, source string, byteCount int) {
	s.Event(ctx, "photo_captured", map[string]any{"source": source, "bytes": byteCount})
}

func (s *httpService) GenerationSubmitted(ctx context.Context, resultID, personaID string) {
	s.Event(ctx, "generation_submitted", map[string]any{"result_id": resultID, "persona": personaID})
}

func (s *httpService) GenerationCompleted(ctx context.Context, resultID string, elapsed time.Duration) {
	s.Event(ctx, "generation_completed", map[string]any{
		"result_id":  resultID,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}

func (s *httpService) GenerationFailed(ctx context.Context, resultID, reason string) {
	s.Event(ctx, "generation_failed", map[string]any{"result_id": resultID, "reason": reason})
}

func (s *httpService) Event(ctx context.Context, name string, fields map[string]any) {
	if s == nil || s.client == nil || s.endpoint == "" {
		return
	}
	payload := make(map[string]any, len(fields)+2)
	for key, value := range fields {
		payload[key] = value
	}
	payload["event"] = name
	payload["ts"] = time.Now().UTC().Format(time.RFC3339)

	encoded, err := json.Marshal(payload)
	if err != nil {
		s.logger.Debug("drop event", "event", name, logging.Error(err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(encoded))
	if err != nil {
		s.logger.Debug("drop event", "event", name, logging.Error(err))
		return
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("drop event", "event", name, logging.Error(err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		s.logger.Debug("event rejected", "event", name, "status", resp.StatusCode)
	}
}

type noopService struct{}

func (noopService) StageEntered(context.Context, string)                       {}
func (noopService) PhotoCaptured(context.Context, string, int)                 {}
func (noopService) GenerationSubmitted(context.Context, string, string)        {}
func (noopService) GenerationCompleted(context.Context, string, time.Duration) {}
func (noopService) GenerationFailed(context.Context, string, string)           {}
func (noopService) Event(context.Context, string, map[string]any)              {}
