package analytics_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quizbooth/internal/analytics"
	"quizbooth/internal/config"
	"quizbooth/internal/logging"
)

func TestEventDelivery(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
	}))
	defer server.Close()

	sink := analytics.NewHTTPService(server.URL, server.Client(), logging.NewNop())
	sink.GenerationSubmitted(t.Context(), "res-3", "nova")

	if got["event"] != "generation_submitted" {
		t.Errorf("unexpected event %v", got["event"])
	}
	if got["result_id"] != "res-3" || got["persona"] != "nova" {
		t.Errorf("unexpected fields %v", got)
	}
	if _, err := time.Parse(time.RFC3339, got["ts"].(string)); err != nil {
		t.Errorf("timestamp not RFC3339: %v", got["ts"])
	}
}

func TestFailuresAreSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := analytics.NewHTTPService(server.URL, server.Client(), logging.NewNop())
	// None of these return errors; the call simply must not panic or block.
	sink.StageEntered(t.Context(), "welcome")
	sink.GenerationFailed(t.Context(), "res-1", "no face detected")

	unreachable := analytics.NewHTTPService("http://127.0.0.1:0", &http.Client{Timeout: time.Second}, logging.NewNop())
	unreachable.PhotoCaptured(t.Context(), "camera", 1024)
}

func TestNoopWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Service.AnalyticsURL = ""
	sink := analytics.NewService(&cfg, logging.NewNop())
	sink.Event(t.Context(), "anything", nil)
}
