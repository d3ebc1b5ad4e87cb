package generation_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"quizbooth/internal/logging"
	"quizbooth/internal/services"
	"quizbooth/internal/services/generation"
	"quizbooth/internal/testsupport"
)

func newTestClient(t *testing.T, serverURL string, opts ...generation.Option) *generation.Client {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(serverURL))
	opts = append(opts, generation.WithSleeper(func(time.Duration) {}))
	return generation.NewClient(cfg, logging.NewNop(), opts...)
}

func TestSubmitAsyncContract(t *testing.T) {
	var gotCharacter, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("photo")
		if err != nil {
			t.Fatalf("photo field: %v", err)
		}
		file.Close()
		if header.Filename != "photo.jpg" {
			t.Errorf("unexpected filename %s", header.Filename)
		}
		gotCharacter = r.FormValue("character")
		gotRequestID = r.FormValue("client_request_id")
		json.NewEncoder(w).Encode(map[string]string{"result_id": "res-42"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	submission, err := client.Submit(t.Context(), generation.SubmitRequest{
		Photo:     []byte("jpeg-bytes"),
		Character: "nova",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submission.ResultID != "res-42" {
		t.Errorf("unexpected result id %q", submission.ResultID)
	}
	if submission.Immediate != nil {
		t.Errorf("async response should not carry an immediate result")
	}
	if gotCharacter != "nova" {
		t.Errorf("character field not sent, got %q", gotCharacter)
	}
	if _, err := uuid.Parse(gotRequestID); err != nil {
		t.Errorf("client_request_id should be a generated UUID, got %q: %v", gotRequestID, err)
	}
	if submission.ClientRequestID != gotRequestID {
		t.Errorf("submission should echo the request id")
	}
}

func TestSubmitSynchronousContract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"image_url": "https://cdn.example.com/done.png"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	submission, err := client.Submit(t.Context(), generation.SubmitRequest{Photo: []byte("jpeg")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submission.ResultID != "" {
		t.Errorf("synchronous response should not carry a job id")
	}
	if submission.Immediate == nil || submission.Immediate.Status != generation.StatusReady {
		t.Fatalf("expected immediate ready result, got %+v", submission.Immediate)
	}
	if submission.Immediate.ImageURL != "https://cdn.example.com/done.png" {
		t.Errorf("unexpected image url %q", submission.Immediate.ImageURL)
	}
}

func TestSubmitKeepsProvidedRequestID(t *testing.T) {
	var gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(32 << 20)
		gotRequestID = r.FormValue("client_request_id")
		json.NewEncoder(w).Encode(map[string]string{"result_id": "res-1"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	provided := uuid.NewString()
	if _, err := client.Submit(t.Context(), generation.SubmitRequest{
		Photo:           []byte("jpeg"),
		ClientRequestID: provided,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if gotRequestID != provided {
		t.Errorf("expected %q, got %q", provided, gotRequestID)
	}
}

func TestSubmitErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		body    string
		marker  error
	}{
		{"payload too large", http.StatusRequestEntityTooLarge, nil, `{"detail":"image too large"}`, services.ErrPayloadTooLarge},
		{"rate limited", http.StatusTooManyRequests, map[string]string{"Retry-After": "30"}, `{"detail":"slow down"}`, services.ErrRateLimited},
		{"blocked", http.StatusForbidden, nil, `{"detail":"session expired"}`, services.ErrBlocked},
		{"server failure", http.StatusInternalServerError, nil, "boom", services.ErrServerFailure},
		{"other non-2xx", http.StatusBadRequest, nil, `{"detail":"missing photo"}`, services.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for key, value := range tt.headers {
					w.Header().Set(key, value)
				}
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.Submit(t.Context(), generation.SubmitRequest{Photo: []byte("jpeg")})
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
		})
	}
}

func TestSubmitSurfacesRetryGuidance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"detail":"busy","retry_after_seconds":45}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Submit(t.Context(), generation.SubmitRequest{Photo: []byte("jpeg")})

	var statusErr *services.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected status error, got %v", err)
	}
	if statusErr.RetryAfter != 45 {
		t.Errorf("expected retry guidance 45, got %d", statusErr.RetryAfter)
	}
	if statusErr.Detail != "busy" {
		t.Errorf("expected server detail, got %q", statusErr.Detail)
	}
}

func TestPollUntilDoneHonorsRetryAfter(t *testing.T) {
	responses := []string{
		`{"status":"pending","retry_after_seconds":5}`,
		`{"status":"processing","detail":"compositing"}`,
		`{"status":"ready","image_url":"https://cdn.example.com/res-7.png","share_url":"https://example.com/s/res-7"}`,
	}
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/result/res-7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, responses[requests])
		requests++
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(server.URL))

	var sleeps []time.Duration
	client := generation.NewClient(cfg, logging.NewNop(),
		generation.WithSleeper(func(d time.Duration) { sleeps = append(sleeps, d) }))

	var progressed []generation.Status
	result, err := client.PollUntilDone(t.Context(), "res-7", func(r *generation.Result) {
		progressed = append(progressed, r.Status)
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if requests != 3 {
		t.Errorf("expected exactly 3 requests, got %d", requests)
	}
	if result.ImageURL != "https://cdn.example.com/res-7.png" {
		t.Errorf("unexpected ready payload %+v", result)
	}
	if len(sleeps) != 2 {
		t.Fatalf("expected 2 waits, got %d", len(sleeps))
	}
	if sleeps[0] != 5*time.Second {
		t.Errorf("first wait should honor retry_after_seconds, got %v", sleeps[0])
	}
	if sleeps[1] != 2*time.Second {
		t.Errorf("second wait should use the default interval, got %v", sleeps[1])
	}
	if len(progressed) != 2 || progressed[0] != generation.StatusPending || progressed[1] != generation.StatusProcessing {
		t.Errorf("unexpected progress sequence %v", progressed)
	}
}

func TestPollClampsSuggestedIntervalToFloor(t *testing.T) {
	responses := []string{
		`{"status":"pending","retry_after_seconds":1}`,
		`{"status":"ready","image_url":"u"}`,
	}
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, responses[requests])
		requests++
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(server.URL))
	cfg.Service.PollFloorSeconds = 3

	var sleeps []time.Duration
	client := generation.NewClient(cfg, logging.NewNop(),
		generation.WithSleeper(func(d time.Duration) { sleeps = append(sleeps, d) }))

	if _, err := client.PollUntilDone(t.Context(), "res-1", nil); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(sleeps) != 1 || sleeps[0] != 3*time.Second {
		t.Errorf("suggested interval below floor should be clamped, got %v", sleeps)
	}
}

func TestPollTerminalFailures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		marker error
	}{
		{"failed", `{"status":"failed","error_message":"no face detected"}`, services.ErrGenerationFailed},
		{"expired", `{"status":"expired"}`, services.ErrExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.PollUntilDone(t.Context(), "res-x", nil)
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
		})
	}
}

func TestPollFailedSurfacesServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"failed","error_message":"no face detected"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.PollUntilDone(t.Context(), "res-x", nil)
	if err == nil || !errors.Is(err, services.ErrGenerationFailed) {
		t.Fatalf("expected generation failure, got %v", err)
	}
	if got := err.Error(); !strings.Contains(got, "no face detected") {
		t.Errorf("server message should be preserved, got %q", got)
	}
}

func TestSubmitRejectsEmptyPhoto(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0")
	if _, err := client.Submit(t.Context(), generation.SubmitRequest{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
