package wizard_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"quizbooth/internal/capture"
	"quizbooth/internal/logging"
	"quizbooth/internal/photo"
	"quizbooth/internal/quiz"
	"quizbooth/internal/services"
	"quizbooth/internal/services/composite"
	"quizbooth/internal/services/generation"
	"quizbooth/internal/services/survey"
	"quizbooth/internal/session"
	"quizbooth/internal/testsupport"
	"quizbooth/internal/wizard"
)

type renderRecord struct {
	Stage   wizard.Stage
	Payload wizard.Payload
}

type fakeRenderer struct {
	mu      sync.Mutex
	records []renderRecord
	notify  chan renderRecord
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{notify: make(chan renderRecord, 64)}
}

func (r *fakeRenderer) Render(stage wizard.Stage, payload *wizard.Payload) error {
	r.mu.Lock()
	record := renderRecord{Stage: stage, Payload: *payload}
	r.records = append(r.records, record)
	r.mu.Unlock()
	select {
	case r.notify <- record:
	default:
	}
	return nil
}

func (r *fakeRenderer) last() renderRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return renderRecord{}
	}
	return r.records[len(r.records)-1]
}

func (r *fakeRenderer) waitFor(t *testing.T, stage wizard.Stage, match func(renderRecord) bool) renderRecord {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case record := <-r.notify:
			if record.Stage == stage && (match == nil || match(record)) {
				return record
			}
		case <-deadline:
			t.Fatalf("timed out waiting for stage %s, last was %s", stage, r.last().Stage)
		}
	}
}

type fakeGenerator struct {
	mu         sync.Mutex
	submits    int
	polls      []string
	submission *generation.Submission
	submitErr  error
	result     *generation.Result
	pollErr    error
	gate       chan struct{}
}

func (g *fakeGenerator) Submit(ctx context.Context, req generation.SubmitRequest) (*generation.Submission, error) {
	g.mu.Lock()
	g.submits++
	g.mu.Unlock()
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	return g.submission, nil
}

func (g *fakeGenerator) PollUntilDone(ctx context.Context, resultID string, progress func(*generation.Result)) (*generation.Result, error) {
	g.mu.Lock()
	g.polls = append(g.polls, resultID)
	g.mu.Unlock()
	if g.gate != nil {
		<-g.gate
	}
	if g.pollErr != nil {
		return nil, g.pollErr
	}
	return g.result, nil
}

func (g *fakeGenerator) submitCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submits
}

func (g *fakeGenerator) polledIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.polls...)
}

type fakeDevice struct {
	frame   []byte
	openErr error
}

func (d *fakeDevice) Open(ctx context.Context) error           { return d.openErr }
func (d *fakeDevice) Grab(ctx context.Context) ([]byte, error) { return d.frame, nil }
func (d *fakeDevice) Release() error                           { return nil }

type fakeSurvey struct {
	workshops   []survey.Workshop
	attendee    *survey.Attendee
	registered  []int
	registerErr error
	mu          sync.Mutex
}

func (s *fakeSurvey) Enabled() bool { return true }

func (s *fakeSurvey) Workshops(ctx context.Context) ([]survey.Workshop, error) {
	return s.workshops, nil
}

func (s *fakeSurvey) Lookup(ctx context.Context, token string) (*survey.Attendee, error) {
	return s.attendee, nil
}

func (s *fakeSurvey) Register(ctx context.Context, attendeeID string, workshopID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = append(s.registered, workshopID)
	return s.registerErr
}

type fakeCompositor struct {
	image *composite.Image
	err   error
}

func (c *fakeCompositor) Enabled() bool { return true }

func (c *fakeCompositor) Render(ctx context.Context, req composite.Request) (*composite.Image, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.image, nil
}

func testPhotoBytes(t *testing.T) []byte {
	t.Helper()
	return testsupport.JPEG(t, 800, 600)
}

func testNormalizer() *photo.Normalizer {
	return photo.NewNormalizer(photo.Options{
		MaxBytes:      10 * 1024 * 1024,
		MaxEdge:       1536,
		MinEdge:       512,
		StartQuality:  92,
		QualityFloor:  40,
		QualityStep:   7,
		ShrinkDamping: 0.85,
	})
}

type harness struct {
	wizard    *wizard.Wizard
	renderer  *fakeRenderer
	generator *fakeGenerator
	store     *session.Store
	device    *fakeDevice
}

func newHarness(t *testing.T, mutate func(*wizard.Options)) *harness {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	renderer := newFakeRenderer()
	device := &fakeDevice{frame: testPhotoBytes(t)}
	generator := &fakeGenerator{
		submission: &generation.Submission{ResultID: "res-1", ClientRequestID: "req-1"},
		result:     &generation.Result{Status: generation.StatusReady, ImageURL: "https://cdn.example.com/res-1.png", DownloadURL: "https://cdn.example.com/res-1/download", ShareURL: "https://example.com/s/res-1"},
	}
	opts := wizard.Options{
		Renderer:   renderer,
		Capture:    capture.NewSession(device, logging.NewNop()),
		Normalizer: testNormalizer(),
		Generator:  generator,
		Store:      store,
		Logger:     logging.NewNop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	w, err := wizard.New(opts)
	if err != nil {
		t.Fatalf("new wizard: %v", err)
	}
	return &harness{wizard: w, renderer: renderer, generator: generator, store: store, device: device}
}

func (h *harness) dispatch(t *testing.T, ev wizard.Event) {
	t.Helper()
	if err := h.wizard.Dispatch(t.Context(), ev); err != nil {
		t.Fatalf("dispatch %T: %v", ev, err)
	}
}

func (h *harness) answerAllQuestions(t *testing.T) {
	t.Helper()
	for i := 0; i < quiz.QuestionCount(); i++ {
		h.dispatch(t, wizard.AnswerSelected{Value: 4})
		h.dispatch(t, wizard.Next{})
	}
}

func TestQuizFlowReachesPhotoCapture(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.wizard.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.wizard.Stage() != wizard.StageWelcome {
		t.Fatalf("expected welcome, got %s", h.wizard.Stage())
	}

	h.dispatch(t, wizard.Start{})
	if h.wizard.Stage() != wizard.StageQuestion {
		t.Fatalf("expected question, got %s", h.wizard.Stage())
	}

	h.answerAllQuestions(t)
	if h.wizard.Stage() != wizard.StagePhotoCapture {
		t.Fatalf("expected photo capture after final question, got %s", h.wizard.Stage())
	}
}

func TestNextGuardWithoutAnswer(t *testing.T) {
	h := newHarness(t, nil)
	h.wizard.Start(t.Context())
	h.dispatch(t, wizard.Start{})

	h.dispatch(t, wizard.Next{})
	if h.wizard.Stage() != wizard.StageQuestion {
		t.Fatalf("unanswered next should not advance, got %s", h.wizard.Stage())
	}
	record := h.renderer.last()
	if record.Payload.Message == "" {
		t.Error("expected guard message")
	}
	if record.Payload.CanAdvance {
		t.Error("next control should be disabled without a selection")
	}
}

func TestIllegalEventRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.wizard.Start(t.Context())

	err := h.wizard.Dispatch(t.Context(), wizard.Submit{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for submit on welcome, got %v", err)
	}
	if h.wizard.Stage() != wizard.StageWelcome {
		t.Errorf("illegal event must not change stage")
	}
}

func TestCameraFailureDegradesToUpload(t *testing.T) {
	h := newHarness(t, nil)
	h.device.openErr = services.Wrap(services.ErrConfiguration, "capture", "open", "no device", nil)
	h.wizard.Start(t.Context())
	h.dispatch(t, wizard.Start{})
	h.answerAllQuestions(t)

	h.dispatch(t, wizard.StartCamera{})
	if h.wizard.Stage() != wizard.StagePhotoCapture {
		t.Fatalf("camera failure must not leave the stage, got %s", h.wizard.Stage())
	}
	if h.renderer.last().Payload.Message == "" {
		t.Error("camera failure should surface a message")
	}

	h.dispatch(t, wizard.UploadPhoto{Data: testPhotoBytes(t)})
	if !h.renderer.last().Payload.HasStill {
		t.Error("upload path should still work after camera failure")
	}
}

func TestSubmitRunsPipelineToResults(t *testing.T) {
	h := newHarness(t, nil)
	h.wizard.Start(t.Context())
	h.dispatch(t, wizard.Start{})
	h.answerAllQuestions(t)
	h.dispatch(t, wizard.UploadPhoto{Data: testPhotoBytes(t)})
	h.dispatch(t, wizard.Submit{})

	record := h.renderer.waitFor(t, wizard.StageResults, nil)
	if record.Payload.ImageURL != "https://cdn.example.com/res-1.png" {
		t.Errorf("unexpected image url %q", record.Payload.ImageURL)
	}
	if record.Payload.DownloadURL != "https://cdn.example.com/res-1/download" {
		t.Errorf("unexpected download url %q", record.Payload.DownloadURL)
	}
	if record.Payload.Personas == nil {
		t.Fatal("results payload should carry personas")
	}
	expected, err := quiz.PersonaForScore(record.Payload.Score)
	if err != nil {
		t.Fatalf("persona for score: %v", err)
	}
	if record.Payload.Personas.Primary.ID != expected.ID {
		t.Errorf("primary persona should come from the score band")
	}
	if h.generator.submitCount() != 1 {
		t.Errorf("expected one submission, got %d", h.generator.submitCount())
	}

	// The pending slot is cleared once the job completed.
	pending, err := h.store.PendingJob(t.Context())
	if err != nil {
		t.Fatalf("pending job: %v", err)
	}
	if pending != nil {
		t.Errorf("pending job should be cleared after completion, got %+v", pending)
	}
}

func TestSubmitRequiresStill(t *testing.T) {
	h := newHarness(t, nil)
	h.wizard.Start(t.Context())
	h.dispatch(t, wizard.Start{})
	h.answerAllQuestions(t)

	h.dispatch(t, wizard.Submit{})
	if h.wizard.Stage() != wizard.StagePhotoCapture {
		t.Fatalf("submit without still must stay, got %s", h.wizard.Stage())
	}
	if h.generator.submitCount() != 0 {
		t.Error("nothing should be submitted without a still")
	}
}

func TestUnreadablePhotoClearsSelection(t *testing.T) {
	h := newHarness(t, nil)
	h.wizard.Start(t.Context())
	h.dispatch(t, wizard.Start{})
	h.answerAllQuestions(t)
	h.dispatch(t, wizard.UploadPhoto{Data: []byte("not an image at all")})
	h.dispatch(t, wizard.Submit{})

	if h.wizard.Stage() != wizard.StagePhotoCapture {
		t.Fatalf("expected photo capture, got %s", h.wizard.Stage())
	}
	record := h.renderer.last()
	if record.Payload.Message == "" {
		t.Error("expected normalization failure message")
	}
	if record.Payload.HasStill {
		t.Error("failed photo should be cleared so the guest starts over")
	}
}

func TestGenerationFailureReturnsToCapture(t *testing.T) {
	h := newHarness(t, nil)
	h.generator.pollErr = services.Wrap(services.ErrGenerationFailed, "generation", "poll", "no face detected", nil)
	h.wizard.Start(t.Context())
	h.dispatch(t, wizard.Start{})
	h.answerAllQuestions(t)
	h.dispatch(t, wizard.UploadPhoto{Data: testPhotoBytes(t)})
	h.dispatch(t, wizard.Submit{})

	record := h.renderer.waitFor(t, wizard.StagePhotoCapture, func(r renderRecord) bool {
		return r.Payload.Message != ""
	})
	if record.Payload.Message == "" {
		t.Error("terminal failure should surface a message")
	}

	pending, err := h.store.PendingJob(t.Context())
	if err != nil {
		t.Fatalf("pending job: %v", err)
	}
	if pending != nil {
		t.Errorf("terminal failure should clear the pending job, got %+v", pending)
	}
}

func TestStaleGenerationCallbackDiscarded(t *testing.T) {
	h := newHarness(t, nil)
	h.generator.gate = make(chan struct{})
	h.wizard.Start(t.Context())
	h.dispatch(t, wizard.Start{})
	h.answerAllQuestions(t)
	h.dispatch(t, wizard.UploadPhoto{Data: testPhotoBytes(t)})
	h.dispatch(t, wizard.Submit{})

	if h.wizard.Stage() != wizard.StageLoading {
		t.Fatalf("expected loading, got %s", h.wizard.Stage())
	}

	// The guest walks away; the booth resets while the poll is in flight.
	h.dispatch(t, wizard.Restart{})
	close(h.generator.gate)

	// Give the stale callback a chance to (wrongly) land.
	time.Sleep(100 * time.Millisecond)
	if h.wizard.Stage() != wizard.StageWelcome {
		t.Fatalf("stale completion must not move the wizard, got %s", h.wizard.Stage())
	}
}

func TestResumePollsWithoutResubmitting(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.store.SavePendingJob(t.Context(), session.PendingJob{
		ResultID:  "res-resume",
		PersonaID: "nova",
		Score:     40,
	}); err != nil {
		t.Fatalf("seed pending job: %v", err)
	}

	if err := h.wizard.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.wizard.Stage() != wizard.StageLoading {
		t.Fatalf("expected loading on resume, got %s", h.wizard.Stage())
	}

	h.renderer.waitFor(t, wizard.StageResults, nil)
	if h.generator.submitCount() != 0 {
		t.Errorf("resume must not resubmit, got %d submissions", h.generator.submitCount())
	}
	ids := h.generator.polledIDs()
	if len(ids) != 1 || ids[0] != "res-resume" {
		t.Errorf("expected one poll of the persisted id, got %v", ids)
	}

	pending, err := h.store.PendingJob(t.Context())
	if err != nil {
		t.Fatalf("pending job: %v", err)
	}
	if pending != nil {
		t.Errorf("pending job should clear on terminal state, got %+v", pending)
	}
}

func TestWorkshopFlow(t *testing.T) {
	surveyData := &fakeSurvey{
		workshops: []survey.Workshop{
			{ID: 7, Title: "Agents in Production", Order: 1},
			{ID: 3, Title: "Prompting 201", Order: 2},
		},
		attendee: &survey.Attendee{ID: "912", Name: "Robin Hale"},
	}
	h := newHarness(t, func(opts *wizard.Options) {
		opts.Survey = surveyData
	})
	h.wizard.Start(t.Context())
	h.dispatch(t, wizard.Start{})
	if h.wizard.Stage() != wizard.StageWorkshopSelect {
		t.Fatalf("survey mode should enter workshop select, got %s", h.wizard.Stage())
	}
	record := h.renderer.last()
	if record.Payload.Greeting != "Welcome, Robin Hale!" {
		t.Errorf("unexpected greeting %q", record.Payload.Greeting)
	}
	if len(record.Payload.Workshops) != 2 {
		t.Errorf("workshops not loaded: %+v", record.Payload.Workshops)
	}

	h.dispatch(t, wizard.Next{})
	if h.wizard.Stage() != wizard.StageWorkshopSelect {
		t.Fatal("next without a choice should be guarded")
	}

	h.dispatch(t, wizard.WorkshopChosen{ID: 7})
	h.dispatch(t, wizard.Next{})
	if h.wizard.Stage() != wizard.StagePhotoCapture {
		t.Fatalf("expected photo capture, got %s", h.wizard.Stage())
	}
	if len(surveyData.registered) != 1 || surveyData.registered[0] != 7 {
		t.Errorf("workshop registration not recorded: %v", surveyData.registered)
	}
}

func TestCompositeEnrichmentArrivesAfterResults(t *testing.T) {
	h := newHarness(t, func(opts *wizard.Options) {
		opts.Compositor = &fakeCompositor{image: &composite.Image{Data: "cGluay1waXhlbHM="}}
	})
	h.wizard.Start(t.Context())
	h.dispatch(t, wizard.Start{})
	h.answerAllQuestions(t)
	h.dispatch(t, wizard.UploadPhoto{Data: testPhotoBytes(t)})
	h.dispatch(t, wizard.Submit{})

	h.renderer.waitFor(t, wizard.StageResults, nil)
	record := h.renderer.waitFor(t, wizard.StageResults, func(r renderRecord) bool {
		return len(r.Payload.Composite) > 0
	})
	if string(record.Payload.Composite) != "pink-pixels" {
		t.Errorf("unexpected composite payload %q", record.Payload.Composite)
	}
}

func TestLocalCompositeFallbackWithoutEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		img := image.NewNRGBA(image.Rect(0, 0, 48, 64))
		for y := 0; y < 64; y++ {
			for x := 0; x < 48; x++ {
				img.SetNRGBA(x, y, color.NRGBA{B: 180, A: 255})
			}
		}
		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, img); err != nil {
			t.Errorf("encode art: %v", err)
		}
	}))
	defer server.Close()

	h := newHarness(t, func(opts *wizard.Options) {
		opts.Art = photo.NewArtCache(server.Client())
		opts.ArtBaseURL = server.URL
	})
	h.generator.result.ImageURL = server.URL + "/results/res-1.png"
	h.wizard.Start(t.Context())
	h.dispatch(t, wizard.Start{})
	h.answerAllQuestions(t)
	h.dispatch(t, wizard.UploadPhoto{Data: testPhotoBytes(t)})
	h.dispatch(t, wizard.Submit{})

	record := h.renderer.waitFor(t, wizard.StageResults, func(r renderRecord) bool {
		return len(r.Payload.Composite) > 0
	})
	img, err := png.Decode(bytes.NewReader(record.Payload.Composite))
	if err != nil {
		t.Fatalf("composite should be a PNG: %v", err)
	}
	if img.Bounds().Dy() != 64 {
		t.Errorf("composite height should match the selfie, got %d", img.Bounds().Dy())
	}
	if img.Bounds().Dx() <= 48 {
		t.Errorf("composite should be wider than the selfie alone, got %d", img.Bounds().Dx())
	}
}

func TestRestartResetsRound(t *testing.T) {
	h := newHarness(t, nil)
	h.wizard.Start(t.Context())
	h.dispatch(t, wizard.Start{})
	h.answerAllQuestions(t)
	h.dispatch(t, wizard.UploadPhoto{Data: testPhotoBytes(t)})
	h.dispatch(t, wizard.Submit{})
	h.renderer.waitFor(t, wizard.StageResults, nil)

	h.dispatch(t, wizard.Restart{})
	if h.wizard.Stage() != wizard.StageWelcome {
		t.Fatalf("expected welcome after restart, got %s", h.wizard.Stage())
	}

	h.dispatch(t, wizard.Start{})
	record := h.renderer.last()
	if record.Payload.HasSelection {
		t.Error("answers should be cleared after restart")
	}
	if record.Payload.QuestionIndex != 1 {
		t.Errorf("question index should reset, got %d", record.Payload.QuestionIndex)
	}
}
