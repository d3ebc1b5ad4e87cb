package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"quizbooth/internal/analytics"
	"quizbooth/internal/capture"
	"quizbooth/internal/logging"
	"quizbooth/internal/photo"
	"quizbooth/internal/quiz"
	"quizbooth/internal/services"
	"quizbooth/internal/services/composite"
	"quizbooth/internal/services/generation"
	"quizbooth/internal/services/survey"
	"quizbooth/internal/session"
)

// Generator is the submission surface the wizard drives.
type Generator interface {
	Submit(ctx context.Context, req generation.SubmitRequest) (*generation.Submission, error)
	PollUntilDone(ctx context.Context, resultID string, progress func(*generation.Result)) (*generation.Result, error)
}

// Compositor renders the share graphic enrichment.
type Compositor interface {
	Enabled() bool
	Render(ctx context.Context, req composite.Request) (*composite.Image, error)
}

// SurveyData feeds the workshop stage.
type SurveyData interface {
	Enabled() bool
	Workshops(ctx context.Context) ([]survey.Workshop, error)
	Lookup(ctx context.Context, token string) (*survey.Attendee, error)
	Register(ctx context.Context, attendeeID string, workshopID int) error
}

// Options collects the wizard's collaborators.
type Options struct {
	Renderer   Renderer
	Capture    *capture.Session
	Normalizer *photo.Normalizer
	Generator  Generator
	Compositor Compositor
	Survey     SurveyData
	Analytics  analytics.Service
	Store      *session.Store
	Logger     *slog.Logger
	// Art backs the local share graphic fallback used when no composite
	// endpoint is configured.
	Art *photo.ArtCache
	// ArtBaseURL resolves relative persona art paths for the local fallback.
	ArtBaseURL string
	// Rand seeds persona draws; nil uses the shared source.
	Rand *rand.Rand
	// Token is the event token resolved to an attendee in survey mode.
	Token string
}

// Wizard is the single authority for what is on screen. All mutable round
// state lives here; there are no package-level singletons, so independent
// wizard instances can coexist. Dispatch serializes events, matching the
// single-threaded event model of the booth UI.
type Wizard struct {
	renderer   Renderer
	capture    *capture.Session
	normalizer *photo.Normalizer
	generator  Generator
	compositor Compositor
	survey     SurveyData
	analytics  analytics.Service
	store      *session.Store
	logger     *slog.Logger
	rng        *rand.Rand
	token      string
	art        *photo.ArtCache
	artBase    string

	mu      sync.Mutex
	runCtx  context.Context
	stage   Stage
	answers quiz.AnswerSet
	// question is the 1-based index of the question on screen.
	question int

	workshops        []survey.Workshop
	selectedWorkshop int
	attendee         *survey.Attendee

	score    int
	personas *quiz.PersonaSet

	imageURL    string
	downloadURL string
	shareURL    string
	composite   []byte
	progress    string
	message     string

	// generation increments every time a new submission round begins or the
	// round is abandoned. Async callbacks carry the value they were started
	// with; a mismatch means the callback is stale and must be discarded.
	generation uint64
	submitted  time.Time
}

// New constructs a wizard. Start must be called before dispatching events.
func New(opts Options) (*Wizard, error) {
	if opts.Renderer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "wizard", "new", "renderer required", nil)
	}
	if opts.Generator == nil {
		return nil, services.Wrap(services.ErrConfiguration, "wizard", "new", "generator required", nil)
	}
	if opts.Analytics == nil {
		opts.Analytics = analytics.Noop()
	}
	return &Wizard{
		renderer:   opts.Renderer,
		capture:    opts.Capture,
		normalizer: opts.Normalizer,
		generator:  opts.Generator,
		compositor: opts.Compositor,
		survey:     opts.Survey,
		analytics:  opts.Analytics,
		store:      opts.Store,
		logger:     logging.NewComponentLogger(opts.Logger, "wizard"),
		rng:        opts.Rand,
		token:      opts.Token,
		art:        opts.Art,
		artBase:    opts.ArtBaseURL,
		answers:    make(quiz.AnswerSet),
		question:   1,
		stage:      StageWelcome,
	}, nil
}

// Start renders the first stage. If the store holds an outstanding job id,
// the wizard resumes polling it instead of starting fresh; the photo is
// never resubmitted.
func (w *Wizard) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runCtx = ctx

	if w.survey != nil && w.survey.Enabled() {
		w.loadSurveyData(ctx)
	}

	if w.store != nil {
		pending, err := w.store.PendingJob(ctx)
		if err != nil {
			w.logger.Warn("pending job lookup failed", logging.Error(err))
		} else if pending != nil {
			return w.resume(ctx, pending)
		}
	}

	w.stage = StageWelcome
	w.analytics.StageEntered(ctx, w.stage.String())
	return w.render()
}

func (w *Wizard) resume(ctx context.Context, pending *session.PendingJob) error {
	w.logger.Info("resuming outstanding job", "result_id", pending.ResultID)
	w.score = pending.Score
	if persona, ok := quiz.PersonaByID(pending.PersonaID); ok {
		set, err := quiz.PersonaSetForScore(w.rng, pending.Score)
		if err != nil || set.Primary.ID != persona.ID {
			set = quiz.PersonaSet{Primary: persona, Left: persona, Right: persona}
			if alternates, altErr := quiz.RandomPersonas(w.rng, 3); altErr == nil {
				for _, alt := range alternates {
					if alt.ID == persona.ID {
						continue
					}
					if set.Left.ID == persona.ID {
						set.Left = alt
					} else if set.Right.ID == persona.ID {
						set.Right = alt
					}
				}
			}
		}
		w.personas = &set
	}
	w.stage = StageLoading
	w.generation++
	w.submitted = pending.SubmittedAt
	go w.pollOnly(ctx, w.generation, pending.ResultID)
	w.analytics.Event(ctx, "generation_resumed", map[string]any{"result_id": pending.ResultID})
	return w.render()
}

// Stage returns the active stage.
func (w *Wizard) Stage() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stage
}

// Dispatch applies one event. Events the active stage does not accept are
// rejected without side effects. User-facing failures inside a legal event
// become a message on the re-rendered stage, never a dispatch error.
func (w *Wizard) Dispatch(ctx context.Context, event Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !accepts(w.stage, event) {
		return services.Wrap(services.ErrValidation, "wizard", "dispatch",
			fmt.Sprintf("stage %s does not accept %s", w.stage, event.eventName()), nil)
	}
	w.message = ""

	switch ev := event.(type) {
	case Start:
		w.handleStart(ctx)
	case AnswerSelected:
		if err := w.answers.Set(w.question, ev.Value); err != nil {
			return err
		}
	case Next:
		w.handleNext(ctx)
	case Back:
		w.handleBack(ctx)
	case WorkshopChosen:
		w.handleWorkshopChosen(ev.ID)
	case StartCamera:
		if err := w.capture.Start(ctx); err != nil {
			w.message = services.UserMessage(err)
		}
	case CapturePhoto:
		if _, err := w.capture.Capture(ctx); err != nil {
			w.message = services.UserMessage(err)
		} else {
			still, source := w.capture.Still()
			w.analytics.PhotoCaptured(ctx, source.String(), len(still))
		}
	case RetakePhoto:
		if err := w.capture.Retake(ctx); err != nil {
			w.message = services.UserMessage(err)
		}
	case UploadPhoto:
		if err := w.capture.SelectUpload(ev.Data); err != nil {
			w.message = services.UserMessage(err)
		} else {
			w.analytics.PhotoCaptured(ctx, capture.SourceUpload.String(), len(ev.Data))
		}
	case Submit:
		w.handleSubmit(ctx)
	case generationFinished:
		w.handleGenerationFinished(ctx, ev)
	case Restart:
		w.handleRestart(ctx)
	}

	return w.render()
}

func (w *Wizard) handleStart(ctx context.Context) {
	if w.survey != nil && w.survey.Enabled() {
		if w.workshops == nil {
			w.loadSurveyData(ctx)
		}
		w.stage = StageWorkshopSelect
	} else {
		w.question = 1
		w.stage = StageQuestion
	}
	w.analytics.StageEntered(ctx, w.stage.String())
}

func (w *Wizard) handleNext(ctx context.Context) {
	switch w.stage {
	case StageQuestion:
		if _, answered := w.answers[w.question]; !answered {
			w.message = "Please select an answer to continue."
			return
		}
		if w.question < quiz.QuestionCount() {
			w.question++
			return
		}
		w.score = quiz.Score(w.answers)
		set, err := quiz.PersonaSetForScore(w.rng, w.score)
		if err != nil {
			w.message = services.UserMessage(err)
			return
		}
		w.personas = &set
		w.stage = StagePhotoCapture
		w.analytics.StageEntered(ctx, w.stage.String())
		w.analytics.Event(ctx, "quiz_scored", map[string]any{"score": w.score, "persona": set.Primary.ID})
	case StageWorkshopSelect:
		if w.selectedWorkshop == 0 {
			w.message = "Please choose a workshop to continue."
			return
		}
		if w.attendee != nil && w.attendee.ID != "" {
			if err := w.survey.Register(ctx, w.attendee.ID, w.selectedWorkshop); err != nil {
				// Registration is display data; the round continues.
				w.logger.Warn("workshop registration failed", logging.Error(err))
			}
		}
		set, err := quiz.RandomPersonaSet(w.rng)
		if err != nil {
			w.message = services.UserMessage(err)
			return
		}
		w.personas = &set
		w.stage = StagePhotoCapture
		w.analytics.StageEntered(ctx, w.stage.String())
	}
}

func (w *Wizard) handleBack(ctx context.Context) {
	if w.question > 1 {
		w.question--
		return
	}
	w.stage = StageWelcome
	w.analytics.StageEntered(ctx, w.stage.String())
}

func (w *Wizard) handleWorkshopChosen(id int) {
	for _, workshop := range w.workshops {
		if workshop.ID == id {
			w.selectedWorkshop = id
			return
		}
	}
	w.message = "That workshop is no longer available."
}

func (w *Wizard) handleSubmit(ctx context.Context) {
	still, _ := w.capture.Still()
	if len(still) == 0 {
		w.message = "Please take or upload a photo first."
		return
	}
	normalized, err := w.normalizer.Normalize(still)
	if err != nil {
		// A photo that cannot be normalized is discarded so the guest
		// starts from a clean selection.
		w.capture.Stop()
		w.message = services.UserMessage(err)
		return
	}

	if w.personas == nil {
		set, err := quiz.RandomPersonaSet(w.rng)
		if err != nil {
			w.message = services.UserMessage(err)
			return
		}
		w.personas = &set
	}

	w.stage = StageLoading
	w.progress = "Generating your image..."
	w.generation++
	w.submitted = time.Now()
	w.analytics.StageEntered(ctx, w.stage.String())

	go w.submitAndPoll(services.WithStage(w.asyncContext(ctx), w.stage.String()), w.generation, normalized, w.personas.Primary, w.score)
}

func (w *Wizard) handleGenerationFinished(ctx context.Context, ev generationFinished) {
	if ev.Generation != w.generation {
		w.logger.Debug("discarding stale generation callback",
			"callback_generation", ev.Generation, "current_generation", w.generation)
		return
	}
	if ev.Err != nil {
		w.stage = StagePhotoCapture
		w.message = services.UserMessage(ev.Err)
		w.analytics.GenerationFailed(ctx, "", ev.Err.Error())
		return
	}

	w.imageURL = ev.ImageURL
	w.downloadURL = ev.DownloadURL
	w.shareURL = ev.ShareURL
	w.stage = StageResults
	w.progress = ""
	w.analytics.StageEntered(ctx, w.stage.String())
	w.analytics.GenerationCompleted(ctx, "", time.Since(w.submitted))

	// Results render first; the composite share graphic arrives later,
	// from the renderer endpoint when one is configured or assembled
	// locally from cached character art otherwise.
	remote := w.compositor != nil && w.compositor.Enabled()
	if w.personas != nil && (remote || w.art != nil) {
		go w.enrich(w.asyncContext(ctx), w.generation, ev.ImageURL, *w.personas)
	}
}

func (w *Wizard) handleRestart(ctx context.Context) {
	if w.capture != nil {
		w.capture.Stop()
	}
	w.generation++
	w.answers = make(quiz.AnswerSet)
	w.question = 1
	w.selectedWorkshop = 0
	w.score = 0
	w.personas = nil
	w.imageURL = ""
	w.downloadURL = ""
	w.shareURL = ""
	w.composite = nil
	w.progress = ""
	w.stage = StageWelcome
	w.analytics.StageEntered(ctx, w.stage.String())
}

// submitAndPoll runs the full pipeline off the dispatch path: submit, persist
// the job id, poll to a terminal status, and report back through Dispatch.
func (w *Wizard) submitAndPoll(ctx context.Context, gen uint64, still *photo.Still, persona quiz.Persona, score int) {
	submission, err := w.generator.Submit(ctx, generation.SubmitRequest{
		Photo:     still.Data,
		Filename:  "photo.jpg",
		Character: persona.CharacterID,
	})
	if err != nil {
		w.finish(ctx, generationFinished{Generation: gen, Err: err})
		return
	}
	ctx = services.WithResultID(ctx, submission.ResultID)
	ctx = services.WithRequestID(ctx, submission.ClientRequestID)
	w.analytics.GenerationSubmitted(ctx, submission.ResultID, persona.ID)

	if submission.Immediate != nil {
		w.finish(ctx, generationFinished{
			Generation:  gen,
			ImageURL:    submission.Immediate.ImageURL,
			DownloadURL: submission.Immediate.DownloadURL,
			ShareURL:    submission.Immediate.ShareURL,
		})
		w.recordResult(ctx, "", persona, score, submission.Immediate.ImageURL)
		return
	}

	if w.store != nil {
		if err := w.store.SavePendingJob(ctx, session.PendingJob{
			ResultID:        submission.ResultID,
			PersonaID:       persona.ID,
			Score:           score,
			ClientRequestID: submission.ClientRequestID,
		}); err != nil {
			w.logger.Warn("failed to persist pending job", logging.Error(err))
		}
	}

	w.poll(ctx, gen, submission.ResultID, persona, score)
}

// pollOnly resumes a persisted job without resubmitting.
func (w *Wizard) pollOnly(ctx context.Context, gen uint64, resultID string) {
	ctx = services.WithStage(ctx, StageLoading.String())
	ctx = services.WithResultID(ctx, resultID)
	persona := quiz.Persona{}
	score := 0
	w.mu.Lock()
	if w.personas != nil {
		persona = w.personas.Primary
	}
	score = w.score
	w.mu.Unlock()
	w.poll(ctx, gen, resultID, persona, score)
}

func (w *Wizard) poll(ctx context.Context, gen uint64, resultID string, persona quiz.Persona, score int) {
	result, err := w.generator.PollUntilDone(ctx, resultID, func(update *generation.Result) {
		w.setProgress(gen, update)
	})
	if err != nil {
		if terminalJobError(err) && w.store != nil {
			if clearErr := w.store.ClearPendingJob(ctx); clearErr != nil {
				w.logger.Warn("failed to clear pending job", logging.Error(clearErr))
			}
		}
		w.finish(ctx, generationFinished{Generation: gen, Err: err})
		return
	}

	w.recordResult(ctx, resultID, persona, score, result.ImageURL)
	w.finish(ctx, generationFinished{
		Generation:  gen,
		ImageURL:    result.ImageURL,
		DownloadURL: result.DownloadURL,
		ShareURL:    result.ShareURL,
	})
}

// terminalJobError reports whether the persisted job id is dead and must be
// cleared. Transient polling failures keep the id so a restart can resume.
func terminalJobError(err error) bool {
	return errors.Is(err, services.ErrGenerationFailed) || errors.Is(err, services.ErrExpired)
}

func (w *Wizard) recordResult(ctx context.Context, resultID string, persona quiz.Persona, score int, imageURL string) {
	if w.store == nil {
		return
	}
	record := session.Result{
		ResultID:  resultID,
		PersonaID: persona.ID,
		Score:     score,
		ImageURL:  imageURL,
	}
	w.mu.Lock()
	if w.attendee != nil {
		record.Attendee = &session.Attendee{ID: w.attendee.ID, Name: w.attendee.Name, Email: w.attendee.Email}
	}
	w.mu.Unlock()
	if _, err := w.store.RecordResult(ctx, record); err != nil {
		w.logger.Warn("failed to record result", logging.Error(err))
	}
}

func (w *Wizard) finish(ctx context.Context, ev generationFinished) {
	if err := w.Dispatch(ctx, ev); err != nil {
		w.logger.Warn("generation completion discarded", logging.Error(err))
	}
}

func (w *Wizard) setProgress(gen uint64, update *generation.Result) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation || w.stage != StageLoading {
		return
	}
	if update.Detail != "" {
		w.progress = update.Detail
	}
	_ = w.render()
}

// enrich produces the composite share graphic after the results render. The
// generation check makes a late arrival for an abandoned round a no-op.
func (w *Wizard) enrich(ctx context.Context, gen uint64, imageURL string, personas quiz.PersonaSet) {
	data, err := w.renderComposite(ctx, imageURL, personas)
	if err != nil {
		w.logger.Warn("composite enrichment failed", logging.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation || w.stage != StageResults {
		return
	}
	w.composite = data
	_ = w.render()
}

// renderComposite prefers the remote renderer endpoint and falls back to a
// local assembly from trimmed character art when none is configured.
func (w *Wizard) renderComposite(ctx context.Context, imageURL string, personas quiz.PersonaSet) ([]byte, error) {
	if w.compositor != nil && w.compositor.Enabled() {
		image, err := w.compositor.Render(ctx, composite.Request{
			CenterURL: imageURL,
			LeftPath:  personas.Left.Image,
			RightPath: personas.Right.Image,
		})
		if err != nil {
			return nil, err
		}
		return image.Bytes()
	}

	center, err := w.art.Fetch(ctx, w.artURL(imageURL))
	if err != nil {
		return nil, err
	}
	left, err := w.art.Fetch(ctx, w.artURL(personas.Left.Image))
	if err != nil {
		return nil, err
	}
	right, err := w.art.Fetch(ctx, w.artURL(personas.Right.Image))
	if err != nil {
		return nil, err
	}
	return photo.Compose(center, left, right)
}

// artURL resolves persona art paths against the configured base. Absolute
// URLs, like generated selfie links, pass through untouched.
func (w *Wizard) artURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return strings.TrimRight(w.artBase, "/") + "/" + strings.TrimLeft(path, "/")
}

// loadSurveyData populates workshop and attendee display data. Both calls
// are best effort.
func (w *Wizard) loadSurveyData(ctx context.Context) {
	workshops, err := w.survey.Workshops(ctx)
	if err != nil {
		w.logger.Warn("workshop list unavailable", logging.Error(err))
		w.analytics.Event(ctx, "workshops_load_failed", nil)
	} else {
		w.workshops = workshops
	}
	attendee, err := w.survey.Lookup(ctx, w.token)
	if err != nil {
		w.logger.Warn("attendee lookup failed", logging.Error(err))
	} else if attendee != nil {
		w.attendee = attendee
	}
}

func (w *Wizard) asyncContext(ctx context.Context) context.Context {
	if w.runCtx != nil {
		return w.runCtx
	}
	return context.WithoutCancel(ctx)
}

// render mounts the active stage. Callers hold the lock.
func (w *Wizard) render() error {
	payload := &Payload{Message: w.message}

	switch w.stage {
	case StageQuestion:
		questions := quiz.Questions()
		question := questions[w.question-1]
		payload.Question = &question
		payload.QuestionIndex = w.question
		payload.QuestionCount = len(questions)
		if value, ok := w.answers[w.question]; ok {
			payload.Selected = value
			payload.HasSelection = true
		}
		payload.CanAdvance = payload.HasSelection
	case StageWorkshopSelect:
		payload.Workshops = w.workshops
		payload.SelectedWorkshop = w.selectedWorkshop
		payload.CanAdvance = w.selectedWorkshop != 0
		if w.attendee != nil && w.attendee.Name != "" {
			payload.Greeting = fmt.Sprintf("Welcome, %s!", w.attendee.Name)
		} else {
			payload.Greeting = "Welcome!"
		}
	case StagePhotoCapture:
		if w.capture != nil {
			still, _ := w.capture.Still()
			payload.HasStill = len(still) > 0
			payload.CameraLive = w.capture.State() == capture.StateLive
		}
		payload.CanAdvance = payload.HasStill
	case StageLoading:
		payload.Progress = w.progress
	case StageResults:
		payload.Score = w.score
		payload.Personas = w.personas
		payload.ImageURL = w.imageURL
		payload.DownloadURL = w.downloadURL
		payload.ShareURL = w.shareURL
		payload.Composite = w.composite
		payload.CanAdvance = true
	case StageWelcome:
		payload.CanAdvance = true
	}

	return w.renderer.Render(w.stage, payload)
}
