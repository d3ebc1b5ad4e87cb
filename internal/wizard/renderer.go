package wizard

import (
	"quizbooth/internal/quiz"
	"quizbooth/internal/services/survey"
)

// Payload carries everything a stage view needs. Fields are populated per
// stage; unused ones stay zero.
type Payload struct {
	// Question stage.
	Question      *quiz.Question
	QuestionIndex int
	QuestionCount int
	Selected      int
	HasSelection  bool

	// Workshop stage.
	Workshops        []survey.Workshop
	SelectedWorkshop int
	Greeting         string

	// Photo stage.
	CameraLive bool
	HasStill   bool

	// Loading stage.
	Progress string

	// Results stage.
	Score       int
	Personas    *quiz.PersonaSet
	ImageURL    string
	DownloadURL string
	ShareURL    string
	Composite   []byte

	// Set on any stage when the previous action failed. The stage stays
	// usable; the message is dismissible.
	Message string

	// CanAdvance mirrors the navigation guard: false disables the
	// next/submit control for the stage.
	CanAdvance bool
}

// Renderer mounts stage views. The booth console implements it; tests use a
// recording fake. Renders must be idempotent: the same stage and payload
// twice yields the same visible state.
type Renderer interface {
	Render(stage Stage, payload *Payload) error
}
