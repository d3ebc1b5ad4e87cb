package main

import (
	"bytes"
	"testing"

	"quizbooth/internal/quiz"
	"quizbooth/internal/services/survey"
	"quizbooth/internal/wizard"
)

func TestConsoleRendererQuestionMarksSelection(t *testing.T) {
	var buf bytes.Buffer
	renderer := &consoleRenderer{out: &buf}

	err := renderer.Render(wizard.StageQuestion, &wizard.Payload{
		Question:      &quiz.Question{Index: 3, Prompt: "Robots make good colleagues."},
		QuestionIndex: 3,
		QuestionCount: 10,
		Selected:      2,
		HasSelection:  true,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	out := buf.String()
	requireContains(t, out, "Question 3 of 10")
	requireContains(t, out, "Robots make good colleagues.")
	requireContains(t, out, "* 3. Neutral")
}

func TestConsoleRendererWorkshopTable(t *testing.T) {
	var buf bytes.Buffer
	renderer := &consoleRenderer{out: &buf}

	err := renderer.Render(wizard.StageWorkshopSelect, &wizard.Payload{
		Greeting: "Welcome, Robin Hale!",
		Workshops: []survey.Workshop{
			{ID: 7, Title: "Prompting 101", Description: "Hands-on intro"},
			{ID: 9, Title: "Agents at Work", Description: "Deep dive"},
		},
		SelectedWorkshop: 9,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	out := buf.String()
	requireContains(t, out, "Welcome, Robin Hale!")
	requireContains(t, out, "Prompting 101")
	requireContains(t, out, "Agents at Work")
}

func TestConsoleRendererResults(t *testing.T) {
	var buf bytes.Buffer
	renderer := &consoleRenderer{out: &buf}

	personas := &quiz.PersonaSet{
		Primary: quiz.Persona{Name: "Nova", Mindset: "observer", Explanation: "You watch first."},
		Left:    quiz.Persona{Name: "M.A.C.-Bot", Mindset: "skeptic"},
		Right:   quiz.Persona{Name: "Flux", Mindset: "pioneer"},
	}
	err := renderer.Render(wizard.StageResults, &wizard.Payload{
		Personas:    personas,
		ImageURL:    "http://booth.local/results/abc.jpg",
		DownloadURL: "http://booth.local/results/abc/download",
		Composite:   []byte("png-bytes"),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	out := buf.String()
	requireContains(t, out, "You are Nova, the Observer.")
	requireContains(t, out, "You watch first.")
	requireContains(t, out, "http://booth.local/results/abc.jpg")
	requireContains(t, out, "Download: http://booth.local/results/abc/download")
	requireContains(t, out, "Share graphic ready")
}

func TestConsoleRendererShowsMessage(t *testing.T) {
	var buf bytes.Buffer
	renderer := &consoleRenderer{out: &buf}

	err := renderer.Render(wizard.StagePhotoCapture, &wizard.Payload{
		Message: "We could not read that photo. Please try another one.",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	requireContains(t, buf.String(), "We could not read that photo.")
}
