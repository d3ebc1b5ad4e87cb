package main

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"quizbooth/internal/quiz"
	"quizbooth/internal/wizard"
)

// consoleRenderer paints wizard stages onto a terminal. Renders arrive from
// both the input loop and async generation callbacks, so writes are locked.
type consoleRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
}

func newConsoleRenderer(out io.Writer) *consoleRenderer {
	return &consoleRenderer{out: out, colorize: shouldColorize(out)}
}

func (r *consoleRenderer) Render(stage wizard.Stage, payload *wizard.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// In-place progress updates repaint a single line instead of the full stage.
	if stage == wizard.StageLoading && payload.Progress != "" {
		fmt.Fprintf(r.out, "\r%s%-40s", statusIndent, payload.Progress)
		return nil
	}

	for _, line := range renderSectionHeader(stage.String(), r.colorize) {
		fmt.Fprintln(r.out, line)
	}
	if payload.Message != "" {
		msg := payload.Message
		if r.colorize {
			msg = ansiYellow + msg + ansiReset
		}
		fmt.Fprintln(r.out, statusIndent+msg)
	}

	switch stage {
	case wizard.StageWelcome:
		fmt.Fprintln(r.out, statusIndent+"Find out which AI mindset you are and take home a selfie to match.")
		r.hint("press enter to start, q to quit")
	case wizard.StageQuestion:
		r.question(payload)
	case wizard.StageWorkshopSelect:
		r.workshops(payload)
	case wizard.StagePhotoCapture:
		r.photo(payload)
	case wizard.StageLoading:
		fmt.Fprintln(r.out, statusIndent+"Generating your selfie. Hang tight.")
	case wizard.StageResults:
		r.results(payload)
	}
	return nil
}

func (r *consoleRenderer) question(payload *wizard.Payload) {
	if payload.Question == nil {
		return
	}
	fmt.Fprintf(r.out, "%sQuestion %d of %d\n", statusIndent, payload.QuestionIndex, payload.QuestionCount)
	fmt.Fprintln(r.out, statusIndent+payload.Question.Prompt)
	labels := []string{"Strongly disagree", "Disagree", "Neutral", "Agree", "Strongly agree"}
	for i, label := range labels {
		marker := " "
		if payload.HasSelection && payload.Selected == i {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s%s %d. %s\n", statusIndent, marker, i+1, label)
	}
	r.hint("1-5 to answer, n for next, b for back")
}

func (r *consoleRenderer) workshops(payload *wizard.Payload) {
	if payload.Greeting != "" {
		fmt.Fprintln(r.out, statusIndent+payload.Greeting)
	}
	fmt.Fprintln(r.out, statusIndent+"Pick the workshop you would like to join.")
	rows := make([][]string, 0, len(payload.Workshops))
	for _, workshop := range payload.Workshops {
		marker := ""
		if workshop.ID == payload.SelectedWorkshop {
			marker = "*"
		}
		rows = append(rows, []string{
			strconv.Itoa(workshop.ID),
			marker,
			workshop.Title,
			workshop.Description,
		})
	}
	fmt.Fprintln(r.out, renderTable(
		[]string{"#", "", "Workshop", "Description"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	))
	r.hint("workshop number to choose, n to continue")
}

func (r *consoleRenderer) photo(payload *wizard.Payload) {
	switch {
	case payload.HasStill:
		fmt.Fprintln(r.out, statusIndent+"Photo captured.")
		r.hint("s to submit, r to retake, u <path> to use a file instead")
	case payload.CameraLive:
		fmt.Fprintln(r.out, statusIndent+"Camera is live.")
		r.hint("p to take the photo, u <path> to use a file instead")
	default:
		fmt.Fprintln(r.out, statusIndent+"Time for your selfie.")
		r.hint("c to start the camera, u <path> to use a file")
	}
}

func (r *consoleRenderer) results(payload *wizard.Payload) {
	if payload.Personas != nil {
		primary := payload.Personas.Primary
		fmt.Fprintf(r.out, "%sYou are %s, the %s.\n", statusIndent, primary.Name, titleCase(primary.Mindset))
		fmt.Fprintln(r.out, statusIndent+primary.Explanation)
		fmt.Fprintln(r.out, renderTable(
			[]string{"Persona", "Mindset"},
			personaRows(payload.Personas),
			[]columnAlignment{alignLeft, alignLeft},
		))
	}
	if payload.ImageURL != "" {
		fmt.Fprintln(r.out, statusIndent+"Selfie: "+payload.ImageURL)
	}
	if payload.DownloadURL != "" {
		fmt.Fprintln(r.out, statusIndent+"Download: "+payload.DownloadURL)
	}
	if payload.ShareURL != "" {
		fmt.Fprintln(r.out, statusIndent+"Share: "+payload.ShareURL)
	}
	if len(payload.Composite) > 0 {
		fmt.Fprintf(r.out, "%sShare graphic ready (%d bytes)\n", statusIndent, len(payload.Composite))
	}
	r.hint("r to start over, q to quit")
}

func personaRows(set *quiz.PersonaSet) [][]string {
	return [][]string{
		{set.Primary.Name, titleCase(set.Primary.Mindset)},
		{set.Left.Name, titleCase(set.Left.Mindset)},
		{set.Right.Name, titleCase(set.Right.Mindset)},
	}
}

func (r *consoleRenderer) hint(text string) {
	if r.colorize {
		text = ansiBlue + text + ansiReset
	}
	fmt.Fprintln(r.out, statusIndent+"("+text+")")
}
