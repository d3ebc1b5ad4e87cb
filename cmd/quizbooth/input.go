package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"quizbooth/internal/quiz"
	"quizbooth/internal/wizard"
)

// errQuit signals a clean operator exit from the input loop.
var errQuit = errors.New("quit")

// parseEvent maps one line of operator input to a wizard event for the
// current stage. A nil event with nil error means the line was a no-op.
func parseEvent(stage wizard.Stage, line string) (wizard.Event, error) {
	line = strings.TrimSpace(line)
	lower := strings.ToLower(line)

	if lower == "q" || lower == "quit" || lower == "exit" {
		return nil, errQuit
	}

	switch stage {
	case wizard.StageWelcome:
		if line == "" || lower == "s" || lower == "start" {
			return wizard.Start{}, nil
		}
	case wizard.StageQuestion:
		switch lower {
		case "", "n", "next":
			return wizard.Next{}, nil
		case "b", "back":
			return wizard.Back{}, nil
		}
		if value, err := strconv.Atoi(line); err == nil {
			if value < 1 || value > quiz.OptionCount {
				return nil, fmt.Errorf("answer with a number from 1 to %d", quiz.OptionCount)
			}
			return wizard.AnswerSelected{Value: value - 1}, nil
		}
	case wizard.StageWorkshopSelect:
		switch lower {
		case "", "n", "next":
			return wizard.Next{}, nil
		}
		if id, err := strconv.Atoi(line); err == nil {
			return wizard.WorkshopChosen{ID: id}, nil
		}
	case wizard.StagePhotoCapture:
		switch lower {
		case "c", "camera":
			return wizard.StartCamera{}, nil
		case "p", "snap":
			return wizard.CapturePhoto{}, nil
		case "r", "retake":
			return wizard.RetakePhoto{}, nil
		case "", "s", "submit":
			return wizard.Submit{}, nil
		}
		if rest, ok := strings.CutPrefix(line, "u "); ok {
			return uploadEvent(rest)
		}
		if rest, ok := strings.CutPrefix(line, "upload "); ok {
			return uploadEvent(rest)
		}
	case wizard.StageLoading:
		// Generation is in flight; everything except quit is ignored.
		return nil, nil
	case wizard.StageResults:
		if line == "" || lower == "r" || lower == "restart" || lower == "again" {
			return wizard.Restart{}, nil
		}
	}

	if line == "" {
		return nil, nil
	}
	return nil, fmt.Errorf("unrecognized input %q", line)
}

func uploadEvent(path string) (wizard.Event, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("upload needs a file path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read photo %q: %w", path, err)
	}
	return wizard.UploadPhoto{Data: data}, nil
}
