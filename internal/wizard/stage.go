package wizard

import "fmt"

// Stage is one mutually exclusive screen of the booth flow. Exactly one
// stage is active at a time and owns the mounted view.
type Stage int

const (
	StageWelcome Stage = iota
	StageQuestion
	StageWorkshopSelect
	StagePhotoCapture
	StageLoading
	StageResults
)

func (s Stage) String() string {
	switch s {
	case StageWelcome:
		return "welcome"
	case StageQuestion:
		return "question"
	case StageWorkshopSelect:
		return "workshop-select"
	case StagePhotoCapture:
		return "photo-capture"
	case StageLoading:
		return "loading"
	case StageResults:
		return "results"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Event is a request to advance the wizard. The concrete types below form a
// closed set; the transition function rejects any event the active stage
// does not accept.
type Event interface {
	eventName() string
}

// Start leaves the welcome screen.
type Start struct{}

// AnswerSelected records the option chosen for the current question.
type AnswerSelected struct {
	Value int
}

// Next advances past the current question or a chosen workshop.
type Next struct{}

// Back returns to the previous question.
type Back struct{}

// WorkshopChosen records a workshop selection.
type WorkshopChosen struct {
	ID int
}

// StartCamera asks for the capture device.
type StartCamera struct{}

// CapturePhoto confirms the current frame as the still.
type CapturePhoto struct{}

// RetakePhoto discards the still and goes back to the live view.
type RetakePhoto struct{}

// UploadPhoto selects a file instead of the camera.
type UploadPhoto struct {
	Data []byte
}

// Submit sends the confirmed still for generation.
type Submit struct{}

// Restart abandons the current round and returns to the welcome screen.
type Restart struct{}

// generationFinished is raised internally when the submission pipeline
// reaches a terminal outcome. Generation tags the round so a stale pipeline
// result cannot clobber a newer one.
type generationFinished struct {
	Generation  uint64
	ImageURL    string
	DownloadURL string
	ShareURL    string
	Err         error
}

func (Start) eventName() string              { return "start" }
func (AnswerSelected) eventName() string     { return "answer-selected" }
func (Next) eventName() string               { return "next" }
func (Back) eventName() string               { return "back" }
func (WorkshopChosen) eventName() string     { return "workshop-chosen" }
func (StartCamera) eventName() string        { return "start-camera" }
func (CapturePhoto) eventName() string       { return "capture-photo" }
func (RetakePhoto) eventName() string        { return "retake-photo" }
func (UploadPhoto) eventName() string        { return "upload-photo" }
func (Submit) eventName() string             { return "submit" }
func (Restart) eventName() string            { return "restart" }
func (generationFinished) eventName() string { return "generation-finished" }

// allowed is the transition table: which events each stage accepts. Stage
// entry side effects live in the controller; this table only answers
// legality.
var allowed = map[Stage]map[string]bool{
	StageWelcome: {
		"start": true,
	},
	StageQuestion: {
		"answer-selected": true,
		"next":            true,
		"back":            true,
		"restart":         true,
	},
	StageWorkshopSelect: {
		"workshop-chosen": true,
		"next":            true,
		"restart":         true,
	},
	StagePhotoCapture: {
		"start-camera":  true,
		"capture-photo": true,
		"retake-photo":  true,
		"upload-photo":  true,
		"submit":        true,
		"restart":       true,
	},
	StageLoading: {
		"generation-finished": true,
		"restart":             true,
	},
	StageResults: {
		"restart": true,
	},
}

func accepts(stage Stage, event Event) bool {
	table, ok := allowed[stage]
	return ok && table[event.eventName()]
}
