package quiz

// OptionCount is the number of choices per question; answers range 0..4.
const OptionCount = 5

// MaxOption is the highest selectable option value.
const MaxOption = OptionCount - 1

// Question is one survey statement. Reversed questions phrase a cautious or
// pessimistic position, so disagreement counts toward an AI-positive score.
type Question struct {
	Index    int
	Prompt   string
	Reversed bool
}

var defaultQuestions = []Question{
	{Index: 1, Prompt: "AI will meaningfully improve how my organisation discovers new treatments."},
	{Index: 2, Prompt: "AI tools are mostly hype and will not change day-to-day pharma work.", Reversed: true},
	{Index: 3, Prompt: "I would trust an AI assistant to draft regulatory documents for human review."},
	{Index: 4, Prompt: "Adopting AI quickly is worth the growing pains it brings."},
	{Index: 5, Prompt: "The risks of AI in patient-facing workflows outweigh the benefits.", Reversed: true},
	{Index: 6, Prompt: "My team should be experimenting with AI tools today, not next year."},
	{Index: 7, Prompt: "AI decisions in pharma need years more validation before we rely on them.", Reversed: true},
	{Index: 8, Prompt: "AI will create more roles in pharma than it replaces."},
	{Index: 9, Prompt: "I am confident explaining to colleagues how AI models reach their outputs."},
	{Index: 10, Prompt: "Waiting for others to prove AI out first is the safest strategy.", Reversed: true},
}

// Questions returns the survey in presentation order.
func Questions() []Question {
	cp := make([]Question, len(defaultQuestions))
	copy(cp, defaultQuestions)
	return cp
}

// QuestionCount is the number of survey questions.
func QuestionCount() int {
	return len(defaultQuestions)
}
