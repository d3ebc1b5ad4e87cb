package quiz

import (
	"fmt"
	"math"
)

// AnswerSet maps question index (1..QuestionCount) to the selected option
// (0..MaxOption). Unanswered questions score as the neutral value 0.
type AnswerSet map[int]int

// Set records an answer, rejecting out-of-range values.
func (a AnswerSet) Set(question, value int) error {
	if question < 1 || question > QuestionCount() {
		return fmt.Errorf("question index %d out of range", question)
	}
	if value < 0 || value > MaxOption {
		return fmt.Errorf("answer value %d out of range 0..%d", value, MaxOption)
	}
	a[question] = value
	return nil
}

// Complete reports whether every question has an answer.
func (a AnswerSet) Complete() bool {
	for _, q := range defaultQuestions {
		if _, ok := a[q.Index]; !ok {
			return false
		}
	}
	return true
}

// Score computes the AI-mindset score in [0,100]. Reversed questions flip the
// 0..4 scale through 4-v before summation:
//
//	score = round(100 * sum(adjusted) / (4 * N))
func Score(answers AnswerSet) int {
	total := 0
	for _, q := range defaultQuestions {
		value := answers[q.Index]
		if value < 0 {
			value = 0
		}
		if value > MaxOption {
			value = MaxOption
		}
		if q.Reversed {
			value = MaxOption - value
		}
		total += value
	}
	maxTotal := MaxOption * len(defaultQuestions)
	return int(math.Round(100 * float64(total) / float64(maxTotal)))
}
