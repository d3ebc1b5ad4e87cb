package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"quizbooth/internal/quiz"
)

func newPersonasCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "personas",
		Short:       "List the result personas",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(quiz.Personas()))
			for _, persona := range quiz.Personas() {
				rows = append(rows, []string{
					persona.ID,
					persona.Name,
					titleCase(persona.Mindset),
					persona.CharacterID,
				})
			}
			table := renderTable(
				[]string{"ID", "Name", "Mindset", "Character"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newQuestionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "questions",
		Short:       "List the quiz questions",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, quiz.QuestionCount())
			for _, question := range quiz.Questions() {
				rows = append(rows, []string{
					strconv.Itoa(question.Index),
					question.Prompt,
					yesNo(question.Reversed),
				})
			}
			table := renderTable(
				[]string{"#", "Prompt", "Reversed"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}
