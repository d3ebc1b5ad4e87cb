package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"quizbooth/internal/quiz"
	"quizbooth/internal/session"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "results",
		Short: "List recent generation results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("limit must be positive, got %d", limit)
			}
			return ctx.withStore(func(store *session.Store) error {
				results, err := store.RecentResults(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No results recorded yet")
					return nil
				}

				rows := make([][]string, 0, len(results))
				for _, result := range results {
					attendee := ""
					if result.Attendee != nil {
						attendee = result.Attendee.Name
					}
					rows = append(rows, []string{
						strconv.FormatInt(result.ID, 10),
						personaLabel(result.PersonaID),
						strconv.Itoa(result.Score),
						attendee,
						result.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				table := renderTable(
					[]string{"ID", "Persona", "Score", "Attendee", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results to show")
	return cmd
}

func personaLabel(id string) string {
	if persona, ok := quiz.PersonaByID(id); ok {
		return persona.Name
	}
	return id
}
