package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quizbooth/internal/session"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show booth configuration and session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Generation service", serviceKind(cfg.Service.BaseURL), cfg.Service.BaseURL, colorize))
			fmt.Fprintln(out, renderStatusLine("Composite service", optionalKind(cfg.Service.CompositeURL), orDisabled(cfg.Service.CompositeURL), colorize))
			fmt.Fprintln(out, renderStatusLine("Analytics", optionalKind(cfg.Service.AnalyticsURL), orDisabled(cfg.Service.AnalyticsURL), colorize))
			fmt.Fprintln(out, renderStatusLine("Survey mode", optionalKind(cfg.Survey.WorkshopURL), yesNo(cfg.SurveyEnabled()), colorize))
			fmt.Fprintln(out, renderStatusLine("Camera grab", optionalKind(cfg.Capture.GrabCommand), orDisabled(cfg.Capture.GrabCommand), colorize))
			fmt.Fprintln(out, renderStatusLine("Data directory", statusInfo, cfg.Paths.DataDir, colorize))

			return ctx.withStore(func(store *session.Store) error {
				for _, line := range renderSectionHeader("Session", colorize) {
					fmt.Fprintln(out, line)
				}

				pending, err := store.PendingJob(cmd.Context())
				if err != nil {
					return err
				}
				if pending != nil {
					age := time.Since(pending.SubmittedAt).Round(time.Second)
					detail := fmt.Sprintf("%s (submitted %s ago)", pending.ResultID, age)
					fmt.Fprintln(out, renderStatusLine("Pending job", statusWarn, detail, colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Pending job", statusOK, "none", colorize))
				}

				count, err := store.CountResults(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderStatusLine("Stored results", statusInfo, fmt.Sprintf("%d", count), colorize))
				return nil
			})
		},
	}
}

func serviceKind(value string) statusKind {
	if value == "" {
		return statusError
	}
	return statusOK
}

func optionalKind(value string) statusKind {
	if value == "" {
		return statusInfo
	}
	return statusOK
}

func orDisabled(value string) string {
	if value == "" {
		return "disabled"
	}
	return value
}
