package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"animesync/internal/history"
	"animesync/internal/logging"
	"animesync/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Aggregate every provider and publish the catalog",
		Long: "Lists every configured provider, looks each folder up in the metadata\n" +
			"service and replaces the published document in a single conditional write.\n" +
			"Progress is printed as it happens and sent to ntfy when configured.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			store, err := history.Open(cfg)
			if err != nil {
				logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "this run will not appear in animesync history"),
				)
				store = nil
			} else {
				defer store.Close()
			}

			out := cmd.OutOrStdout()
			runner, err := workflow.NewFromConfig(cfg, store, out, logger)
			if err != nil {
				return err
			}

			outcome, runErr := runner.Run(cmd.Context(), workflow.Options{DryRun: dryRun})
			if outcome != nil && outcome.Status != "" {
				printRunSummary(out, outcome, shouldColorize(out))
			}
			if runErr != nil {
				return runErr
			}
			if dryRun && len(outcome.Document) > 0 {
				_, err := out.Write(outcome.Document)
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Assemble and print the document without publishing it")
	return cmd
}

func printRunSummary(out io.Writer, outcome *workflow.Outcome, colorize bool) {
	lines := renderSectionHeader("Run "+outcome.RunID, colorize)
	kind := statusOK
	switch outcome.Status {
	case history.StatusNothingToUpdate, history.StatusDryRun:
		kind = statusInfo
	case history.StatusPublished:
	default:
		kind = statusError
	}
	lines = append(lines, renderStatusLine("Status", kind, string(outcome.Status), colorize))
	if outcome.Assembly != nil {
		lines = append(lines,
			renderStatusLine("Entries", statusInfo, fmt.Sprintf("%d", len(outcome.Assembly.Entries)), colorize),
			renderStatusLine("Unmatched", statusInfo, fmt.Sprintf("%d", outcome.Assembly.Unmatched), colorize),
		)
		failureKind := statusOK
		if len(outcome.Assembly.ProviderFailures)+len(outcome.Assembly.ItemFailures) > 0 {
			failureKind = statusWarn
		}
		lines = append(lines, renderStatusLine("Failures", failureKind,
			fmt.Sprintf("%d provider(s), %d item(s)", len(outcome.Assembly.ProviderFailures), len(outcome.Assembly.ItemFailures)), colorize))
	}
	if outcome.Publish != nil {
		lines = append(lines, renderStatusLine("Version", statusInfo, fmt.Sprintf("%s -> %s", shortSHA(outcome.Publish.PreviousSHA), shortSHA(outcome.Publish.SHA)), colorize))
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	if sha == "" {
		return "-"
	}
	return sha
}
