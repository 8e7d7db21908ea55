package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"animesync/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, historyJSON(runs))
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Status", "Entries", "Failures", "Duration"},
				historyRows(runs),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its contained failures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.Get(cmd.Context(), args[0])
			if errors.Is(err, history.ErrRunNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, toRunJSON(*run, true))
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := renderSectionHeader("Run "+run.ID, colorize)
			lines = append(lines,
				renderStatusLine("Status", runStatusKind(run.Status), string(run.Status), colorize),
				renderStatusLine("Started", statusInfo, formatTimestamp(run.StartedAt), colorize),
				renderStatusLine("Duration", statusInfo, run.Duration().Round(time.Millisecond).String(), colorize),
				renderStatusLine("Entries", statusInfo, strconv.Itoa(run.Entries), colorize),
			)
			if run.SHA != "" {
				lines = append(lines, renderStatusLine("Version", statusInfo, run.SHA, colorize))
			}
			if run.Message != "" {
				lines = append(lines, renderStatusLine("Message", statusInfo, run.Message, colorize))
			}
			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			if len(run.Failures) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			rows := make([][]string, 0, len(run.Failures))
			for _, failure := range run.Failures {
				item := failure.Item
				if item == "" {
					item = "-"
				}
				rows = append(rows, []string{string(failure.Scope), failure.Provider, item, failure.Reason})
			}
			fmt.Fprintln(out, renderTable([]string{"Scope", "Provider", "Item", "Reason"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run as JSON")
	return cmd
}

func runStatusKind(status history.Status) statusKind {
	switch status {
	case history.StatusPublished:
		return statusOK
	case history.StatusNothingToUpdate, history.StatusDryRun:
		return statusInfo
	default:
		return statusError
	}
}

func historyRows(runs []history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			formatTimestamp(run.StartedAt),
			string(run.Status),
			strconv.Itoa(run.Entries),
			fmt.Sprintf("%d/%d", run.ProviderFailures, run.ItemFailures),
			run.Duration().Round(time.Millisecond).String(),
		})
	}
	return rows
}

func formatTimestamp(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.Local().Format("2006-01-02 15:04:05")
}

type failureJSON struct {
	Scope    string `json:"scope"`
	Provider string `json:"provider"`
	Item     string `json:"item,omitempty"`
	Reason   string `json:"reason"`
}

type runJSON struct {
	ID               string        `json:"id"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
	Status           string        `json:"status"`
	Entries          int           `json:"entries"`
	ProviderFailures int           `json:"provider_failures"`
	ItemFailures     int           `json:"item_failures"`
	SHA              string        `json:"sha,omitempty"`
	Message          string        `json:"message,omitempty"`
	Failures         []failureJSON `json:"failures,omitempty"`
}

func toRunJSON(run history.Run, withFailures bool) runJSON {
	out := runJSON{
		ID:               run.ID,
		StartedAt:        run.StartedAt,
		FinishedAt:       run.FinishedAt,
		Status:           string(run.Status),
		Entries:          run.Entries,
		ProviderFailures: run.ProviderFailures,
		ItemFailures:     run.ItemFailures,
		SHA:              run.SHA,
		Message:          run.Message,
	}
	if withFailures {
		for _, failure := range run.Failures {
			out.Failures = append(out.Failures, failureJSON{
				Scope:    string(failure.Scope),
				Provider: failure.Provider,
				Item:     failure.Item,
				Reason:   failure.Reason,
			})
		}
	}
	return out
}

func historyJSON(runs []history.Run) []runJSON {
	out := make([]runJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunJSON(run, false))
	}
	return out
}
