package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"animesync/internal/logging"
	"animesync/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		runID  string
		level  string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the run log",
		Long: "Prints the most recent records of the JSON run log in the console layout.\n" +
			"Use --run with an ID from `animesync history` to replay a single run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			filter := logs.Filter{RunID: runID, MinLevel: level}

			records, offset, err := logs.Tail(path, lines, filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rec := range records {
				fmt.Fprintln(out, logs.Format(rec))
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 500*time.Millisecond, filter, func(rec logs.Record) error {
				_, err := fmt.Fprintln(out, logs.Format(rec))
				return err
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of records to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing records as they are written")
	cmd.Flags().StringVar(&runID, "run", "", "Only show records of this run ID")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level to show (debug, info, warn, error)")
	return cmd
}
