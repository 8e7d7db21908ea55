package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"animesync/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify configuration, credentials and upstream reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cmd.Context(), cfg)
			lines := renderSectionHeader("Preflight", colorize)
			lines = append(lines, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
			lines = append(lines, checkLines(results, colorize)...)
			for _, line := range lines {
				fmt.Fprintln(out, line)
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}
}
