package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"bettermarkers/internal/logging"
	"bettermarkers/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var correlationID string
	var media string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the bettermarkers log",
		Long: `Logs prints the tail of the bettermarkers log file. Use --correlation to
isolate one finalize or recovery sweep, and --media to isolate one recording.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)

			var filter logs.Filter
			if id := strings.TrimSpace(correlationID); id != "" {
				filter = append(filter, id)
			}
			if m := strings.TrimSpace(media); m != "" {
				abs, err := absPath(m)
				if err != nil {
					return err
				}
				filter = append(filter, abs)
			}

			tail, offset, err := logs.Last(path, lines, filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, logs.DefaultPollInterval, filter, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are written")
	cmd.Flags().StringVar(&correlationID, "correlation", "", "Only show lines carrying this correlation id")
	cmd.Flags().StringVar(&media, "media", "", "Only show lines about this recording")
	return cmd
}
