package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bettermarkers/internal/preflight"
	"bettermarkers/internal/recovery"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, tool and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			lines := renderSectionHeader("Configuration", colorize)
			configMsg := ctx.configFile
			if !ctx.configExists {
				configMsg += " (not found; defaults in use)"
			}
			lines = append(lines,
				renderStatusLine("Config file", statusInfo, configMsg, colorize),
				renderStatusLine("Recovery queue", statusInfo, cfg.Paths.QueuePath, colorize),
				renderStatusLine("Sweep lock", statusInfo, cfg.QueueLockPath(), colorize),
				renderStatusLine("Log directory", statusInfo, cfg.Paths.LogDir, colorize),
				renderStatusLine("Tool enabled", statusInfo, yesNo(cfg.Embed.ToolEnabled), colorize),
			)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(preflight.CheckSystemDeps(cfg), colorize)...)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Filesystem", colorize)...)
			lines = append(lines, preflightLines(preflight.RunAll(cfg), colorize)...)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Recovery", colorize)...)
			queue := recovery.NewQueue(cfg.Paths.QueuePath)
			if err := queue.Load(); err != nil {
				lines = append(lines, renderStatusLine("Pending jobs", statusError, err.Error(), colorize))
			} else if queue.Len() == 0 {
				lines = append(lines, renderStatusLine("Pending jobs", statusOK, "None", colorize))
			} else {
				lines = append(lines, renderStatusLine("Pending jobs", statusWarn,
					fmt.Sprintf("%d (run `bettermarkers queue recover`)", queue.Len()), colorize))
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}
