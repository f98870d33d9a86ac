package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"bettermarkers/internal/embed"
	"bettermarkers/internal/recovery"
	"bettermarkers/internal/sink"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the recovery queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueRecoverCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recordings waiting for an embed retry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			queue := recovery.NewQueue(cfg.Paths.QueuePath)
			if err := queue.Load(); err != nil {
				return fmt.Errorf("load recovery queue: %w", err)
			}

			out := cmd.OutOrStdout()
			jobs := queue.Jobs()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "Recovery queue is empty")
				return nil
			}

			now := time.Now()
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				decision := recovery.Decide(job.MediaPath)
				rows = append(rows, []string{
					job.MediaPath,
					strconv.Itoa(job.Attempts),
					formatLastAttempt(job, now),
					truncate(job.LastError, 60),
					actionLabel(decision.Action),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Media", "Attempts", "Last Attempt", "Last Error", "Next Start"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <media>",
		Short: "Drop a recording from the recovery queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaPath, err := absPath(args[0])
			if err != nil {
				return err
			}
			s, err := ctx.newSink(nil)
			if err != nil {
				return err
			}
			removed, err := s.Forget(mediaPath)
			if err != nil {
				return fmt.Errorf("save recovery queue: %w", err)
			}
			out := cmd.OutOrStdout()
			if !removed {
				fmt.Fprintf(out, "%s is not queued\n", mediaPath)
				return nil
			}
			fmt.Fprintf(out, "Removed %s from the recovery queue\n", mediaPath)
			return nil
		},
	}
}

func newQueueRecoverCommand(ctx *commandContext) *cobra.Command {
	var manual bool

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Sweep the recovery queue",
		Long: `Recover performs the startup sweep: one embed attempt per queued
recording, dropping jobs whose media or sidecar no longer exists. With
--manual each job gets the configured recovery retry preset instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			s, err := ctx.newSink(nil)
			if err != nil {
				return err
			}

			var summary sink.SweepSummary
			if manual {
				summary, err = s.Recover(cmd.Context(), embed.PolicyFromConfig(cfg.Embed.RecoveryRetry))
			} else {
				summary, err = s.RunStartupRecovery(cmd.Context())
			}
			if errors.Is(err, sink.ErrSweepLocked) {
				return fmt.Errorf("%w; another bettermarkers process is sweeping %s", err, cfg.Paths.QueuePath)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Swept %d job(s): %d recovered, %d dropped, %d failed, %d skipped (%s)\n",
				summary.Total, summary.Recovered, summary.Dropped, summary.Failed, summary.Skipped,
				summary.Elapsed.Round(time.Millisecond),
			)
			if summary.Failed > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Failed jobs stay queued; see `bettermarkers queue list`")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&manual, "manual", false, "Use the recovery retry preset instead of a single attempt per job")
	return cmd
}
