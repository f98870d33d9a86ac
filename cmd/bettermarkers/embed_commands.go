package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bettermarkers/internal/atom"
	"bettermarkers/internal/embed"
	"bettermarkers/internal/recovery"
	"bettermarkers/internal/sink"
)

func newEmbedCommand(ctx *commandContext) *cobra.Command {
	var sidecarFlag string
	var noRetry bool

	cmd := &cobra.Command{
		Use:   "embed <media>",
		Short: "Embed the XMP sidecar into a finished recording",
		Long: `Embed runs the finalize hook for one recording: the sidecar next to the
media (same name, .xmp extension) is written into the file, retrying while the
file settles. Failures are queued for the next recovery sweep.

With --sidecar an explicit sidecar is embedded directly and failures are not
queued.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaPath, err := absPath(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var policy *embed.RetryPolicy
			if noRetry {
				single := embed.StartupRetryPolicy
				policy = &single
			}

			if sidecar := strings.TrimSpace(sidecarFlag); sidecar != "" {
				return embedExplicitSidecar(cmd, ctx, mediaPath, sidecar, policy)
			}

			if !recovery.IsSupportedMedia(mediaPath) {
				fmt.Fprintf(out, "Skipped %s: only .mp4 and .mov recordings are embedded\n", mediaPath)
				return nil
			}
			sidecar := recovery.SidecarPathFor(mediaPath)
			if _, err := os.Stat(sidecar); err != nil {
				fmt.Fprintf(out, "Skipped %s: no sidecar at %s\n", mediaPath, sidecar)
				return nil
			}

			s, err := ctx.newSink(policy)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if err := sink.NewDispatcher(logger, s).Finalize(cmd.Context(), mediaPath); err != nil {
				return fmt.Errorf("embed %s: %w (queued for recovery)", mediaPath, err)
			}
			fmt.Fprintf(out, "Embedded %s into %s\n", sidecar, mediaPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&sidecarFlag, "sidecar", "", "Explicit XMP sidecar path (not queued on failure)")
	cmd.Flags().BoolVar(&noRetry, "no-retry", false, "Make a single attempt instead of the finalize retry preset")
	return cmd
}

func embedExplicitSidecar(cmd *cobra.Command, ctx *commandContext, mediaPath, sidecar string, policy *embed.RetryPolicy) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	sidecar, err = absPath(sidecar)
	if err != nil {
		return err
	}
	p := embed.PolicyFromConfig(cfg.Embed.FinalizeRetry)
	if policy != nil {
		p = *policy
	}
	result := embed.NewFromConfig(cfg, logger).EmbedFromSidecarWithRetry(cmd.Context(), mediaPath, sidecar, p)
	if !result.OK {
		return fmt.Errorf("embed %s: %s", mediaPath, result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Embedded %s into %s\n", sidecar, mediaPath)
	return nil
}

func newDetectCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "detect <media>",
		Short:       "Report whether a recording carries embedded XMP",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaPath, err := absPath(args[0])
			if err != nil {
				return err
			}
			shape, err := atom.Detect(mediaPath)
			if err != nil {
				return fmt.Errorf("detect %s: %w", mediaPath, err)
			}
			out := cmd.OutOrStdout()
			if shape == atom.ShapeNone {
				fmt.Fprintf(out, "%s: no XMP found\n", mediaPath)
				return nil
			}
			fmt.Fprintf(out, "%s: XMP present (%s)\n", mediaPath, shape)
			return nil
		},
	}
}

func newAtomsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "atoms <media>",
		Short:       "List the top-level atoms of an MP4/MOV file",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaPath, err := absPath(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(mediaPath)
			if err != nil {
				return fmt.Errorf("open %s: %w", mediaPath, err)
			}
			defer f.Close()

			atoms, err := atom.ParseFile(f)
			if err != nil {
				var perr *atom.ParseError
				if errors.As(err, &perr) {
					return fmt.Errorf("%s is not a well-formed MP4/MOV: %w", mediaPath, err)
				}
				return err
			}
			xmpIdx, err := atom.FindXMPUUID(f, atoms)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(atoms))
			for i, a := range atoms {
				note := ""
				switch {
				case i == xmpIdx:
					note = "XMP"
				case a.Type == atom.TypeXMP:
					note = "XMP (legacy)"
				case a.HeaderSize > 8:
					note = "64-bit size"
				}
				rows = append(rows, []string{
					a.Type,
					strconv.FormatUint(a.Offset, 10),
					strconv.FormatUint(a.Size, 10),
					strconv.Itoa(int(a.HeaderSize)),
					note,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Type", "Offset", "Size", "Header", "Note"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}
