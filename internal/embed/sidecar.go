package embed

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"bettermarkers/internal/atom"
	"bettermarkers/internal/logging"
)

// EmbedFromSidecar reads the XMP sidecar and embeds it into mediaPath. The
// external tool is tried first when enabled; its failure falls back to the
// built-in patcher with the payload already read.
func (e *Engine) EmbedFromSidecar(ctx context.Context, mediaPath, sidecarPath string) Result {
	logger := logging.WithContext(ctx, e.logger)

	payload, err := os.ReadFile(sidecarPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return failure(KindMissingInput, "missing sidecar: %s", sidecarPath)
		}
		return failure(KindIO, "failed to open sidecar %s: %v", sidecarPath, err)
	}
	if len(payload) == 0 {
		return failure(KindMissingInput, "sidecar is empty: %s", sidecarPath)
	}

	if res := e.restoreInterrupted(logger, mediaPath); !res.OK {
		return res
	}
	if _, err := os.Stat(mediaPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return failure(KindMissingInput, "recording file not found: %s", mediaPath)
		}
		return failure(KindIO, "stat recording file %s: %v", mediaPath, err)
	}

	if e.tool.Enabled {
		err := e.runTool(ctx, mediaPath, sidecarPath)
		if err == nil {
			found, detectErr := atom.HasXMP(mediaPath)
			if detectErr != nil {
				return failure(KindValidationFailed, "%s reported success but detection failed: %v", e.tool.Command, detectErr)
			}
			if !found {
				return failure(KindValidationFailed, "%s reported success but XMP was not found in %s", e.tool.Command, mediaPath)
			}
			logger.Debug("xmp embedded by external tool", logging.String("tool", e.tool.Command))
			return success()
		}

		toolResult := failure(KindTool, "%v", err)
		if errors.Is(err, errToolUnavailable) {
			logger.Debug("metadata tool unavailable; using built-in patcher", logging.String("reason", toolResult.Err))
		} else {
			logging.WarnWithContext(logger, "metadata tool failed; using built-in patcher", "embed_tool_fallback",
				logging.String("tool", e.tool.Command),
				logging.String("reason", toolResult.Err),
				logging.String(logging.FieldImpact, "xmp written by built-in patcher instead"),
				logging.String(logging.FieldErrorHint, "run the tool manually against the recording to see its output"),
			)
		}
	}

	return e.EmbedXMP(ctx, mediaPath, payload)
}
