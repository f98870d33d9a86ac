package embed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"bettermarkers/internal/deps"
)

var commandContext = exec.CommandContext

var errToolUnavailable = errors.New("metadata tool unavailable")

// toolArgs builds `-overwrite_original -XMP<=<sidecar> <media>`.
func toolArgs(mediaPath, sidecarPath string) []string {
	return []string{"-overwrite_original", "-XMP<=" + sidecarPath, mediaPath}
}

// runTool invokes the external metadata editor. Start and finish are bounded
// separately; a process that starts late is killed and reaped.
func (e *Engine) runTool(ctx context.Context, mediaPath, sidecarPath string) error {
	binary, err := deps.Resolve(e.tool.Command)
	if err != nil {
		return fmt.Errorf("%w: %v", errToolUnavailable, err)
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.tool.FinishTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.tool.FinishTimeout)
	}
	defer cancel()

	cmd := commandContext(runCtx, binary, toolArgs(mediaPath, sidecarPath)...) //nolint:gosec
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = time.Second

	started := make(chan error, 1)
	go func() { started <- cmd.Start() }()

	var startTimeout <-chan time.Time
	if e.tool.StartTimeout > 0 {
		timer := time.NewTimer(e.tool.StartTimeout)
		defer timer.Stop()
		startTimeout = timer.C
	}

	select {
	case err := <-started:
		if err != nil {
			return fmt.Errorf("start %s: %w", e.tool.Command, err)
		}
	case <-startTimeout:
		cancel()
		if err := <-started; err == nil {
			_ = cmd.Wait()
		}
		return fmt.Errorf("%s did not start within %s", e.tool.Command, e.tool.StartTimeout)
	}

	if err := cmd.Wait(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s did not finish within %s", e.tool.Command, e.tool.FinishTimeout)
		}
		return fmt.Errorf("%s: %w: %s", e.tool.Command, err, strings.TrimSpace(output.String()))
	}
	return nil
}
