package embed

import (
	"context"
	"time"

	"bettermarkers/internal/config"
	"bettermarkers/internal/logging"
)

// RetryPolicy bounds EmbedFromSidecarWithRetry. MaxAttempts below 1 means a
// single attempt.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

var (
	// FinalizeRetryPolicy is used right after a recording closes.
	FinalizeRetryPolicy = PolicyFromConfig(config.DefaultFinalizeRetry)
	// RecoveryRetryPolicy is used by manually triggered recovery sweeps.
	RecoveryRetryPolicy = PolicyFromConfig(config.DefaultRecoveryRetry)
	// StartupRetryPolicy makes exactly one attempt.
	StartupRetryPolicy = RetryPolicy{MaxAttempts: 1}
)

// PolicyFromConfig converts a config retry section.
func PolicyFromConfig(r config.Retry) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialDelay(),
		MaxDelay:     r.MaxDelay(),
	}
}

// EmbedFromSidecarWithRetry repeats EmbedFromSidecar while it fails
// retryably, doubling the delay between attempts up to policy.MaxDelay.
// Sleeps block and are not interrupted by ctx.
func (e *Engine) EmbedFromSidecarWithRetry(ctx context.Context, mediaPath, sidecarPath string, policy RetryPolicy) Result {
	return e.retry(ctx, policy, func() Result {
		return e.EmbedFromSidecar(ctx, mediaPath, sidecarPath)
	})
}

func (e *Engine) retry(ctx context.Context, policy RetryPolicy, attempt func() Result) Result {
	logger := logging.WithContext(ctx, e.logger)
	maxAttempts := max(policy.MaxAttempts, 1)
	delay := policy.InitialDelay

	for n := 1; ; n++ {
		result := attempt()
		if result.OK {
			if n > 1 {
				logger.Info("xmp embed succeeded after retry", logging.Int(logging.FieldAttempt, n))
			}
			return result
		}
		if !result.Retryable || n >= maxAttempts {
			logger.Debug("xmp embed giving up",
				logging.Int(logging.FieldAttempt, n),
				logging.String("kind", result.Kind.String()),
				logging.Bool("retryable", result.Retryable),
			)
			return result
		}
		logger.Debug("xmp embed attempt failed; backing off",
			logging.Int(logging.FieldAttempt, n),
			logging.Duration("delay", delay),
			logging.String("reason", result.Err),
		)
		e.sleep(delay)
		delay = min(delay*2, policy.MaxDelay)
	}
}
