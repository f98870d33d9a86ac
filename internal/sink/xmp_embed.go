package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"bettermarkers/internal/config"
	"bettermarkers/internal/embed"
	"bettermarkers/internal/logging"
	"bettermarkers/internal/recovery"
)

// XMPSinkName identifies the XMP embed sink in logs and errors.
const XMPSinkName = "premiere-xmp"

var (
	// ErrSweepInProgress is returned when this sink is already sweeping.
	ErrSweepInProgress = errors.New("recovery sweep already running")
	// ErrSweepLocked is returned when another process holds the queue lock.
	ErrSweepLocked = errors.New("recovery queue is locked by another process")
)

// Embedder is the part of embed.Engine the sink depends on.
type Embedder interface {
	EmbedFromSidecarWithRetry(ctx context.Context, mediaPath, sidecarPath string, policy embed.RetryPolicy) embed.Result
}

// Options configures an XMPEmbedSink.
type Options struct {
	Engine        Embedder
	QueuePath     string
	FinalizeRetry embed.RetryPolicy
	Logger        *slog.Logger
}

// SweepSummary counts the outcomes of one recovery sweep.
type SweepSummary struct {
	Total     int
	Recovered int
	Dropped   int
	Failed    int
	Skipped   int
	Elapsed   time.Duration
}

// XMPEmbedSink embeds the XMP sidecar into each finalized recording and
// queues failures for a later sweep.
type XMPEmbedSink struct {
	engine   Embedder
	finalize embed.RetryPolicy
	lock     *flock.Flock
	logger   *slog.Logger

	// embedMu serializes embed attempts across all files.
	embedMu sync.Mutex
	// queueMu guards the in-memory queue; Queue.Update adds the
	// cross-process write lock around each reload and save.
	queueMu sync.Mutex
	queue   *recovery.Queue

	running atomic.Bool
	stop    atomic.Bool
	wg      sync.WaitGroup
}

// NewXMPEmbedSink loads the recovery queue and returns the sink. A queue that
// fails to load is logged and treated as empty.
func NewXMPEmbedSink(opts Options) *XMPEmbedSink {
	s := &XMPEmbedSink{
		engine:   opts.Engine,
		finalize: opts.FinalizeRetry,
		lock:     flock.New(recovery.SweepLockPath(opts.QueuePath)),
		logger:   logging.NewComponentLogger(opts.Logger, XMPSinkName),
		queue:    recovery.NewQueue(opts.QueuePath),
	}
	if err := s.queue.Load(); err != nil {
		logging.WarnWithContext(s.logger, "failed to load recovery queue", "recovery_queue_load_failed",
			logging.String("path", opts.QueuePath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix or delete the queue file"),
			logging.String(logging.FieldImpact, "previously failed embeds will not be retried"),
		)
	}
	return s
}

// NewXMPEmbedSinkFromConfig wires the sink to an engine built from cfg.
func NewXMPEmbedSinkFromConfig(cfg *config.Config, logger *slog.Logger) *XMPEmbedSink {
	return NewXMPEmbedSink(Options{
		Engine:        embed.NewFromConfig(cfg, logger),
		QueuePath:     cfg.Paths.QueuePath,
		FinalizeRetry: embed.PolicyFromConfig(cfg.Embed.FinalizeRetry),
		Logger:        logger,
	})
}

func (s *XMPEmbedSink) Name() string {
	return XMPSinkName
}

// OnFinalize embeds the sidecar next to mediaPath using the finalize retry
// policy. Recordings that are not MP4/MOV, or have no sidecar, are skipped.
// On exhausted retries the job is queued and the embed error returned.
func (s *XMPEmbedSink) OnFinalize(ctx context.Context, mediaPath string) error {
	if !recovery.IsSupportedMedia(mediaPath) {
		return nil
	}
	sidecar := recovery.SidecarPathFor(mediaPath)
	if _, err := os.Stat(sidecar); err != nil {
		return nil
	}

	ctx = logging.WithCorrelationID(logging.WithMediaPath(ctx, mediaPath), uuid.NewString())
	logger := logging.WithContext(ctx, s.logger)
	begin := time.Now()

	result := s.embedLocked(ctx, mediaPath, sidecar, s.finalize)
	if result.OK {
		s.removeAndSave(logger, mediaPath)
		logger.Info("embedded XMP into recording", logging.Duration("elapsed", time.Since(begin)))
		return nil
	}

	logging.WarnWithContext(logger, "XMP embed retries exhausted", "xmp_embed_exhausted",
		logging.String("kind", result.Kind.String()),
		logging.String("reason", result.Err),
		logging.String(logging.FieldImpact, "markers remain in the sidecar only until recovery succeeds"),
		logging.String(logging.FieldErrorHint, "run `bettermarkers queue recover` once the file is free"),
	)
	s.upsertAndSave(logger, mediaPath, result.Err)
	return errors.New(result.Err)
}

// StartStartupRecovery runs a one-attempt-per-job sweep on a background
// goroutine. It returns false when a sweep is already running.
func (s *XMPEmbedSink) StartStartupRecovery(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("startup recovery already running; skipping duplicate start")
		return false
	}
	s.stop.Store(false)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		if _, err := s.sweep(ctx, embed.StartupRetryPolicy); err != nil {
			logging.WarnWithContext(s.logger, "startup recovery did not run", "startup_recovery_skipped",
				logging.Error(err),
				logging.String(logging.FieldImpact, "queued embeds wait for the next start"),
			)
		}
	}()
	return true
}

// StopStartupRecovery asks a background sweep to stop after the current job
// and waits for it. An in-flight embed attempt runs to completion.
func (s *XMPEmbedSink) StopStartupRecovery() {
	s.stop.Store(true)
	s.wg.Wait()
}

// RunStartupRecovery sweeps the queue synchronously with one attempt per job.
func (s *XMPEmbedSink) RunStartupRecovery(ctx context.Context) (SweepSummary, error) {
	return s.Recover(ctx, embed.StartupRetryPolicy)
}

// Recover sweeps the queue synchronously using policy for each job.
func (s *XMPEmbedSink) Recover(ctx context.Context, policy embed.RetryPolicy) (SweepSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return SweepSummary{}, ErrSweepInProgress
	}
	defer s.running.Store(false)
	s.stop.Store(false)
	return s.sweep(ctx, policy)
}

// Pending returns a snapshot of queued jobs.
func (s *XMPEmbedSink) Pending() []recovery.Job {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return s.queue.Jobs()
}

// Forget removes mediaPath from the queue file and reports whether it was
// queued.
func (s *XMPEmbedSink) Forget(mediaPath string) (bool, error) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	var removed bool
	err := s.queue.Update(func(q *recovery.Queue) bool {
		removed = q.Remove(mediaPath)
		return removed
	})
	return removed, err
}

func (s *XMPEmbedSink) sweep(ctx context.Context, policy embed.RetryPolicy) (SweepSummary, error) {
	var summary SweepSummary
	begin := time.Now()

	if err := os.MkdirAll(filepath.Dir(s.lock.Path()), 0o755); err != nil {
		return summary, fmt.Errorf("create queue directory: %w", err)
	}
	locked, err := s.lock.TryLock()
	if err != nil {
		return summary, fmt.Errorf("acquire queue lock: %w", err)
	}
	if !locked {
		return summary, ErrSweepLocked
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release queue lock", logging.Error(err))
		}
	}()

	ctx = logging.WithCorrelationID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, s.logger)

	s.reloadQueue(logger)
	jobs := s.Pending()
	summary.Total = len(jobs)
	logger.Info("recovery sweep begin",
		logging.Int("jobs", len(jobs)),
		logging.Int("max_attempts", max(policy.MaxAttempts, 1)),
	)

	for i, job := range jobs {
		if s.stop.Load() || ctx.Err() != nil {
			summary.Skipped = len(jobs) - i
			logger.Info("recovery sweep stopped early", logging.Int("skipped", summary.Skipped))
			break
		}

		jobBegin := time.Now()
		jobCtx := logging.WithMediaPath(ctx, job.MediaPath)
		jobLogger := logging.WithContext(jobCtx, s.logger)

		s.restoreBackup(jobLogger, job.MediaPath)
		decision := recovery.Decide(job.MediaPath)
		if decision.Action.Drops() {
			s.removeAndSave(jobLogger, job.MediaPath)
			summary.Dropped++
			jobLogger.Info("dropped stale recovery job", logging.Args(append(
				logging.DecisionAttrs("startup_recovery", decision.Action.String(), "job can no longer be embedded"),
				logging.Duration("elapsed", time.Since(jobBegin)),
			)...)...)
			continue
		}

		result := s.embedLocked(jobCtx, job.MediaPath, decision.SidecarPath, policy)
		if result.OK {
			s.removeAndSave(jobLogger, job.MediaPath)
			summary.Recovered++
			jobLogger.Info("recovery embed succeeded", logging.Duration("elapsed", time.Since(jobBegin)))
			continue
		}

		s.upsertAndSave(jobLogger, job.MediaPath, result.Err)
		summary.Failed++
		logging.WarnWithContext(jobLogger, "recovery embed failed", "recovery_embed_failed",
			logging.String("kind", result.Kind.String()),
			logging.String("reason", result.Err),
			logging.Int("previous_attempts", job.Attempts),
			logging.Duration("elapsed", time.Since(jobBegin)),
			logging.String(logging.FieldImpact, "job stays queued for the next sweep"),
		)
	}

	summary.Elapsed = time.Since(begin)
	logger.Info("recovery sweep complete",
		logging.Int("recovered", summary.Recovered),
		logging.Int("dropped", summary.Dropped),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

func (s *XMPEmbedSink) embedLocked(ctx context.Context, mediaPath, sidecar string, policy embed.RetryPolicy) embed.Result {
	s.embedMu.Lock()
	defer s.embedMu.Unlock()
	return s.engine.EmbedFromSidecarWithRetry(ctx, mediaPath, sidecar, policy)
}

// restoreBackup puts back a recording that an interrupted embed left only
// under its backup name, so Decide does not treat it as missing.
func (s *XMPEmbedSink) restoreBackup(logger *slog.Logger, mediaPath string) {
	restored, err := embed.RestoreInterrupted(mediaPath)
	if err != nil {
		logging.ErrorWithContext(logger, "failed to restore recording from embed backup", "recovery_restore_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job is dropped as missing media"),
			logging.String(logging.FieldErrorHint, "rename the .better-markers.bak file to the recording name and queue it again"),
		)
		return
	}
	if restored {
		logging.WarnWithContext(logger, "restored recording left by an interrupted embed", "recovery_backup_restored",
			logging.String("backup", mediaPath+embed.BackupSuffix),
			logging.String(logging.FieldImpact, "previous embed did not complete; retrying"),
		)
	}
}

func (s *XMPEmbedSink) reloadQueue(logger *slog.Logger) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if err := s.queue.Reload(); err != nil {
		logging.WarnWithContext(logger, "failed to reload recovery queue", "recovery_queue_load_failed",
			logging.String("path", s.queue.Path()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "sweep uses the jobs already in memory"),
		)
	}
}

func (s *XMPEmbedSink) removeAndSave(logger *slog.Logger, mediaPath string) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	err := s.queue.Update(func(q *recovery.Queue) bool {
		return q.Remove(mediaPath)
	})
	if err != nil {
		logging.WarnWithContext(logger, "failed to persist recovery queue after remove", "recovery_queue_save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "a finished job may be retried once more"),
		)
	}
}

func (s *XMPEmbedSink) upsertAndSave(logger *slog.Logger, mediaPath, lastError string) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	err := s.queue.Update(func(q *recovery.Queue) bool {
		q.Upsert(mediaPath, lastError)
		return true
	})
	if err != nil {
		logging.WarnWithContext(logger, "failed to persist recovery queue after upsert", "recovery_queue_save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "failed embed is lost if the process exits before the next save"),
		)
	}
}
