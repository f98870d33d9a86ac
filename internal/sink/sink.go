package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bettermarkers/internal/logging"
)

// ExportSink receives recording lifecycle events.
type ExportSink interface {
	Name() string
	// OnFinalize is called once after the recording at mediaPath is closed.
	OnFinalize(ctx context.Context, mediaPath string) error
}

// Dispatcher fans finalize events out to every registered sink. A failing
// sink does not prevent later sinks from running.
type Dispatcher struct {
	sinks  []ExportSink
	logger *slog.Logger
}

// NewDispatcher returns a dispatcher over sinks in registration order.
func NewDispatcher(logger *slog.Logger, sinks ...ExportSink) *Dispatcher {
	return &Dispatcher{
		sinks:  sinks,
		logger: logging.NewComponentLogger(logger, "sink"),
	}
}

// Sinks returns the registered sinks.
func (d *Dispatcher) Sinks() []ExportSink {
	return append([]ExportSink(nil), d.sinks...)
}

// Finalize delivers the finalize event and joins any sink errors.
func (d *Dispatcher) Finalize(ctx context.Context, mediaPath string) error {
	logger := logging.WithContext(logging.WithMediaPath(ctx, mediaPath), d.logger)
	var errs []error
	for _, s := range d.sinks {
		if err := s.OnFinalize(ctx, mediaPath); err != nil {
			logging.WarnWithContext(logger, "export sink failed on finalize", "sink_finalize_failed",
				logging.String("sink", s.Name()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "export for this recording is incomplete"),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
