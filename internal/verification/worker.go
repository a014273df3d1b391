// Package verification runs the background sync that folds partner-side
// KYC and approval state into stored patient records. Records stop being
// polled the moment they become eligible, rejected, or flagged for resync;
// when nothing is pending a pass is a no-op, which is the idle state.
package verification

import (
	"context"
	"log/slog"
	"time"

	"greengate/internal/patient/models"
	"greengate/internal/platform/metrics"
)

// PatientSyncer is the slice of the patient service the worker drives.
type PatientSyncer interface {
	ListPending(ctx context.Context) ([]*models.Record, error)
	RefreshVerification(ctx context.Context, record *models.Record) error
}

// Worker periodically refreshes pending patient records. One fetch pass runs
// at a time: the next tick waits for the loop, so overlapping fetches for
// the same record cannot happen within a process.
type Worker struct {
	syncer   PatientSyncer
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New constructs a Worker. The interval is expected to vastly exceed fetch
// latency (minutes versus milliseconds).
func New(syncer PatientSyncer, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Worker {
	if interval <= 0 {
		interval = 3 * time.Minute
	}
	return &Worker{syncer: syncer, interval: interval, logger: logger, metrics: m}
}

// Run performs one immediate pass, then repeats at the fixed interval until
// the context is cancelled. The ticker is always released on return, so
// process teardown leaks no timers.
func (w *Worker) Run(ctx context.Context) error {
	w.pass(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.pass(ctx)
		}
	}
}

// pass refreshes every pending record once. Individual failures are logged
// and the stored record keeps its prior state; the next tick retries with
// no backoff escalation.
func (w *Worker) pass(ctx context.Context) {
	records, err := w.syncer.ListPending(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "verification sync could not list pending records", "error", err)
		if w.metrics != nil {
			w.metrics.SyncFailures.Inc()
		}
		return
	}
	if len(records) == 0 {
		return
	}

	w.logger.DebugContext(ctx, "verification sync pass", "pending", len(records))
	for _, record := range records {
		if ctx.Err() != nil {
			return
		}
		if err := w.syncer.RefreshVerification(ctx, record); err != nil {
			w.logger.WarnContext(ctx, "verification refresh failed, keeping prior state",
				"partner_client_id", record.PartnerClientID,
				"error", err,
			)
			if w.metrics != nil {
				w.metrics.SyncFailures.Inc()
			}
		}
	}
	if w.metrics != nil {
		w.metrics.SyncPasses.Inc()
	}
}
