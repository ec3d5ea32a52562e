package trial

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/ports"
)

// CureOptions tune one Cure pass.
type CureOptions struct {
	// Tags restricts the pass to trials carrying all of them.
	Tags []string

	// Threshold is the heartbeat age beyond which a running or reserved
	// trial is presumed dead.
	Threshold time.Duration

	// DryRun reports the candidates without changing anything.
	DryRun bool
}

// Cure sweeps the reports for running or reserved trials whose heartbeat
// went stale and marks them failover, making them reservable again. It
// returns the IDs of the trials it cured (or would cure, on a dry run).
// A trial whose owner comes back mid-sweep loses nothing: the CAS simply
// fails and the trial is skipped.
func Cure(ctx context.Context, store ports.Store, log *slog.Logger, opts CureOptions) ([]string, error) {
	reports, err := store.ListReports(ctx, opts.Tags)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(-opts.Threshold)
	var cured []string
	for _, report := range reports {
		status := report.Registry.Status
		if status != domain.StatusRunning && status != domain.StatusReserved {
			continue
		}
		heartbeat := report.Registry.Heartbeat
		if heartbeat.IsZero() {
			heartbeat = report.Registry.StartTime
		}
		if heartbeat.IsZero() || heartbeat.After(deadline) {
			continue
		}

		if opts.DryRun {
			cured = append(cured, report.ID)
			continue
		}

		h, err := Load(ctx, store, report.ID)
		if err != nil {
			return cured, err
		}
		// A stale running trial failed over; a stale reservation never
		// ran, so it is switched over instead.
		revive := h.Failover
		if status == domain.StatusReserved {
			revive = h.Switchover
		}
		if err := revive(ctx); err != nil {
			if errors.Is(err, domain.ErrRaceCondition) || errors.Is(err, domain.ErrInvalidTransition) {
				log.Debug("trial changed status mid-sweep, skipping",
					"trial", domain.ShortID(report.ID))
				continue
			}
			return cured, err
		}
		log.Info("cured stale trial",
			"trial", domain.ShortID(report.ID),
			"heartbeat_age", time.Since(heartbeat).Round(time.Second).String())
		cured = append(cured, report.ID)
	}
	return cured, nil
}
