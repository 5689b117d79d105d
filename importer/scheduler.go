package importer

import (
	"context"
	"log/slog"
	"time"

	"github.com/l3montree-dev/trustgraph/monitoring"
	"github.com/pkg/errors"
)

// RunDue runs every importer whose period elapsed, one after another, and
// returns how many were started. Importers left running by a dead process
// are released first.
func (s *Service) RunDue(ctx context.Context) (int, error) {
	now := s.now()
	reset, err := s.repository.ResetStale(ctx, now.Add(-s.staleAfter))
	if err != nil {
		return 0, err
	}
	if reset > 0 {
		slog.Warn("released stale importer runs", "count", reset)
	}

	importers, err := s.repository.List(ctx)
	if err != nil {
		return 0, err
	}
	started := 0
	for _, importer := range importers {
		if err := ctx.Err(); err != nil {
			return started, err
		}
		if !importer.Due(now) {
			continue
		}
		started++
		if _, err := s.Run(ctx, importer.Name); err != nil {
			if errors.Is(err, ErrAlreadyRunning) {
				slog.Info("importer picked up elsewhere", "importer", importer.Name)
				continue
			}
			if errors.Is(err, context.Canceled) {
				return started, err
			}
			// the failure is recorded in the report, the other importers still run
			slog.Error("importer run failed", "importer", importer.Name, "err", err)
		}
	}
	return started, nil
}

// Daemon checks for due importers every tick until ctx is done.
func (s *Service) Daemon(ctx context.Context, tick time.Duration) error {
	slog.Info("importer daemon started", "tick", tick)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		start := time.Now()
		started, err := s.RunDue(ctx)
		if err != nil && ctx.Err() == nil {
			monitoring.Alert("could not run due importers", err)
		}
		if started > 0 {
			slog.Info("importer round finished", "started", started, "duration", time.Since(start))
		}

		select {
		case <-ctx.Done():
			slog.Info("importer daemon stopped")
			return nil
		case <-ticker.C:
		}
	}
}
