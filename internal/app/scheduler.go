package app

import (
	"context"
	"time"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/interfaces"
)

// startRecomputeScheduler drains the deferred cube recompute queue on a fixed
// interval. Bulk ledger writes enqueue scoped recompute tasks instead of
// maintaining the cube inline; this loop is the single consumer that resums
// the touched periods, so the interval is the staleness bound for bulk data.
func startRecomputeScheduler(ctx context.Context, cubeService interfaces.CubeService, logger *common.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", interval).Msg("Recompute scheduler: started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Recompute scheduler: stopped")
			return
		case <-ticker.C:
			drainRecomputes(ctx, cubeService, logger)
		}
	}
}

func drainRecomputes(ctx context.Context, cubeService interfaces.CubeService, logger *common.Logger) {
	start := time.Now()

	processed, err := cubeService.ProcessPending(ctx)
	if err != nil {
		logger.Warn().Err(err).Int("processed", processed).Msg("Recompute scheduler: drain failed, will retry next tick")
		return
	}
	if processed == 0 {
		return
	}

	logger.Info().
		Int("tasks", processed).
		Dur("elapsed", time.Since(start)).
		Msg("Recompute scheduler: drained pending tasks")
}
