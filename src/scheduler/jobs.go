package scheduler

import (
	"context"
	"finsync/src/models"

	"go.uber.org/zap"
)

type Ingestor interface {
	Run(ctx context.Context, runType string) (int64, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, runID int64, channel string) error
	RetryFailed(ctx context.Context, channel string, limit int, skip ...int64) (int, error)
}

// DailyJob runs a daily sync, delivers its digest, then redelivers digests that failed
// on earlier runs. A failed run still gets a digest so the failure is reported; if that
// delivery fails it waits for the next tick instead of being resent straight away.
func DailyJob(ingestor Ingestor, deliverer Deliverer, channel string, retryLimit int, logger *zap.Logger) func(context.Context) {
	return func(ctx context.Context) {
		runID, err := ingestor.Run(ctx, models.RunTypeDailySync)
		if err != nil {
			logger.Error("daily sync failed", zap.Int64("run_id", runID), zap.Error(err))
		}
		if runID == 0 {
			return
		}

		if err := deliverer.Deliver(ctx, runID, channel); err != nil {
			logger.Error("digest delivery failed", zap.Int64("run_id", runID), zap.Error(err))
		}

		if _, err := deliverer.RetryFailed(ctx, channel, retryLimit, runID); err != nil {
			logger.Warn("digest retries incomplete", zap.Error(err))
		}
	}
}
