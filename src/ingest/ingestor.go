package ingest

import (
	"context"
	"errors"
	"finsync/src/metrics"
	"finsync/src/models"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var ErrUnknownRunType = errors.New("unknown run type")

// Ingestor drives one ingestion pass: balances for every balances-enabled item, then
// transactions for every transactions-enabled item, one item at a time.
type Ingestor struct {
	runs         *RunTracker
	items        *ItemDirectory
	balances     *BalanceIngestor
	transactions *TransactionSyncEngine
	env          string
	logger       *zap.Logger
}

func NewIngestor(runs *RunTracker, items *ItemDirectory, balances *BalanceIngestor, transactions *TransactionSyncEngine, env string, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		runs:         runs,
		items:        items,
		balances:     balances,
		transactions: transactions,
		env:          env,
		logger:       logger,
	}
}

// Run executes a pass of the given type and always finalizes the run it opened: an
// error or panic during ingestion leaves the run failed with the error text.
func (in *Ingestor) Run(ctx context.Context, runType string) (runID int64, err error) {
	if runType != models.RunTypeDailySync && runType != models.RunTypeBalances {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRunType, runType)
	}

	runID, err = in.runs.Start(ctx, runType, in.env)
	if err != nil {
		return 0, err
	}
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			_ = in.finish(ctx, runID, runType, started, fmt.Errorf("panic: %v", r))
			panic(r)
		}
		if finishErr := in.finish(ctx, runID, runType, started, err); finishErr != nil {
			err = errors.Join(err, finishErr)
		}
	}()

	err = in.ingest(ctx, runID, runType)
	return runID, err
}

func (in *Ingestor) ingest(ctx context.Context, runID int64, runType string) error {
	items, err := in.items.ListForBalances(ctx)
	if err != nil {
		return fmt.Errorf("list items for balances: %w", err)
	}
	for _, item := range items {
		if _, err := in.balances.IngestItem(ctx, runID, item); err != nil {
			return fmt.Errorf("balances for item %d (%s): %w", item.ID, item.Label, err)
		}
	}

	if runType != models.RunTypeDailySync {
		return nil
	}

	items, err = in.items.ListForTransactions(ctx)
	if err != nil {
		return fmt.Errorf("list items for transactions: %w", err)
	}
	for _, item := range items {
		if _, err := in.transactions.SyncItem(ctx, runID, item); err != nil {
			return fmt.Errorf("transactions for item %d (%s): %w", item.ID, item.Label, err)
		}
	}

	return nil
}

func (in *Ingestor) finish(ctx context.Context, runID int64, runType string, started time.Time, runErr error) error {
	status, errText := models.RunStatusSuccess, ""
	if runErr != nil {
		status, errText = models.RunStatusFailed, runErr.Error()
	}

	metrics.RunsTotal.WithLabelValues(runType, string(status)).Inc()
	metrics.RunDuration.WithLabelValues(runType).Observe(time.Since(started).Seconds())

	// The run's own context may be the reason it failed.
	return in.runs.Finish(context.WithoutCancel(ctx), runID, status, errText)
}
