package ingest

import (
	"context"
	"errors"
	"finsync/src/models"
	"fmt"

	"go.uber.org/zap"
)

var ErrRunNotRunning = errors.New("run is not running")

// RunTracker records the lifecycle of ingestion passes. A run that crashes with the
// process stays "running"; nothing here reconciles such rows.
type RunTracker struct {
	store  RunStore
	logger *zap.Logger
}

func NewRunTracker(store RunStore, logger *zap.Logger) *RunTracker {
	return &RunTracker{store: store, logger: logger}
}

func (t *RunTracker) Start(ctx context.Context, runType, env string) (int64, error) {
	id, err := t.store.Create(ctx, runType, env)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	t.logger.Info("run started", zap.Int64("run_id", id), zap.String("run_type", runType), zap.String("env", env))
	return id, nil
}

// Finish moves the run to success or failed. A run that is already terminal is left
// untouched and ErrRunNotRunning is returned.
func (t *RunTracker) Finish(ctx context.Context, runID int64, status models.RunStatus, errText string) error {
	if !status.Terminal() {
		return fmt.Errorf("finish run %d: %q is not a terminal status", runID, status)
	}
	ok, err := t.store.Finish(ctx, runID, status, errText)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	if !ok {
		return fmt.Errorf("finish run %d: %w", runID, ErrRunNotRunning)
	}

	fields := []zap.Field{zap.Int64("run_id", runID), zap.String("status", string(status))}
	if errText != "" {
		t.logger.Error("run finished", append(fields, zap.String("error", errText))...)
	} else {
		t.logger.Info("run finished", fields...)
	}
	return nil
}

func (t *RunTracker) Get(ctx context.Context, runID int64) (*models.Run, error) {
	return t.store.Get(ctx, runID)
}
