// Package notify records digest delivery outcomes per run and channel and redelivers
// the ones that failed.
package notify

import (
	"context"
	"errors"
	"finsync/src/metrics"
	"finsync/src/models"
	"fmt"

	"go.uber.org/zap"
)

const DefaultRetryLimit = 25

var (
	ErrInvalidStatus  = errors.New("invalid notification status")
	ErrMissingChannel = errors.New("notification channel is required")
)

type Store interface {
	Upsert(ctx context.Context, rec models.NotificationRecord) (int64, error)
	ListRetryable(ctx context.Context, channel string, limit int) ([]int64, error)
	Get(ctx context.Context, runID int64, channel string) (*models.NotificationRecord, error)
}

// Ledger keeps one outcome per (run, channel). A later record replaces the earlier one,
// so a failed delivery that later succeeds stops being a retry candidate.
type Ledger struct {
	store  Store
	logger *zap.Logger
}

func NewLedger(store Store, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

func (l *Ledger) Record(ctx context.Context, runID int64, channel string, status models.NotificationStatus, message, errText string) error {
	if channel == "" {
		return ErrMissingChannel
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	_, err := l.store.Upsert(ctx, models.NotificationRecord{
		RunID:   runID,
		Channel: channel,
		Status:  status,
		Message: message,
		Error:   errText,
	})
	if err != nil {
		return fmt.Errorf("record notification for run %d on %s: %w", runID, channel, err)
	}

	metrics.NotificationsTotal.WithLabelValues(channel, string(status)).Inc()
	l.logger.Info("notification recorded",
		zap.Int64("run_id", runID), zap.String("channel", channel), zap.String("status", string(status)))
	return nil
}

// ListRetryCandidates returns runs whose stored outcome on channel is failed, oldest
// run first. A non-positive limit means DefaultRetryLimit.
func (l *Ledger) ListRetryCandidates(ctx context.Context, channel string, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = DefaultRetryLimit
	}
	ids, err := l.store.ListRetryable(ctx, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("list retry candidates for %s: %w", channel, err)
	}
	return ids, nil
}

func (l *Ledger) Get(ctx context.Context, runID int64, channel string) (*models.NotificationRecord, error) {
	return l.store.Get(ctx, runID, channel)
}
