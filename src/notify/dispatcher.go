package notify

import (
	"context"
	"errors"
	"finsync/src/models"
	"finsync/src/report"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

var ErrUnknownChannel = errors.New("unknown notification channel")

// Transport sends a run summary and returns a short description of what was sent.
type Transport interface {
	Send(ctx context.Context, summary *report.Summary) (string, error)
}

type SummarySource interface {
	Summary(ctx context.Context, runID int64) (*report.Summary, error)
}

type Dispatcher struct {
	ledger     *Ledger
	summaries  SummarySource
	transports map[string]Transport
	enabled    bool
	logger     *zap.Logger
}

func NewDispatcher(ledger *Ledger, summaries SummarySource, enabled bool, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		ledger:     ledger,
		summaries:  summaries,
		transports: make(map[string]Transport),
		enabled:    enabled,
		logger:     logger,
	}
}

func (d *Dispatcher) Register(channel string, t Transport) {
	d.transports[channel] = t
}

// Deliver sends the digest for runID on channel and records the outcome. A failed
// send is recorded before its error is returned.
func (d *Dispatcher) Deliver(ctx context.Context, runID int64, channel string) error {
	transport, ok := d.transports[channel]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}

	if !d.enabled {
		return d.ledger.Record(ctx, runID, channel, models.NotificationSkipped, "notifications disabled", "")
	}

	message, err := d.send(ctx, runID, transport)
	if err != nil {
		d.logger.Error("delivery failed", zap.Int64("run_id", runID), zap.String("channel", channel), zap.Error(err))
		sendErr := fmt.Errorf("deliver run %d via %s: %w", runID, channel, err)
		if recErr := d.ledger.Record(ctx, runID, channel, models.NotificationFailed, "", err.Error()); recErr != nil {
			return errors.Join(sendErr, recErr)
		}
		return sendErr
	}

	return d.ledger.Record(ctx, runID, channel, models.NotificationSuccess, message, "")
}

func (d *Dispatcher) send(ctx context.Context, runID int64, transport Transport) (string, error) {
	summary, err := d.summaries.Summary(ctx, runID)
	if err != nil {
		return "", err
	}
	return transport.Send(ctx, summary)
}

// RetryFailed redelivers every retry candidate on channel except the runs in skip.
// It keeps going past failures and returns them joined.
func (d *Dispatcher) RetryFailed(ctx context.Context, channel string, limit int, skip ...int64) (int, error) {
	if _, ok := d.transports[channel]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}

	runIDs, err := d.ledger.ListRetryCandidates(ctx, channel, limit)
	if err != nil {
		return 0, err
	}

	var errs []error
	delivered := 0
	for _, runID := range runIDs {
		if slices.Contains(skip, runID) {
			continue
		}
		if err := d.Deliver(ctx, runID, channel); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered++
	}

	d.logger.Info("retried failed notifications",
		zap.String("channel", channel), zap.Int("candidates", len(runIDs)), zap.Int("delivered", delivered))
	return delivered, errors.Join(errs...)
}
