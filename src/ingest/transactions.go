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

var ErrMissingNextCursor = errors.New("provider reported more pages without a next cursor")

type SyncResult struct {
	ItemID   int64
	Pages    int
	Added    int
	Modified int
	Removed  int
	// Excluded counts entries for accounts outside the included set.
	Excluded int
	// BeforeFloor counts entries dated before the configured start date.
	BeforeFloor int
	// UnknownRemoved counts removals for ids that were never stored.
	UnknownRemoved int
	Cursor         string
}

// TransactionSyncEngine pages transaction deltas for an item. The cursor is read once
// when the sync starts and written back after every applied page, so a crash costs at
// most the page in flight. Replaying a page is safe because every write is keyed on
// the provider's transaction id.
type TransactionSyncEngine struct {
	accounts     *AccountRegistry
	cursors      CursorStore
	transactions TransactionStore
	provider     Provider
	creds        CredentialResolver
	startDate    time.Time
	logger       *zap.Logger
}

func NewTransactionSyncEngine(accounts *AccountRegistry, cursors CursorStore, transactions TransactionStore, provider Provider, creds CredentialResolver, logger *zap.Logger) *TransactionSyncEngine {
	return &TransactionSyncEngine{
		accounts:     accounts,
		cursors:      cursors,
		transactions: transactions,
		provider:     provider,
		creds:        creds,
		logger:       logger,
	}
}

// WithStartDate drops added/modified entries dated before d. A zero date disables the floor.
func (e *TransactionSyncEngine) WithStartDate(d time.Time) *TransactionSyncEngine {
	e.startDate = d
	return e
}

func (e *TransactionSyncEngine) SyncItem(ctx context.Context, runID int64, item models.Item) (*SyncResult, error) {
	log := e.logger.With(zap.Int64("run_id", runID), zap.Int64("item_id", item.ID), zap.String("label", item.Label))
	result := &SyncResult{ItemID: item.ID}

	token, err := e.creds.Resolve(ctx, item)
	if err != nil {
		return result, err
	}

	included, err := e.accounts.ListIncluded(ctx, item.ID)
	if err != nil {
		return result, fmt.Errorf("list included accounts: %w", err)
	}

	cursor, err := e.cursors.GetSyncCursor(ctx, item.ID)
	if err != nil {
		return result, fmt.Errorf("get sync cursor: %w", err)
	}
	result.Cursor = cursor
	if cursor == "" {
		log.Info("no stored cursor, syncing full history")
	}

	for {
		page, err := e.provider.SyncTransactions(ctx, token, cursor)
		if err != nil {
			return result, fmt.Errorf("sync page %d: %w", result.Pages+1, err)
		}
		if page.HasMore && page.NextCursor == "" {
			return result, ErrMissingNextCursor
		}

		if err := e.applyPage(ctx, runID, page, included, result); err != nil {
			return result, fmt.Errorf("apply page %d: %w", result.Pages+1, err)
		}

		// A final page without a cursor leaves the stored one in place so the next
		// run resumes instead of resyncing from scratch.
		if page.NextCursor != "" {
			if err := e.cursors.UpdateSyncCursor(ctx, item.ID, page.NextCursor); err != nil {
				return result, fmt.Errorf("commit cursor after page %d: %w", result.Pages+1, err)
			}
			cursor = page.NextCursor
			result.Cursor = cursor
		} else {
			log.Warn("final page carried no cursor, keeping the stored one", zap.Int("page", result.Pages+1))
		}
		result.Pages++
		metrics.SyncPagesTotal.Inc()

		log.Debug("page applied",
			zap.Int("page", result.Pages),
			zap.Int("added", len(page.Added)),
			zap.Int("modified", len(page.Modified)),
			zap.Int("removed", len(page.Removed)),
			zap.Bool("has_more", page.HasMore))

		if !page.HasMore {
			break
		}
	}

	log.Info("transactions synced",
		zap.Int("pages", result.Pages),
		zap.Int("added", result.Added),
		zap.Int("modified", result.Modified),
		zap.Int("removed", result.Removed),
		zap.Int("excluded", result.Excluded),
		zap.Int("before_floor", result.BeforeFloor))
	return result, nil
}

func (e *TransactionSyncEngine) applyPage(ctx context.Context, runID int64, page *models.SyncPage, included map[string]int64, result *SyncResult) error {
	// Added and modified are applied the same way: the stored status reflects whether
	// the row existed locally, not the upstream label.
	upserts := make([]models.ProviderTransaction, 0, len(page.Added)+len(page.Modified))
	upserts = append(upserts, page.Added...)
	upserts = append(upserts, page.Modified...)

	for _, tx := range upserts {
		accountID, ok := included[tx.AccountID]
		if !ok {
			result.Excluded++
			metrics.TransactionsDropped.WithLabelValues("excluded_account").Inc()
			continue
		}
		if !e.onOrAfterFloor(tx) {
			result.BeforeFloor++
			metrics.TransactionsDropped.WithLabelValues("before_start_date").Inc()
			continue
		}

		inserted, err := e.transactions.Upsert(ctx, runID, accountID, tx)
		if err != nil {
			return fmt.Errorf("upsert transaction %s: %w", tx.TransactionID, err)
		}
		if inserted {
			result.Added++
			metrics.TransactionsApplied.WithLabelValues(string(models.SyncStatusAdded)).Inc()
		} else {
			result.Modified++
			metrics.TransactionsApplied.WithLabelValues(string(models.SyncStatusModified)).Inc()
		}
	}

	for _, id := range page.Removed {
		if id == "" {
			continue
		}
		matched, err := e.transactions.MarkRemoved(ctx, runID, id)
		if err != nil {
			return fmt.Errorf("remove transaction %s: %w", id, err)
		}
		if !matched {
			result.UnknownRemoved++
			continue
		}
		result.Removed++
		metrics.TransactionsApplied.WithLabelValues(string(models.SyncStatusRemoved)).Inc()
	}

	return nil
}

func (e *TransactionSyncEngine) onOrAfterFloor(tx models.ProviderTransaction) bool {
	if e.startDate.IsZero() {
		return true
	}
	if tx.Date.IsZero() {
		return false
	}
	return !tx.Date.Before(e.startDate)
}
