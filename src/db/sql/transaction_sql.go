package db

import (
	"context"
	"finsync/src/config"
	"finsync/src/models"
	"fmt"
)

type TransactionRepo struct {
	pool  DBTX
	table string
}

func NewTransactionRepo(pool DBTX, tables config.Tables) *TransactionRepo {
	return &TransactionRepo{pool: pool, table: tables.Transactions}
}

// Upsert applies an added or modified entry keyed by the provider transaction id.
// A new row is stored as "added" with first_seen_run_id set; an existing row becomes
// "modified" and keeps its first_seen_run_id. Either way the row is un-removed and
// stamped with the run. The returned flag reports whether the row was inserted.
func (r *TransactionRepo) Upsert(ctx context.Context, runID, accountID int64, tx models.ProviderTransaction) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s
			(account_id, transaction_id, name, merchant_name, amount, currency, date, authorized_date,
			 pending, pending_transaction_id, category_id, category, personal_finance_category,
			 payment_channel, sync_status, removed, removed_at, first_seen_run_id, last_seen_run_id,
			 raw, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			'added', false, NULL, $15, $15, $16, NOW())
		ON CONFLICT (transaction_id) DO UPDATE SET
			account_id = excluded.account_id,
			name = excluded.name,
			merchant_name = excluded.merchant_name,
			amount = excluded.amount,
			currency = excluded.currency,
			date = excluded.date,
			authorized_date = excluded.authorized_date,
			pending = excluded.pending,
			pending_transaction_id = excluded.pending_transaction_id,
			category_id = excluded.category_id,
			category = excluded.category,
			personal_finance_category = excluded.personal_finance_category,
			payment_channel = excluded.payment_channel,
			sync_status = 'modified',
			removed = false,
			removed_at = NULL,
			last_seen_run_id = excluded.last_seen_run_id,
			raw = excluded.raw,
			updated_at = NOW()
		RETURNING (xmax = 0) AS inserted
	`, r.table)

	// Undated entries are stored as NULL rather than the zero time.
	var date any
	if !tx.Date.IsZero() {
		date = tx.Date
	}

	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		accountID,
		tx.TransactionID,
		tx.Name,
		tx.MerchantName,
		tx.Amount,
		tx.Currency,
		date,
		tx.AuthorizedDate,
		tx.Pending,
		tx.PendingTransactionID,
		tx.CategoryID,
		tx.Category,
		tx.PersonalFinanceCategory,
		tx.PaymentChannel,
		runID,
		rawJSON(tx.Raw),
	).Scan(&inserted)
	return inserted, err
}

// MarkRemoved flags a stored transaction as removed. A row that is already removed
// keeps its original removed_at. Unknown ids are not an error; the returned flag
// reports whether a row matched.
func (r *TransactionRepo) MarkRemoved(ctx context.Context, runID int64, transactionID string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET removed = true,
			removed_at = CASE WHEN removed THEN removed_at ELSE NOW() END,
			sync_status = 'removed',
			last_seen_run_id = $1,
			updated_at = NOW()
		WHERE transaction_id = $2
	`, r.table)

	tag, err := r.pool.Exec(ctx, query, runID, transactionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TransactionRepo) Get(ctx context.Context, transactionID string) (*models.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT id, account_id, transaction_id, COALESCE(name, ''), COALESCE(merchant_name, ''), amount,
			COALESCE(currency, ''), date, authorized_date, pending, COALESCE(pending_transaction_id, ''),
			COALESCE(category_id, ''), COALESCE(category, ''), COALESCE(personal_finance_category, ''),
			COALESCE(payment_channel, ''), sync_status, removed, removed_at, first_seen_run_id, last_seen_run_id
		FROM %s
		WHERE transaction_id = $1
	`, r.table)

	var t models.Transaction
	err := r.pool.QueryRow(ctx, query, transactionID).Scan(
		&t.ID, &t.AccountID, &t.TransactionID, &t.Name, &t.MerchantName, &t.Amount,
		&t.Currency, &t.Date, &t.AuthorizedDate, &t.Pending, &t.PendingTransactionID,
		&t.CategoryID, &t.Category, &t.PersonalFinanceCategory,
		&t.PaymentChannel, &t.SyncStatus, &t.Removed, &t.RemovedAt, &t.FirstSeenRunID, &t.LastSeenRunID,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}
