package db

import (
	"context"
	"finsync/src/config"
	"finsync/src/models"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReportRepo reads the snapshot a run left behind. Only included, active accounts count.
type ReportRepo struct {
	pool   DBTX
	tables config.Tables
}

func NewReportRepo(pool DBTX, tables config.Tables) *ReportRepo {
	return &ReportRepo{pool: pool, tables: tables}
}

func (r *ReportRepo) BalancesForRun(ctx context.Context, runID int64) ([]models.AccountBalance, error) {
	query := fmt.Sprintf(`
		SELECT a.id, COALESCE(a.name, ''), COALESCE(a.type, ''), bs.current
		FROM %s bs
		JOIN %s a ON a.id = bs.account_id
		WHERE bs.run_id = $1 AND a.include_in_app = true AND a.active = true
		ORDER BY a.id
	`, r.tables.BalanceSnapshots, r.tables.Accounts)

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []models.AccountBalance
	for rows.Next() {
		var b models.AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Name, &b.Type, &b.Current); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}

	return balances, rows.Err()
}

func (r *ReportRepo) SyncStatusCounts(ctx context.Context, runID int64) (map[models.SyncStatus]int, error) {
	query := fmt.Sprintf(`
		SELECT sync_status, COUNT(*) FROM %s
		WHERE last_seen_run_id = $1
		GROUP BY sync_status
	`, r.tables.Transactions)

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.SyncStatus]int)
	for rows.Next() {
		var (
			status models.SyncStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}

	return counts, rows.Err()
}

// FlowTotals sums posted, non-removed transactions touched by the run into money out
// (positive amounts) and money in (negative amounts, returned as a positive number).
func (r *ReportRepo) FlowTotals(ctx context.Context, runID int64) (spent, received decimal.Decimal, err error) {
	query := fmt.Sprintf(`
		SELECT
			COALESCE(SUM(CASE WHEN t.amount > 0 THEN t.amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN t.amount < 0 THEN -t.amount ELSE 0 END), 0)
		FROM %s t
		JOIN %s a ON a.id = t.account_id
		WHERE t.last_seen_run_id = $1
			AND a.include_in_app = true AND a.active = true
			AND t.removed = false AND t.pending = false
	`, r.tables.Transactions, r.tables.Accounts)

	err = r.pool.QueryRow(ctx, query, runID).Scan(&spent, &received)
	return spent, received, err
}

// PeriodTotals sums posted, non-removed transactions dated from through to, inclusive.
// Only the calendar dates of from and to are used.
func (r *ReportRepo) PeriodTotals(ctx context.Context, from, to time.Time) (spent, received decimal.Decimal, err error) {
	query := fmt.Sprintf(`
		SELECT
			COALESCE(SUM(CASE WHEN t.amount > 0 THEN t.amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN t.amount < 0 THEN -t.amount ELSE 0 END), 0)
		FROM %s t
		JOIN %s a ON a.id = t.account_id
		WHERE a.include_in_app = true AND a.active = true
			AND t.removed = false AND t.pending = false
			AND t.date >= $1::date AND t.date <= $2::date
	`, r.tables.Transactions, r.tables.Accounts)

	err = r.pool.QueryRow(ctx, query, from.Format(time.DateOnly), to.Format(time.DateOnly)).Scan(&spent, &received)
	return spent, received, err
}

// LatestBalances returns the snapshot left by the newest successful run that captured
// balances. A zero run id means no such run exists yet.
func (r *ReportRepo) LatestBalances(ctx context.Context) (int64, []models.AccountBalance, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(MAX(r.id), 0)
		FROM %s r
		WHERE r.status = 'success'
			AND EXISTS (SELECT 1 FROM %s bs WHERE bs.run_id = r.id)
	`, r.tables.Runs, r.tables.BalanceSnapshots)

	var runID int64
	if err := r.pool.QueryRow(ctx, query).Scan(&runID); err != nil {
		return 0, nil, err
	}
	if runID == 0 {
		return 0, nil, nil
	}

	balances, err := r.BalancesForRun(ctx, runID)
	return runID, balances, err
}

// PostedTransactions lists settled, non-removed transactions touched by the run,
// newest first, largest first within a day.
func (r *ReportRepo) PostedTransactions(ctx context.Context, runID int64, limit int) ([]models.PostedTransaction, error) {
	query := fmt.Sprintf(`
		SELECT t.date, COALESCE(t.name, ''), COALESCE(t.merchant_name, ''), t.amount,
			COALESCE(a.name, ''), i.label, t.sync_status
		FROM %s t
		JOIN %s a ON a.id = t.account_id
		JOIN %s i ON i.id = a.item_id
		WHERE t.last_seen_run_id = $1
			AND a.include_in_app = true AND a.active = true
			AND t.removed = false AND t.pending = false
		ORDER BY t.date DESC NULLS LAST, t.amount DESC, t.id
		LIMIT $2
	`, r.tables.Transactions, r.tables.Accounts, r.tables.Items)

	rows, err := r.pool.Query(ctx, query, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posted []models.PostedTransaction
	for rows.Next() {
		var p models.PostedTransaction
		if err := rows.Scan(&p.Date, &p.Name, &p.MerchantName, &p.Amount, &p.AccountName, &p.ItemLabel, &p.SyncStatus); err != nil {
			return nil, err
		}
		posted = append(posted, p)
	}

	return posted, rows.Err()
}
