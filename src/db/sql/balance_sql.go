package db

import (
	"context"
	"finsync/src/config"
	"finsync/src/models"
	"fmt"
)

type BalanceRepo struct {
	pool  DBTX
	table string
}

func NewBalanceRepo(pool DBTX, tables config.Tables) *BalanceRepo {
	return &BalanceRepo{pool: pool, table: tables.BalanceSnapshots}
}

// UpsertSnapshot writes the (run, account) snapshot, replacing one taken earlier in the same run.
func (r *BalanceRepo) UpsertSnapshot(ctx context.Context, s models.BalanceSnapshot) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
			(run_id, account_id, current, available, credit_limit, currency, captured_at, raw)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7)
		ON CONFLICT (run_id, account_id) DO UPDATE SET
			current = excluded.current,
			available = excluded.available,
			credit_limit = excluded.credit_limit,
			currency = excluded.currency,
			captured_at = excluded.captured_at,
			raw = excluded.raw
	`, r.table)

	_, err := r.pool.Exec(ctx, query,
		s.RunID,
		s.AccountID,
		s.Current,
		s.Available,
		s.CreditLimit,
		s.Currency,
		rawJSON(s.Raw),
	)
	return err
}
