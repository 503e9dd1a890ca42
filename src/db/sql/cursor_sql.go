package db

import (
	"context"
	"errors"
	"finsync/src/config"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type CursorRepo struct {
	pool  DBTX
	table string
}

func NewCursorRepo(pool DBTX, tables config.Tables) *CursorRepo {
	return &CursorRepo{pool: pool, table: tables.Cursors}
}

// GetSyncCursor returns "" when the item has never completed a page.
func (r *CursorRepo) GetSyncCursor(ctx context.Context, itemID int64) (string, error) {
	query := fmt.Sprintf(`SELECT COALESCE(transactions_cursor, '') FROM %s WHERE item_id = $1`, r.table)
	var cursor string
	err := r.pool.QueryRow(ctx, query, itemID).Scan(&cursor)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cursor, nil
}

func (r *CursorRepo) UpdateSyncCursor(ctx context.Context, itemID int64, cursor string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (item_id, transactions_cursor, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (item_id) DO UPDATE SET
			transactions_cursor = excluded.transactions_cursor,
			updated_at = NOW()
	`, r.table)
	_, err := r.pool.Exec(ctx, query, itemID, cursor)
	return err
}
