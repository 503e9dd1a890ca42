package db

import (
	"context"
	"finsync/src/config"
	"finsync/src/models"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type NotificationRepo struct {
	pool  DBTX
	table string
}

func NewNotificationRepo(pool DBTX, tables config.Tables) *NotificationRepo {
	return &NotificationRepo{pool: pool, table: tables.Notifications}
}

// Upsert stores the outcome for (run, channel); a later outcome replaces the earlier one.
func (r *NotificationRepo) Upsert(ctx context.Context, rec models.NotificationRecord) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (run_id, channel, status, message, error, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NOW())
		ON CONFLICT (run_id, channel) DO UPDATE SET
			status = excluded.status,
			message = excluded.message,
			error = excluded.error,
			created_at = NOW()
		RETURNING id
	`, r.table)
	var id int64
	err := r.pool.QueryRow(ctx, query, rec.RunID, rec.Channel, rec.Status, rec.Message, rec.Error).Scan(&id)
	return id, err
}

func (r *NotificationRepo) ListRetryable(ctx context.Context, channel string, limit int) ([]int64, error) {
	query := fmt.Sprintf(`
		SELECT run_id FROM %s
		WHERE channel = $1 AND status = 'failed'
		ORDER BY run_id ASC
		LIMIT $2
	`, r.table)
	rows, err := r.pool.Query(ctx, query, channel, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *NotificationRepo) Get(ctx context.Context, runID int64, channel string) (*models.NotificationRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, channel, status, COALESCE(message, ''), COALESCE(error, ''), created_at
		FROM %s WHERE run_id = $1 AND channel = $2
	`, r.table)
	var rec models.NotificationRecord
	err := r.pool.QueryRow(ctx, query, runID, channel).Scan(
		&rec.ID, &rec.RunID, &rec.Channel, &rec.Status, &rec.Message, &rec.Error, &rec.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}
