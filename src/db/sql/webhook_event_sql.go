package db

import (
	"context"
	"finsync/src/config"
	"finsync/src/models"
	"fmt"
)

type WebhookEventRepo struct {
	pool  DBTX
	table string
}

func NewWebhookEventRepo(pool DBTX, tables config.Tables) *WebhookEventRepo {
	return &WebhookEventRepo{pool: pool, table: tables.PlaidWebhookEvent}
}

func (r *WebhookEventRepo) Insert(ctx context.Context, e models.WebhookEvent) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (webhook_type, webhook_code, item_id, environment, raw, received_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, NOW())
		RETURNING id
	`, r.table)
	var id int64
	err := r.pool.QueryRow(ctx, query, e.WebhookType, e.WebhookCode, e.ItemID, e.Environment, rawJSON(e.Raw)).Scan(&id)
	return id, err
}
