package db

import (
	"context"
	"finsync/src/config"
	"finsync/src/models"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type AccountRepo struct {
	pool  DBTX
	table string
}

func NewAccountRepo(pool DBTX, tables config.Tables) *AccountRepo {
	return &AccountRepo{pool: pool, table: tables.Accounts}
}

const accountColumns = `id, item_id, account_id, COALESCE(name, ''), COALESCE(official_name, ''), COALESCE(type, ''),
	COALESCE(subtype, ''), COALESCE(mask, ''), COALESCE(currency, ''), include_in_app, active, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.ItemID, &a.AccountID, &a.Name, &a.OfficialName, &a.Type,
		&a.Subtype, &a.Mask, &a.Currency, &a.IncludeInApp, &a.Active, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Upsert overwrites the feed metadata and only touches include_in_app/active when the
// caller supplied a value. New rows default both flags to true.
func (r *AccountRepo) Upsert(ctx context.Context, p models.UpsertAccountParams) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s AS a
			(item_id, account_id, name, official_name, type, subtype, mask, currency,
			 include_in_app, active, raw, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, true), COALESCE($10, true), $11, NOW())
		ON CONFLICT (item_id, account_id) DO UPDATE SET
			name = excluded.name,
			official_name = excluded.official_name,
			type = excluded.type,
			subtype = excluded.subtype,
			mask = excluded.mask,
			currency = excluded.currency,
			raw = excluded.raw,
			include_in_app = COALESCE($9, a.include_in_app),
			active = COALESCE($10, a.active),
			updated_at = NOW()
		RETURNING id
	`, r.table)

	m := p.Metadata
	var id int64
	err := r.pool.QueryRow(ctx, query,
		p.ItemID,
		p.AccountID,
		m.Name,
		m.OfficialName,
		m.Type,
		m.Subtype,
		m.Mask,
		m.Currency,
		p.IncludeInApp,
		p.Active,
		rawJSON(m.Raw),
	).Scan(&id)
	return id, err
}

// ListIncluded maps external account id to internal id for accounts that are both
// included and active.
func (r *AccountRepo) ListIncluded(ctx context.Context, itemID int64) (map[string]int64, error) {
	query := fmt.Sprintf(`
		SELECT account_id, id FROM %s
		WHERE item_id = $1 AND include_in_app = true AND active = true
	`, r.table)

	rows, err := r.pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	included := make(map[string]int64)
	for rows.Next() {
		var (
			externalID string
			id         int64
		)
		if err := rows.Scan(&externalID, &id); err != nil {
			return nil, err
		}
		included[externalID] = id
	}

	return included, rows.Err()
}

func (r *AccountRepo) ListByItem(ctx context.Context, itemID int64) ([]models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE item_id = $1 ORDER BY id`, accountColumns, r.table)

	rows, err := r.pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}

	return accounts, rows.Err()
}

func (r *AccountRepo) SetInclusion(ctx context.Context, id int64, includeInApp, active *bool) (*models.Account, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET include_in_app = COALESCE($2, include_in_app),
			active = COALESCE($3, active),
			updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, r.table, accountColumns)

	a, err := scanAccount(r.pool.QueryRow(ctx, query, id, includeInApp, active))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}
