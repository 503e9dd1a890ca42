package db

import (
	"context"
	"finsync/src/config"
	"finsync/src/models"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type ItemRepo struct {
	pool  DBTX
	table string
}

func NewItemRepo(pool DBTX, tables config.Tables) *ItemRepo {
	return &ItemRepo{pool: pool, table: tables.Items}
}

const itemColumns = `id, label, env, COALESCE(institution_id, ''), COALESCE(institution_name, ''), item_id,
	access_token, transactions_enabled, balances_enabled, active, archived_at, created_at`

func scanItem(row pgx.Row) (*models.Item, error) {
	var item models.Item
	err := row.Scan(&item.ID, &item.Label, &item.Environment, &item.InstitutionID, &item.InstitutionName, &item.ItemID,
		&item.CredentialHandle, &item.TransactionsEnabled, &item.BalancesEnabled, &item.Active, &item.ArchivedAt, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *ItemRepo) list(ctx context.Context, query string, args ...any) ([]models.Item, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	return items, rows.Err()
}

func (r *ItemRepo) Get(ctx context.Context, id int64) (*models.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, itemColumns, r.table)
	item, err := scanItem(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return item, nil
}

// List returns every item of the environment, archived ones included.
func (r *ItemRepo) List(ctx context.Context, env string) ([]models.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE env = $1 ORDER BY id`, itemColumns, r.table)
	return r.list(ctx, query, env)
}

func (r *ItemRepo) ListForBalances(ctx context.Context, env string) ([]models.Item, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE env = $1 AND active = true AND balances_enabled = true
		ORDER BY id
	`, itemColumns, r.table)
	return r.list(ctx, query, env)
}

func (r *ItemRepo) ListForTransactions(ctx context.Context, env string) ([]models.Item, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE env = $1 AND active = true AND transactions_enabled = true
		ORDER BY id
	`, itemColumns, r.table)
	return r.list(ctx, query, env)
}

// Link archives any other active item holding the same label in the environment and
// upserts the linked item as the active one. It returns the ids it archived.
func (r *ItemRepo) Link(ctx context.Context, p models.LinkItemParams) (*models.Item, []int64, error) {
	var (
		item     *models.Item
		archived []int64
	)

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		archiveQuery := fmt.Sprintf(`
			UPDATE %s
			SET active = false, archived_at = NOW(), updated_at = NOW()
			WHERE label = $1 AND env = $2 AND item_id <> $3 AND active = true
			RETURNING id
		`, r.table)

		rows, err := tx.Query(ctx, archiveQuery, p.Label, p.Environment, p.ItemID)
		if err != nil {
			return err
		}
		archived, err = pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return err
		}

		upsertQuery := fmt.Sprintf(`
			INSERT INTO %s
				(label, env, institution_id, institution_name, item_id, access_token,
				 transactions_enabled, balances_enabled, active, archived_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, NULL)
			ON CONFLICT (item_id) DO UPDATE SET
				label = excluded.label,
				env = excluded.env,
				institution_id = excluded.institution_id,
				institution_name = excluded.institution_name,
				access_token = excluded.access_token,
				transactions_enabled = excluded.transactions_enabled,
				balances_enabled = excluded.balances_enabled,
				active = true,
				archived_at = NULL,
				updated_at = NOW()
			RETURNING %s
		`, r.table, itemColumns)

		item, err = scanItem(tx.QueryRow(ctx, upsertQuery,
			p.Label,
			p.Environment,
			p.InstitutionID,
			p.InstitutionName,
			p.ItemID,
			p.CredentialHandle,
			p.TransactionsEnabled,
			p.BalancesEnabled,
		))
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return item, archived, nil
}

// SetCapabilities changes the capability flags that are non-nil.
func (r *ItemRepo) SetCapabilities(ctx context.Context, id int64, transactions, balances *bool) (*models.Item, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET transactions_enabled = COALESCE($2, transactions_enabled),
			balances_enabled = COALESCE($3, balances_enabled),
			updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, r.table, itemColumns)

	item, err := scanItem(r.pool.QueryRow(ctx, query, id, transactions, balances))
	if err != nil {
		return nil, notFound(err)
	}
	return item, nil
}
