package db

import (
	"context"
	"finsync/src/config"
	"finsync/src/models"
	"fmt"
)

type RunRepo struct {
	pool  DBTX
	table string
}

func NewRunRepo(pool DBTX, tables config.Tables) *RunRepo {
	return &RunRepo{pool: pool, table: tables.Runs}
}

func (r *RunRepo) Create(ctx context.Context, runType, env string) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (run_type, env, status, started_at)
		VALUES ($1, $2, 'running', NOW())
		RETURNING id
	`, r.table)
	var id int64
	err := r.pool.QueryRow(ctx, query, runType, env).Scan(&id)
	return id, err
}

// Finish moves a running run to its terminal status. It reports false when the run
// does not exist or already finished.
func (r *RunRepo) Finish(ctx context.Context, id int64, status models.RunStatus, errText string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $2, error = NULLIF($3, ''), finished_at = NOW()
		WHERE id = $1 AND status = 'running'
	`, r.table)
	tag, err := r.pool.Exec(ctx, query, id, status, errText)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RunRepo) Get(ctx context.Context, id int64) (*models.Run, error) {
	query := fmt.Sprintf(`
		SELECT id, run_type, COALESCE(env, ''), status, COALESCE(error, ''), started_at, finished_at
		FROM %s WHERE id = $1
	`, r.table)
	var run models.Run
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.Type, &run.Environment, &run.Status, &run.Error, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &run, nil
}
