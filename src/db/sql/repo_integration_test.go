package db_test

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"finsync/src/config"
	db "finsync/src/db/sql"
	"finsync/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed schema.sql
var schemaSQL string

// getTestPool connects to TEST_DATABASE_URL and provisions a private set of tables.
func getTestPool(t *testing.T) (*pgxpool.Pool, config.Tables) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err, "Failed to connect to test database")

	prefix := fmt.Sprintf("it%d_", time.Now().UnixNano())
	d := config.DefaultTables()
	tables := config.Tables{
		Items:             prefix + d.Items,
		Accounts:          prefix + d.Accounts,
		BalanceSnapshots:  prefix + d.BalanceSnapshots,
		Transactions:      prefix + d.Transactions,
		Cursors:           prefix + d.Cursors,
		Runs:              prefix + d.Runs,
		Notifications:     prefix + d.Notifications,
		PlaidWebhookEvent: prefix + d.PlaidWebhookEvent,
	}
	names := map[string]string{
		"PLAID_ITEMS_TABLE":          tables.Items,
		"ACCOUNTS_TABLE":             tables.Accounts,
		"BALANCE_SNAPSHOTS_TABLE":    tables.BalanceSnapshots,
		"TRANSACTIONS_TABLE":         tables.Transactions,
		"CURSORS_TABLE":              tables.Cursors,
		"RUNS_TABLE":                 tables.Runs,
		"NOTIFICATIONS_TABLE":        tables.Notifications,
		"PLAID_WEBHOOK_EVENTS_TABLE": tables.PlaidWebhookEvent,
	}

	_, err = pool.Exec(ctx, os.Expand(schemaSQL, func(k string) string { return names[k] }))
	require.NoError(t, err)

	t.Cleanup(func() {
		drop := []string{
			tables.PlaidWebhookEvent, tables.Notifications, tables.Transactions, tables.Cursors,
			tables.BalanceSnapshots, tables.Runs, tables.Accounts, tables.Items,
		}
		_, _ = pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+strings.Join(drop, ", ")+" CASCADE")
		pool.Close()
	})

	return pool, tables
}

func linkTestItem(t *testing.T, items *db.ItemRepo, label, itemID string) *models.Item {
	t.Helper()
	item, _, err := items.Link(context.Background(), models.LinkItemParams{
		Label:               label,
		Environment:         "sandbox",
		InstitutionID:       "ins_1",
		InstitutionName:     "Chase",
		ItemID:              itemID,
		CredentialHandle:    "sealed",
		TransactionsEnabled: true,
		BalancesEnabled:     true,
	})
	require.NoError(t, err)
	return item
}

func TestItemRepo_RelinkArchives(t *testing.T) {
	pool, tables := getTestPool(t)
	ctx := context.Background()
	items := db.NewItemRepo(pool, tables)

	first := linkTestItem(t, items, "Chase", "item-a")
	second, archived, err := items.Link(ctx, models.LinkItemParams{
		Label: "Chase", Environment: "sandbox", InstitutionID: "ins_1", ItemID: "item-b",
		CredentialHandle: "sealed-2", TransactionsEnabled: true, BalancesEnabled: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{first.ID}, archived)
	assert.True(t, second.Active)

	old, err := items.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, old.Active)
	assert.NotNil(t, old.ArchivedAt)

	active, err := items.ListForTransactions(ctx, "sandbox")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "item-b", active[0].ItemID)

	_, err = items.Get(ctx, 999999)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestAccountRepo_StickyFlags(t *testing.T) {
	pool, tables := getTestPool(t)
	ctx := context.Background()
	item := linkTestItem(t, db.NewItemRepo(pool, tables), "Chase", "item-a")
	accounts := db.NewAccountRepo(pool, tables)

	params := models.UpsertAccountParams{
		ItemID:    item.ID,
		AccountID: "acc-x",
		Metadata:  models.AccountMetadata{Name: "Checking", Type: "depository"},
	}
	id, err := accounts.Upsert(ctx, params)
	require.NoError(t, err)

	_, err = accounts.SetInclusion(ctx, id, models.Bool(false), nil)
	require.NoError(t, err)

	params.Metadata.Name = "Everyday Checking"
	again, err := accounts.Upsert(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	list, err := accounts.ListByItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Everyday Checking", list[0].Name)
	assert.False(t, list[0].IncludeInApp)
	assert.True(t, list[0].Active)

	included, err := accounts.ListIncluded(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, included)

	params.IncludeInApp = models.Bool(true)
	_, err = accounts.Upsert(ctx, params)
	require.NoError(t, err)
	included, err = accounts.ListIncluded(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"acc-x": id}, included)
}

func TestTransactionRepo_UpsertRemoveRevive(t *testing.T) {
	pool, tables := getTestPool(t)
	ctx := context.Background()
	item := linkTestItem(t, db.NewItemRepo(pool, tables), "Chase", "item-a")
	accountID, err := db.NewAccountRepo(pool, tables).Upsert(ctx, models.UpsertAccountParams{ItemID: item.ID, AccountID: "acc-x"})
	require.NoError(t, err)

	runs := db.NewRunRepo(pool, tables)
	r1, err := runs.Create(ctx, models.RunTypeDailySync, "sandbox")
	require.NoError(t, err)
	r2, err := runs.Create(ctx, models.RunTypeDailySync, "sandbox")
	require.NoError(t, err)

	txns := db.NewTransactionRepo(pool, tables)
	entry := models.ProviderTransaction{
		TransactionID: "t1",
		AccountID:     "acc-x",
		Amount:        decimal.NewFromInt(10),
		Date:          time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	inserted, err := txns.Upsert(ctx, r1, accountID, entry)
	require.NoError(t, err)
	assert.True(t, inserted)

	removed, err := txns.MarkRemoved(ctx, r1, "t1")
	require.NoError(t, err)
	assert.True(t, removed)
	before, err := txns.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, before.RemovedAt)

	removed, err = txns.MarkRemoved(ctx, r1, "t1")
	require.NoError(t, err)
	assert.True(t, removed)
	after, err := txns.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, after.RemovedAt)
	assert.True(t, before.RemovedAt.Equal(*after.RemovedAt), "replayed removal keeps removed_at")

	removed, err = txns.MarkRemoved(ctx, r1, "never-stored")
	require.NoError(t, err)
	assert.False(t, removed)

	entry.Amount = decimal.NewFromInt(12)
	inserted, err = txns.Upsert(ctx, r2, accountID, entry)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := txns.Get(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(12).Equal(got.Amount))
	assert.Equal(t, models.SyncStatusModified, got.SyncStatus)
	assert.False(t, got.Removed)
	assert.Nil(t, got.RemovedAt)
	assert.Equal(t, r1, got.FirstSeenRunID)
	assert.Equal(t, r2, got.LastSeenRunID)

	undated := models.ProviderTransaction{TransactionID: "t-undated", AccountID: "acc-x", Amount: decimal.NewFromInt(3)}
	_, err = txns.Upsert(ctx, r2, accountID, undated)
	require.NoError(t, err)
	got, err = txns.Get(ctx, "t-undated")
	require.NoError(t, err)
	assert.Nil(t, got.Date)
}

func TestRunAndNotificationRepos(t *testing.T) {
	pool, tables := getTestPool(t)
	ctx := context.Background()
	runs := db.NewRunRepo(pool, tables)
	notes := db.NewNotificationRepo(pool, tables)

	r1, err := runs.Create(ctx, models.RunTypeDailySync, "sandbox")
	require.NoError(t, err)
	r2, err := runs.Create(ctx, models.RunTypeBalances, "sandbox")
	require.NoError(t, err)

	ok, err := runs.Finish(ctx, r1, models.RunStatusFailed, "plaid: ITEM_LOGIN_REQUIRED")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = runs.Finish(ctx, r1, models.RunStatusSuccess, "")
	require.NoError(t, err)
	assert.False(t, ok)

	run, err := runs.Get(ctx, r1)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, "plaid: ITEM_LOGIN_REQUIRED", run.Error)
	assert.NotNil(t, run.FinishedAt)

	for _, rec := range []models.NotificationRecord{
		{RunID: r2, Channel: "slack", Status: models.NotificationFailed, Error: "timeout"},
		{RunID: r1, Channel: "slack", Status: models.NotificationSuccess},
		{RunID: r1, Channel: "slack", Status: models.NotificationFailed, Error: "500"},
		{RunID: r1, Channel: "email", Status: models.NotificationFailed},
	} {
		_, err := notes.Upsert(ctx, rec)
		require.NoError(t, err)
	}

	ids, err := notes.ListRetryable(ctx, "slack", 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{r1, r2}, ids)

	ids, err = notes.ListRetryable(ctx, "slack", 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{r1}, ids)

	rec, err := notes.Get(ctx, r1, "slack")
	require.NoError(t, err)
	assert.Equal(t, "500", rec.Error)
}

func TestReportRepo_PeriodsLatestAndPosted(t *testing.T) {
	pool, tables := getTestPool(t)
	ctx := context.Background()
	item := linkTestItem(t, db.NewItemRepo(pool, tables), "Chase", "item-r")
	accountID, err := db.NewAccountRepo(pool, tables).Upsert(ctx, models.UpsertAccountParams{
		ItemID: item.ID, AccountID: "acc-r", Metadata: models.AccountMetadata{Name: "Checking", Type: "depository"},
	})
	require.NoError(t, err)

	runs := db.NewRunRepo(pool, tables)
	reports := db.NewReportRepo(pool, tables)

	runID, _, err := reports.LatestBalances(ctx)
	require.NoError(t, err)
	assert.Zero(t, runID, "no balances run yet")

	balancesRun, err := runs.Create(ctx, models.RunTypeBalances, "sandbox")
	require.NoError(t, err)
	require.NoError(t, db.NewBalanceRepo(pool, tables).UpsertSnapshot(ctx, models.BalanceSnapshot{
		RunID: balancesRun, AccountID: accountID, Current: decimal.NewNullDecimal(decimal.NewFromInt(900)),
	}))
	_, err = runs.Finish(ctx, balancesRun, models.RunStatusSuccess, "")
	require.NoError(t, err)

	syncRun, err := runs.Create(ctx, models.RunTypeDailySync, "sandbox")
	require.NoError(t, err)
	txns := db.NewTransactionRepo(pool, tables)
	for _, tx := range []models.ProviderTransaction{
		{TransactionID: "p1", Name: "Coffee", Amount: decimal.RequireFromString("4.50"), Date: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)},
		{TransactionID: "p2", Name: "Payroll", Amount: decimal.NewFromInt(-1500), Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{TransactionID: "p3", Name: "Rent", Amount: decimal.NewFromInt(1200), Date: time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)},
		{TransactionID: "p4", Name: "Pending", Amount: decimal.NewFromInt(7), Date: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), Pending: true},
	} {
		_, err := txns.Upsert(ctx, syncRun, accountID, tx)
		require.NoError(t, err)
	}

	runID, latest, err := reports.LatestBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, balancesRun, runID)
	require.Len(t, latest, 1)
	assert.True(t, decimal.NewFromInt(900).Equal(latest[0].Current.Decimal))

	spent, received, err := reports.PeriodTotals(ctx, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("4.50").Equal(spent), "got %s", spent)
	assert.True(t, decimal.NewFromInt(1500).Equal(received), "got %s", received)

	posted, err := reports.PostedTransactions(ctx, syncRun, 2)
	require.NoError(t, err)
	require.Len(t, posted, 2)
	assert.Equal(t, "Coffee", posted[0].Name)
	assert.Equal(t, "Payroll", posted[1].Name)
	assert.Equal(t, "Checking", posted[0].AccountName)
	assert.Equal(t, "Chase", posted[0].ItemLabel)
}
