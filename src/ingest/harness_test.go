package ingest

import (
	"context"
	"finsync/src/models"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type harness struct {
	items    *fakeItems
	accounts *fakeAccounts
	balances *fakeBalances
	cursors  *fakeCursors
	txns     *fakeTransactions
	runs     *fakeRuns
	provider *fakeProvider
	sealer   *fakeSealer

	directory *ItemDirectory
	registry  *AccountRegistry
	ingestor  *Ingestor
	engine    *TransactionSyncEngine
	balancer  *BalanceIngestor
	tracker   *RunTracker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)

	h := &harness{
		items:    &fakeItems{},
		accounts: newFakeAccounts(),
		balances: newFakeBalances(),
		cursors:  newFakeCursors(),
		txns:     newFakeTransactions(),
		runs:     newFakeRuns(),
		provider: newFakeProvider(),
		sealer:   &fakeSealer{},
	}
	creds := fakeCreds{}

	h.directory = NewItemDirectory(h.items, h.sealer, "sandbox", logger)
	h.registry = NewAccountRegistry(h.accounts, logger)
	h.balancer = NewBalanceIngestor(h.registry, h.balances, h.provider, creds, logger)
	h.engine = NewTransactionSyncEngine(h.registry, h.cursors, h.txns, h.provider, creds, logger)
	h.tracker = NewRunTracker(h.runs, logger)
	h.ingestor = NewIngestor(h.tracker, h.directory, h.balancer, h.engine, "sandbox", logger)
	return h
}

// addItem registers an active item whose credential is token.
func (h *harness) addItem(label, token string, transactions, balances bool) models.Item {
	return h.items.add(models.Item{
		Label:               label,
		Environment:         "sandbox",
		InstitutionID:       "ins_" + label,
		ItemID:              "item-" + label,
		CredentialHandle:    token,
		TransactionsEnabled: transactions,
		BalancesEnabled:     balances,
		Active:              true,
	})
}

func (h *harness) addAccount(t *testing.T, item models.Item, accountID, accountType string, include bool) int64 {
	t.Helper()
	id, err := h.registry.UpsertAccount(context.Background(), item.ID, accountID,
		models.AccountMetadata{Name: accountID, Type: accountType}, models.Bool(include), nil)
	require.NoError(t, err)
	return id
}

func (h *harness) startRun(t *testing.T) int64 {
	t.Helper()
	id, err := h.tracker.Start(context.Background(), models.RunTypeDailySync, "sandbox")
	require.NoError(t, err)
	return id
}

func txn(id, account string, amount int64) models.ProviderTransaction {
	return models.ProviderTransaction{
		TransactionID: id,
		AccountID:     account,
		Name:          "txn " + id,
		Amount:        decimal.NewFromInt(amount),
		Currency:      "USD",
		Date:          time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}
