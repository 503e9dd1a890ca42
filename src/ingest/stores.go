// Package ingest is the synchronization and reconciliation engine: it tracks runs,
// refreshes account metadata and balances, and pages transaction deltas into the
// store one durable page at a time.
package ingest

import (
	"context"
	"finsync/src/models"
)

// Provider is the aggregation provider, already normalized to the canonical types.
// An empty cursor asks for the full history.
type Provider interface {
	GetBalances(ctx context.Context, accessToken string) ([]models.ProviderAccount, error)
	SyncTransactions(ctx context.Context, accessToken, cursor string) (*models.SyncPage, error)
}

// CredentialResolver returns the plaintext access credential for an item.
type CredentialResolver interface {
	Resolve(ctx context.Context, item models.Item) (string, error)
}

// CredentialSealer turns a plaintext credential into the stored handle and drops
// anything cached for items whose credential changed.
type CredentialSealer interface {
	Seal(token string) (string, error)
	Invalidate(itemIDs ...int64)
}

type ItemStore interface {
	Get(ctx context.Context, id int64) (*models.Item, error)
	List(ctx context.Context, env string) ([]models.Item, error)
	ListForBalances(ctx context.Context, env string) ([]models.Item, error)
	ListForTransactions(ctx context.Context, env string) ([]models.Item, error)
	Link(ctx context.Context, p models.LinkItemParams) (*models.Item, []int64, error)
	SetCapabilities(ctx context.Context, id int64, transactions, balances *bool) (*models.Item, error)
}

type AccountStore interface {
	Upsert(ctx context.Context, p models.UpsertAccountParams) (int64, error)
	ListIncluded(ctx context.Context, itemID int64) (map[string]int64, error)
	ListByItem(ctx context.Context, itemID int64) ([]models.Account, error)
	SetInclusion(ctx context.Context, id int64, includeInApp, active *bool) (*models.Account, error)
}

type BalanceStore interface {
	UpsertSnapshot(ctx context.Context, s models.BalanceSnapshot) error
}

type CursorStore interface {
	GetSyncCursor(ctx context.Context, itemID int64) (string, error)
	UpdateSyncCursor(ctx context.Context, itemID int64, cursor string) error
}

type TransactionStore interface {
	Upsert(ctx context.Context, runID, accountID int64, tx models.ProviderTransaction) (bool, error)
	MarkRemoved(ctx context.Context, runID int64, transactionID string) (bool, error)
}

type RunStore interface {
	Create(ctx context.Context, runType, env string) (int64, error)
	Finish(ctx context.Context, id int64, status models.RunStatus, errText string) (bool, error)
	Get(ctx context.Context, id int64) (*models.Run, error)
}
