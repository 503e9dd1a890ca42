package ingest

import (
	"context"
	"finsync/src/metrics"
	"finsync/src/models"
	"fmt"

	"go.uber.org/zap"
)

type BalanceResult struct {
	ItemID    int64
	Accounts  int
	Snapshots int
}

// BalanceIngestor refreshes account metadata for every account the provider returns
// and snapshots balances of the included ones.
type BalanceIngestor struct {
	accounts *AccountRegistry
	balances BalanceStore
	provider Provider
	creds    CredentialResolver
	logger   *zap.Logger
}

func NewBalanceIngestor(accounts *AccountRegistry, balances BalanceStore, provider Provider, creds CredentialResolver, logger *zap.Logger) *BalanceIngestor {
	return &BalanceIngestor{
		accounts: accounts,
		balances: balances,
		provider: provider,
		creds:    creds,
		logger:   logger,
	}
}

func (b *BalanceIngestor) IngestItem(ctx context.Context, runID int64, item models.Item) (*BalanceResult, error) {
	log := b.logger.With(zap.Int64("run_id", runID), zap.Int64("item_id", item.ID), zap.String("label", item.Label))
	result := &BalanceResult{ItemID: item.ID}

	token, err := b.creds.Resolve(ctx, item)
	if err != nil {
		return result, err
	}

	accounts, err := b.provider.GetBalances(ctx, token)
	if err != nil {
		return result, fmt.Errorf("fetch balances: %w", err)
	}
	result.Accounts = len(accounts)

	// Excluded accounts are refreshed too so that re-including them later starts from
	// current metadata.
	for _, acc := range accounts {
		meta := models.AccountMetadata{
			Name:         acc.Name,
			OfficialName: acc.OfficialName,
			Type:         acc.Type,
			Subtype:      acc.Subtype,
			Mask:         acc.Mask,
			Currency:     acc.Balances.Currency,
			Raw:          acc.Raw,
		}
		if _, err := b.accounts.UpsertAccount(ctx, item.ID, acc.AccountID, meta, nil, nil); err != nil {
			return result, fmt.Errorf("upsert account %s: %w", acc.AccountID, err)
		}
	}

	included, err := b.accounts.ListIncluded(ctx, item.ID)
	if err != nil {
		return result, fmt.Errorf("list included accounts: %w", err)
	}

	for _, acc := range accounts {
		accountID, ok := included[acc.AccountID]
		if !ok {
			continue
		}
		err := b.balances.UpsertSnapshot(ctx, models.BalanceSnapshot{
			RunID:       runID,
			AccountID:   accountID,
			Current:     acc.Balances.Current,
			Available:   acc.Balances.Available,
			CreditLimit: acc.Balances.Limit,
			Currency:    acc.Balances.Currency,
			Raw:         acc.Balances.Raw,
		})
		if err != nil {
			return result, fmt.Errorf("snapshot account %s: %w", acc.AccountID, err)
		}
		result.Snapshots++
		metrics.BalanceSnapshotsTotal.Inc()
	}

	log.Info("balances ingested", zap.Int("accounts", result.Accounts), zap.Int("snapshots", result.Snapshots))
	return result, nil
}
