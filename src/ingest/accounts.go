package ingest

import (
	"context"
	"errors"
	"finsync/src/models"

	"go.uber.org/zap"
)

var ErrMissingAccountID = errors.New("account has no external id")

// AccountRegistry owns the account catalog and its inclusion policy. An account is
// included when include_in_app and active are both true; only included accounts
// receive balance snapshots and transactions.
type AccountRegistry struct {
	store  AccountStore
	logger *zap.Logger
}

func NewAccountRegistry(store AccountStore, logger *zap.Logger) *AccountRegistry {
	return &AccountRegistry{store: store, logger: logger}
}

// UpsertAccount refreshes feed metadata. A nil includeInApp or active keeps the stored
// value (true for a new account).
func (r *AccountRegistry) UpsertAccount(ctx context.Context, itemID int64, externalAccountID string, meta models.AccountMetadata, includeInApp, active *bool) (int64, error) {
	if externalAccountID == "" {
		return 0, ErrMissingAccountID
	}
	return r.store.Upsert(ctx, models.UpsertAccountParams{
		ItemID:       itemID,
		AccountID:    externalAccountID,
		Metadata:     meta,
		IncludeInApp: includeInApp,
		Active:       active,
	})
}

func (r *AccountRegistry) ListIncluded(ctx context.Context, itemID int64) (map[string]int64, error) {
	return r.store.ListIncluded(ctx, itemID)
}

func (r *AccountRegistry) ListByItem(ctx context.Context, itemID int64) ([]models.Account, error) {
	return r.store.ListByItem(ctx, itemID)
}

// SetInclusion is the user-facing toggle.
func (r *AccountRegistry) SetInclusion(ctx context.Context, accountID int64, includeInApp, active *bool) (*models.Account, error) {
	a, err := r.store.SetInclusion(ctx, accountID, includeInApp, active)
	if err != nil {
		return nil, err
	}
	r.logger.Info("account inclusion changed",
		zap.Int64("account_id", a.ID), zap.Bool("include_in_app", a.IncludeInApp), zap.Bool("active", a.Active))
	return a, nil
}
