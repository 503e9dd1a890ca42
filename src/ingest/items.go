package ingest

import (
	"context"
	"errors"
	"finsync/src/models"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrMissingInstitution = errors.New("item has no institution id")
	ErrMissingLabel       = errors.New("item has no label or institution name")
	ErrMissingCredential  = errors.New("item has no access credential")
)

// LinkRequest is the result of a completed credential exchange.
type LinkRequest struct {
	Label               string
	InstitutionID       string
	InstitutionName     string
	ItemID              string
	AccessToken         string
	TransactionsEnabled bool
	BalancesEnabled     bool
}

// ItemDirectory is the registry of linked items for one environment.
type ItemDirectory struct {
	store  ItemStore
	sealer CredentialSealer
	env    string
	logger *zap.Logger
}

func NewItemDirectory(store ItemStore, sealer CredentialSealer, env string, logger *zap.Logger) *ItemDirectory {
	return &ItemDirectory{store: store, sealer: sealer, env: env, logger: logger}
}

// Link stores a newly exchanged item. Nothing is written unless the linkage data is
// complete. Re-linking a label under a new provider item id archives the old row.
func (d *ItemDirectory) Link(ctx context.Context, req LinkRequest) (*models.Item, error) {
	if strings.TrimSpace(req.InstitutionID) == "" {
		return nil, ErrMissingInstitution
	}
	if req.ItemID == "" || req.AccessToken == "" {
		return nil, ErrMissingCredential
	}
	label := strings.TrimSpace(req.Label)
	if label == "" {
		label = strings.TrimSpace(req.InstitutionName)
	}
	if label == "" {
		return nil, ErrMissingLabel
	}

	handle, err := d.sealer.Seal(req.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("seal credential: %w", err)
	}

	item, archived, err := d.store.Link(ctx, models.LinkItemParams{
		Label:               label,
		Environment:         d.env,
		InstitutionID:       req.InstitutionID,
		InstitutionName:     req.InstitutionName,
		ItemID:              req.ItemID,
		CredentialHandle:    handle,
		TransactionsEnabled: req.TransactionsEnabled,
		BalancesEnabled:     req.BalancesEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("link item %q: %w", label, err)
	}

	d.sealer.Invalidate(append(archived, item.ID)...)
	if len(archived) > 0 {
		d.logger.Info("archived previous items for label",
			zap.String("label", label), zap.Int64s("archived_ids", archived), zap.Int64("item_id", item.ID))
	}
	d.logger.Info("item linked", zap.Int64("item_id", item.ID), zap.String("label", label), zap.String("env", d.env))

	return item, nil
}

func (d *ItemDirectory) Get(ctx context.Context, id int64) (*models.Item, error) {
	return d.store.Get(ctx, id)
}

func (d *ItemDirectory) List(ctx context.Context) ([]models.Item, error) {
	return d.store.List(ctx, d.env)
}

func (d *ItemDirectory) ListForBalances(ctx context.Context) ([]models.Item, error) {
	return d.store.ListForBalances(ctx, d.env)
}

func (d *ItemDirectory) ListForTransactions(ctx context.Context) ([]models.Item, error) {
	return d.store.ListForTransactions(ctx, d.env)
}

func (d *ItemDirectory) SetCapabilities(ctx context.Context, id int64, transactions, balances *bool) (*models.Item, error) {
	return d.store.SetCapabilities(ctx, id, transactions, balances)
}
