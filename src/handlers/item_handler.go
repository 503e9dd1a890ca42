package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"finsync/src/models"
	"net/http"

	db "finsync/src/db/sql"

	"go.uber.org/zap"
)

type ItemLister interface {
	List(ctx context.Context) ([]models.Item, error)
}

type AccountDirectory interface {
	ListByItem(ctx context.Context, itemID int64) ([]models.Account, error)
	SetInclusion(ctx context.Context, accountID int64, includeInApp, active *bool) (*models.Account, error)
}

func ListItems(items ItemLister, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := items.List(r.Context())
		if err != nil {
			logger.Error("failed to list items", zap.Error(err))
			http.Error(w, "failed to list items", http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []models.Item{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(list)
	}
}

func ListItemAccounts(accounts AccountDirectory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := parseID(r, "item_id")
		if err != nil {
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}

		list, err := accounts.ListByItem(r.Context(), itemID)
		if err != nil {
			logger.Error("failed to list accounts", zap.Int64("item_id", itemID), zap.Error(err))
			http.Error(w, "failed to list accounts", http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []models.Account{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(list)
	}
}

// UpdateAccount toggles include_in_app and active. Omitted fields keep their stored value.
func UpdateAccount(accounts AccountDirectory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := parseID(r, "account_id")
		if err != nil {
			http.Error(w, "invalid account id", http.StatusBadRequest)
			return
		}

		var req struct {
			IncludeInApp *bool `json:"include_in_app"`
			Active       *bool `json:"active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if req.IncludeInApp == nil && req.Active == nil {
			http.Error(w, "include_in_app or active is required", http.StatusBadRequest)
			return
		}

		account, err := accounts.SetInclusion(r.Context(), accountID, req.IncludeInApp, req.Active)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				http.Error(w, "account not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to update account", zap.Int64("account_id", accountID), zap.Error(err))
			http.Error(w, "failed to update account", http.StatusInternalServerError)
			return
		}

		logger.Info("account updated",
			zap.Int64("account_id", accountID),
			zap.Bool("include_in_app", account.IncludeInApp),
			zap.Bool("active", account.Active))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(account)
	}
}
