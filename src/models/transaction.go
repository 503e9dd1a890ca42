package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type SyncStatus string

const (
	SyncStatusAdded    SyncStatus = "added"
	SyncStatusModified SyncStatus = "modified"
	SyncStatusRemoved  SyncStatus = "removed"
)

// Transaction amounts follow the provider convention: positive is money out.
type Transaction struct {
	ID                      int64           `json:"id"`
	AccountID               int64           `json:"account_id"`
	TransactionID           string          `json:"transaction_id"`
	Name                    string          `json:"name"`
	MerchantName            string          `json:"merchant_name"`
	Amount                  decimal.Decimal `json:"amount"`
	Currency                string          `json:"currency"`
	Date                    *time.Time      `json:"date,omitempty"`
	AuthorizedDate          *time.Time      `json:"authorized_date,omitempty"`
	Pending                 bool            `json:"pending"`
	PendingTransactionID    string          `json:"pending_transaction_id"`
	CategoryID              string          `json:"category_id"`
	Category                string          `json:"category"`
	PersonalFinanceCategory string          `json:"personal_finance_category"`
	PaymentChannel          string          `json:"payment_channel"`
	SyncStatus              SyncStatus      `json:"sync_status"`
	Removed                 bool            `json:"removed"`
	RemovedAt               *time.Time      `json:"removed_at,omitempty"`
	FirstSeenRunID          int64           `json:"first_seen_run_id"`
	LastSeenRunID           int64           `json:"last_seen_run_id"`
	Raw                     json.RawMessage `json:"-"`
}

// PostedTransaction is one settled transaction as it appears in a digest.
type PostedTransaction struct {
	Date         *time.Time      `json:"date,omitempty"`
	Name         string          `json:"name"`
	MerchantName string          `json:"merchant_name,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	AccountName  string          `json:"account_name"`
	ItemLabel    string          `json:"item_label"`
	SyncStatus   SyncStatus      `json:"sync_status"`
}
