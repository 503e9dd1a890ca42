package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// The Provider* types are the canonical form of provider responses. Every SDK shape is
// normalized into them at the client boundary.

type ProviderBalances struct {
	Current   decimal.NullDecimal
	Available decimal.NullDecimal
	Limit     decimal.NullDecimal
	Currency  string
	Raw       json.RawMessage
}

type ProviderAccount struct {
	AccountID    string
	Name         string
	OfficialName string
	Type         string
	Subtype      string
	Mask         string
	Balances     ProviderBalances
	Raw          json.RawMessage
}

type ProviderTransaction struct {
	TransactionID           string
	AccountID               string
	Name                    string
	MerchantName            string
	Amount                  decimal.Decimal
	Currency                string
	Date                    time.Time
	AuthorizedDate          *time.Time
	Pending                 bool
	PendingTransactionID    string
	CategoryID              string
	Category                string
	PersonalFinanceCategory string
	PaymentChannel          string
	Raw                     json.RawMessage
}

// SyncPage is one page of an incremental transaction sync.
type SyncPage struct {
	Added      []ProviderTransaction
	Modified   []ProviderTransaction
	Removed    []string
	NextCursor string
	HasMore    bool
}
