package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type BalanceSnapshot struct {
	RunID       int64               `json:"run_id"`
	AccountID   int64               `json:"account_id"`
	Current     decimal.NullDecimal `json:"current"`
	Available   decimal.NullDecimal `json:"available"`
	CreditLimit decimal.NullDecimal `json:"credit_limit"`
	Currency    string              `json:"currency"`
	CapturedAt  time.Time           `json:"captured_at"`
	Raw         json.RawMessage     `json:"-"`
}

// AccountBalance pairs a snapshot's current balance with the account classification
// reporting needs to sign it.
type AccountBalance struct {
	AccountID int64
	Name      string
	Type      string
	Current   decimal.NullDecimal
}
