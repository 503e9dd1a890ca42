package models

import "time"

type Item struct {
	ID                  int64      `json:"id"`
	Label               string     `json:"label"`
	Environment         string     `json:"environment"`
	InstitutionID       string     `json:"institution_id"`
	InstitutionName     string     `json:"institution_name"`
	ItemID              string     `json:"item_id"`
	CredentialHandle    string     `json:"-"`
	TransactionsEnabled bool       `json:"transactions_enabled"`
	BalancesEnabled     bool       `json:"balances_enabled"`
	Active              bool       `json:"active"`
	ArchivedAt          *time.Time `json:"archived_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// LinkItemParams is what a completed credential exchange hands to the item directory.
type LinkItemParams struct {
	Label               string
	Environment         string
	InstitutionID       string
	InstitutionName     string
	ItemID              string
	CredentialHandle    string
	TransactionsEnabled bool
	BalancesEnabled     bool
}
