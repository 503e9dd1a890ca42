package models

import (
	"encoding/json"
	"time"
)

type Account struct {
	ID           int64           `json:"id"`
	ItemID       int64           `json:"item_id"`
	AccountID    string          `json:"account_id"`
	Name         string          `json:"name"`
	OfficialName string          `json:"official_name"`
	Type         string          `json:"type"`
	Subtype      string          `json:"subtype"`
	Mask         string          `json:"mask"`
	Currency     string          `json:"currency"`
	IncludeInApp bool            `json:"include_in_app"`
	Active       bool            `json:"active"`
	Raw          json.RawMessage `json:"-"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// AccountMetadata is the feed-owned part of an account; it is overwritten on every refresh.
type AccountMetadata struct {
	Name         string
	OfficialName string
	Type         string
	Subtype      string
	Mask         string
	Currency     string
	Raw          json.RawMessage
}

// UpsertAccountParams leaves IncludeInApp and Active nil when the caller has no opinion,
// in which case the stored values are kept.
type UpsertAccountParams struct {
	ItemID       int64
	AccountID    string
	Metadata     AccountMetadata
	IncludeInApp *bool
	Active       *bool
}

// Bool returns a pointer to v, for the optional inclusion flags.
func Bool(v bool) *bool {
	return &v
}
