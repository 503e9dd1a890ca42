package models

import (
	"encoding/json"
	"time"
)

type WebhookEvent struct {
	ID          int64           `json:"id"`
	WebhookType string          `json:"webhook_type"`
	WebhookCode string          `json:"webhook_code"`
	ItemID      string          `json:"item_id,omitempty"`
	Environment string          `json:"environment,omitempty"`
	Raw         json.RawMessage `json:"raw"`
	ReceivedAt  time.Time       `json:"received_at"`
}
