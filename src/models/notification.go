package models

import "time"

type NotificationStatus string

const (
	NotificationSuccess NotificationStatus = "success"
	NotificationFailed  NotificationStatus = "failed"
	NotificationSkipped NotificationStatus = "skipped"
)

func (s NotificationStatus) Valid() bool {
	switch s {
	case NotificationSuccess, NotificationFailed, NotificationSkipped:
		return true
	}
	return false
}

// NotificationRecord is the single stored outcome for one (run, channel) pair.
type NotificationRecord struct {
	ID        int64              `json:"id"`
	RunID     int64              `json:"run_id"`
	Channel   string             `json:"channel"`
	Status    NotificationStatus `json:"status"`
	Message   string             `json:"message,omitempty"`
	Error     string             `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}
