package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"finsync/src/metrics"
	"finsync/src/models"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type WebhookEventStore interface {
	Insert(ctx context.Context, e models.WebhookEvent) (int64, error)
}

type WebhookVerifier interface {
	Verify(ctx context.Context, body []byte, header http.Header) error
}

// PlaidWebhook records incoming Plaid webhooks. Events are only logged; ingestion runs
// on its own schedule. A nil verifier accepts unsigned requests.
func PlaidWebhook(events WebhookEventStore, verifier WebhookVerifier, env string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		if verifier != nil {
			if err := verifier.Verify(r.Context(), body, r.Header); err != nil {
				logger.Warn("rejected plaid webhook", zap.Error(err))
				metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		var payload struct {
			WebhookType string `json:"webhook_type"`
			WebhookCode string `json:"webhook_code"`
			ItemID      string `json:"item_id"`
			Environment string `json:"environment"`
		}
		if err := json.Unmarshal(body, &payload); err != nil || payload.WebhookType == "" {
			logger.Warn("malformed plaid webhook", zap.Error(err))
			metrics.WebhookEventsTotal.WithLabelValues("unknown", "malformed").Inc()
			http.Error(w, "invalid webhook payload", http.StatusBadRequest)
			return
		}
		if payload.Environment == "" {
			payload.Environment = env
		}

		id, err := events.Insert(r.Context(), models.WebhookEvent{
			WebhookType: payload.WebhookType,
			WebhookCode: payload.WebhookCode,
			ItemID:      payload.ItemID,
			Environment: payload.Environment,
			Raw:         body,
		})
		if err != nil {
			logger.Error("failed to record plaid webhook",
				zap.String("webhook_type", payload.WebhookType), zap.String("webhook_code", payload.WebhookCode), zap.Error(err))
			metrics.WebhookEventsTotal.WithLabelValues(payload.WebhookType, "error").Inc()
			http.Error(w, "failed to record webhook", http.StatusInternalServerError)
			return
		}

		metrics.WebhookEventsTotal.WithLabelValues(payload.WebhookType, "recorded").Inc()
		logger.Info("plaid webhook recorded",
			zap.Int64("event_id", id),
			zap.String("webhook_type", payload.WebhookType),
			zap.String("webhook_code", payload.WebhookCode),
			zap.String("item_id", payload.ItemID))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": id, "status": "recorded"})
	}
}
