package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

type RetryCandidateLister interface {
	ListRetryCandidates(ctx context.Context, channel string, limit int) ([]int64, error)
}

func RetryCandidates(ledger RetryCandidateLister, defaultChannel string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := r.URL.Query().Get("channel")
		if channel == "" {
			channel = defaultChannel
		}
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		ids, err := ledger.ListRetryCandidates(r.Context(), channel, limit)
		if err != nil {
			logger.Error("failed to list retry candidates", zap.String("channel", channel), zap.Error(err))
			http.Error(w, "failed to list retry candidates", http.StatusInternalServerError)
			return
		}
		if ids == nil {
			ids = []int64{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"channel": channel, "run_ids": ids})
	}
}
