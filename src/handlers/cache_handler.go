package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

type CacheClearer interface {
	Clear()
}

// ClearCredentialCache drops every decrypted credential; the next run reopens handles.
func ClearCredentialCache(cache CacheClearer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cache.Clear()
		logger.Info("credential cache cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}
