package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"finsync/src/models"
	"finsync/src/report"
	"net/http"
	"strconv"

	db "finsync/src/db/sql"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RunSource interface {
	Get(ctx context.Context, runID int64) (*models.Run, error)
}

type SummarySource interface {
	Summary(ctx context.Context, runID int64) (*report.Summary, error)
}

func parseID(r *http.Request, param string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, param), 10, 64)
}

// GetRun returns a run. With ?summary=true the run's report summary is returned instead.
func GetRun(runs RunSource, summaries SummarySource, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := parseID(r, "run_id")
		if err != nil {
			http.Error(w, "invalid run id", http.StatusBadRequest)
			return
		}

		var resp any
		if r.URL.Query().Get("summary") == "true" {
			resp, err = summaries.Summary(r.Context(), runID)
		} else {
			resp, err = runs.Get(r.Context(), runID)
		}
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				http.Error(w, "run not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to get run", zap.Int64("run_id", runID), zap.Error(err))
			http.Error(w, "failed to get run", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
