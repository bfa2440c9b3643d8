package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// Lister is the read side of the run store. Store implements it.
type Lister interface {
	ListRuns(ctx context.Context, limit int) ([]StoredSummary, error)
}

type Handler struct {
	runs   Lister
	logger *slog.Logger
}

func NewHandler(runs Lister) *Handler {
	return &Handler{
		runs:   runs,
		logger: slog.Default().With("component", "run-store-handler"),
	}
}

// Runs writes the newest stored summaries as JSON. ?limit= caps the row
// count, between 1 and 500.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing runs failed", "error", err)
		http.Error(w, "run store unavailable", http.StatusServiceUnavailable)
		return
	}
	if runs == nil {
		runs = []StoredSummary{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(runs); err != nil {
		h.logger.Error("failed to write runs response", "error", err)
	}
}
