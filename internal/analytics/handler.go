package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Summary writes the configuration summaries as JSON. With a
// ?configuration= parameter only that configuration is written, or 404.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	var body any = h.aggregator.Summaries()
	if name := r.URL.Query().Get("configuration"); name != "" {
		summary, ok := h.aggregator.Summary(name)
		if !ok {
			http.Error(w, "unknown configuration", http.StatusNotFound)
			return
		}
		body = summary
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write summary response", "error", err)
	}
}
