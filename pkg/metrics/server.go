package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/health"
)

// NewMux builds the scrape mux. When checker is non-nil the liveness and
// readiness checks are mounted next to /metrics.
func NewMux(checker *health.Checker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	if checker != nil {
		mux.HandleFunc("/health/live", checker.LiveHandler())
		mux.HandleFunc("/health/ready", checker.ReadyHandler())
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><h1>IR Evaluation Harness</h1><p><a href="/metrics">/metrics</a></p></body></html>`)
	})
	return mux
}

// StartServer serves handler on port in the background. Callers usually pass
// a mux from NewMux with extra routes mounted.
func StartServer(port int, handler http.Handler) (shutdown func(context.Context) error) {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return server.Shutdown
}
