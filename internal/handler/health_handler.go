package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

type healthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	store healthChecker
}

func NewHealthHandler(store healthChecker) *HealthHandler {
	return &HealthHandler{store: store}
}

// Check answers 200 "ok" when the credential store responds, 503 otherwise.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := h.store.Health(ctx); err != nil {
		slog.Warn("health check failed", "error", err.Error())
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
