package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Health проверяет доступность базы данных.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, response{Error: "database unavailable"})
		return
	}

	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
