package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/podologia/agenda/services/notification-service/internal/storage"
)

type HistoryStore interface {
	ListForAppointment(ctx context.Context, appointmentID string) ([]storage.Notification, error)
}

// HistoryHandler serves GET /admin/notifications?appointment_id=...
type HistoryHandler struct {
	store  HistoryStore
	logger *slog.Logger
}

func NewHistoryHandler(store HistoryStore, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, logger: logger}
}

func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "appointment_id is required"})
		return
	}
	items, err := h.store.ListForAppointment(r.Context(), id)
	if err != nil {
		h.logger.Error("list notifications failed", "err", err, "appointment_id", id)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
